package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"caja/internal/core"
	"caja/internal/storage"
)

func TestCreateSession_Validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		in   core.NewSession
		code string
	}{
		{"blank operator", core.NewSession{OperatorName: "   ", OpeningAmount: core.Cents(100)}, core.CodeOperatorRequired},
		{"negative opening", core.NewSession{OperatorName: "Ana", OpeningAmount: core.Cents(-1)}, core.CodeNegativeOpening},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.sessions.CreateSession(context.Background(), tt.in)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
			if core.CodeOf(err) != tt.code {
				t.Errorf("code = %q, want %q", core.CodeOf(err), tt.code)
			}
		})
	}
	if ok, _ := env.sessions.HasActiveSession(context.Background()); ok {
		t.Error("invalid input created a session")
	}
}

func TestCreateSession_ConflictWhileActive(t *testing.T) {
	env := newTestEnv(t)
	first := env.openSession(t, "Ana", 10000)

	_, err := env.sessions.CreateSession(context.Background(), core.NewSession{OperatorName: "Luis", OpeningAmount: core.Cents(0)})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}

	active, err := env.sessions.GetActiveSession(context.Background())
	if err != nil || active == nil {
		t.Fatalf("GetActiveSession() = %v, %v", active, err)
	}
	if active.ID != first.ID {
		t.Errorf("active session = %d, want %d", active.ID, first.ID)
	}
}

func TestCreateSession_ConcurrentOnlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = env.sessions.CreateSession(ctx, core.NewSession{OperatorName: "Caja", OpeningAmount: core.Cents(500)})
			return nil
		})
	}
	_ = g.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, core.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Errorf("successes = %d, conflicts = %d, want 1 and 1", ok, conflicts)
	}

	var active int64
	_ = env.gw.View(ctx, "count", func(ctx context.Context, q *storage.Queries) error {
		var err error
		active, err = q.CountActiveSessions(ctx)
		return err
	})
	if active != 1 {
		t.Errorf("active sessions = %d, want 1", active)
	}
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.openSession(t, "Ana", 10000)

	if _, err := env.sessions.CloseSession(ctx, core.CloseSession{SessionID: s.ID, ClosingAmount: core.Cents(-5)}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("negative closing error = %v, want validation", err)
	}
	if _, err := env.sessions.CloseSession(ctx, core.CloseSession{SessionID: 999, ClosingAmount: core.Cents(0)}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown session error = %v, want not found", err)
	}

	closed, err := env.sessions.CloseSession(ctx, core.CloseSession{SessionID: s.ID, ClosingAmount: core.Cents(9000)})
	if err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if closed.IsActive || closed.ClosedAt == nil || closed.ClosingAmount == nil || closed.ClosingAmount.Cents != 9000 {
		t.Errorf("closed session = %+v", closed)
	}

	_, err = env.sessions.CloseSession(ctx, core.CloseSession{SessionID: s.ID, ClosingAmount: core.Cents(1)})
	if !errors.Is(err, core.ErrState) {
		t.Fatalf("second close error = %v, want state", err)
	}
	after, err := env.sessions.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(closed, after); diff != "" {
		t.Errorf("closed session changed (-want +got):\n%s", diff)
	}

	if ok, _ := env.sessions.HasActiveSession(ctx); ok {
		t.Error("HasActiveSession() = true after close")
	}
	env.openSession(t, "Luis", 0)
}

func TestGetSessionSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.openSession(t, "Ana", 10000)
	env.record(t, s.ID, core.Income, 5000, "Venta")
	env.record(t, s.ID, core.Income, 2550, "Venta")
	env.record(t, s.ID, core.Expense, 1000, "Compra")

	sum, err := env.sessions.GetSessionSummary(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSessionSummary() error = %v", err)
	}
	want := core.SessionSummary{
		Session:         sum.Session,
		TotalIncome:     core.Cents(7550),
		TotalExpense:    core.Cents(1000),
		IncomeCount:     2,
		ExpenseCount:    1,
		CurrentBalance:  core.Cents(16550),
		ExpectedClosing: core.Cents(16550),
	}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("open summary mismatch (-want +got):\n%s", diff)
	}

	if _, err := env.sessions.CloseSession(ctx, core.CloseSession{SessionID: s.ID, ClosingAmount: core.Cents(16000)}); err != nil {
		t.Fatal(err)
	}
	sum, err = env.sessions.GetSessionSummary(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.ExpectedClosing.Cents != 16000 || sum.Difference.Cents != -550 {
		t.Errorf("closed summary expected=%d difference=%d, want 16000 and -550", sum.ExpectedClosing.Cents, sum.Difference.Cents)
	}

	if _, err := env.sessions.GetSessionSummary(ctx, 12345); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown session error = %v, want not found", err)
	}
}

func TestSessionEventsPublished(t *testing.T) {
	env := newTestEnv(t)
	env.pub.err = errors.New("broker down")
	s := env.openSession(t, "Ana", 0)
	if _, err := env.sessions.CloseSession(context.Background(), core.CloseSession{SessionID: s.ID}); err != nil {
		t.Fatalf("publish failure leaked into CloseSession: %v", err)
	}
	want := []core.EventType{core.EventSessionOpened, core.EventSessionClosed}
	if diff := cmp.Diff(want, env.pub.Types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestExportTracking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.openSession(t, "Ana", 1000)
	if err := env.sessions.MarkExported(ctx, open.ID, "ref"); !errors.Is(err, core.ErrState) {
		t.Errorf("MarkExported(active) error = %v, want State", err)
	}
	if err := env.sessions.MarkExported(ctx, 999, "ref"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("MarkExported(missing) error = %v, want NotFound", err)
	}

	if _, err := env.sessions.CloseSession(ctx, core.CloseSession{SessionID: open.ID, ClosingAmount: core.Cents(1000)}); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	pending, err := env.sessions.PendingExports(ctx, 0, 0)
	if err != nil {
		t.Fatalf("PendingExports() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != open.ID {
		t.Fatalf("PendingExports() = %+v, want session %d", pending, open.ID)
	}
	if after, _ := env.sessions.PendingExports(ctx, open.ID, 10); len(after) != 0 {
		t.Errorf("PendingExports(after %d) = %d sessions, want 0", open.ID, len(after))
	}

	if err := env.sessions.MarkExported(ctx, open.ID, "Caja!A1:H3"); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	done, err := env.sessions.Exported(ctx, open.ID)
	if err != nil || !done {
		t.Errorf("Exported() = %v, %v; want true", done, err)
	}
	pending, _ = env.sessions.PendingExports(ctx, 0, 10)
	if len(pending) != 0 {
		t.Errorf("PendingExports() after mark = %d sessions, want 0", len(pending))
	}
}
