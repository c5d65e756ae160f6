package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"caja/internal/core"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := Open(filepath.Join(t.TempDir(), "data", "caja.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestOpen_MigratesAndSeeds(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()

	var cats []core.Category
	err := g.View(ctx, "list", func(ctx context.Context, q *Queries) error {
		var err error
		cats, err = q.ListCategories(ctx, "")
		return err
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(cats) != 10 {
		t.Fatalf("seeded categories = %d, want 10", len(cats))
	}

	version, dirty, err := SchemaVersion(g.Path())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if dirty || version != 3 {
		t.Errorf("SchemaVersion() = %d dirty=%v, want 3 clean", version, dirty)
	}
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()
	boom := core.E(core.KindConflict, "test", "", "boom")

	err := g.Update(ctx, "create_session", func(ctx context.Context, q *Queries) error {
		if _, err := q.InsertSession(ctx, "Ana", core.Cents(1000), time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("Update() error = %v, want conflict passed through", err)
	}

	var n int64
	_ = g.View(ctx, "count", func(ctx context.Context, q *Queries) error {
		var err error
		n, err = q.CountActiveSessions(ctx)
		return err
	})
	if n != 0 {
		t.Errorf("active sessions after rollback = %d, want 0", n)
	}
}

func TestSingleActiveSessionIndex(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()

	insert := func() error {
		return g.Update(ctx, "create_session", func(ctx context.Context, q *Queries) error {
			_, err := q.InsertSession(ctx, "Ana", core.Cents(0), time.Now())
			return err
		})
	}
	if err := insert(); err != nil {
		t.Fatalf("first insert error = %v", err)
	}
	err := insert()
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("second active insert error = %v, want storage error from unique index", err)
	}
}

func TestTransactionNumberUnique(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()

	err := g.Update(ctx, "seed", func(ctx context.Context, q *Queries) error {
		s, err := q.InsertSession(ctx, "Ana", core.Cents(0), time.Now())
		if err != nil {
			return err
		}
		p := InsertTransactionParams{
			SessionID:         s.ID,
			TransactionNumber: "TR-1001",
			Type:              core.Income,
			Amount:            core.Cents(500),
			Concept:           "Venta",
			CreatedAt:         time.Now(),
		}
		if _, err := q.InsertTransaction(ctx, p); err != nil {
			return err
		}
		_, err = q.InsertTransaction(ctx, p)
		return err
	})
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("duplicate number error = %v, want storage error", err)
	}
}

func TestClosedGateway(t *testing.T) {
	g := openTestGateway(t)
	if err := g.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	err := g.View(context.Background(), "get_active_session", func(ctx context.Context, q *Queries) error {
		return nil
	})
	if !errors.Is(err, core.ErrStorage) {
		t.Errorf("View() after Close error = %v, want storage error", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestTransactionPredicate(t *testing.T) {
	sid := int64(3)
	cid := int64(7)
	start := core.NewDate(2024, 1, 1)
	end := core.NewDate(2024, 1, 31)

	where, args := transactionPredicate(core.TransactionFilter{
		SessionID:  &sid,
		Type:       core.Expense,
		StartDate:  &start,
		EndDate:    &end,
		CategoryID: &cid,
	})
	if strings.Count(where, "?") != len(args) {
		t.Fatalf("placeholders = %d, args = %d", strings.Count(where, "?"), len(args))
	}
	if strings.Contains(where, "7") || strings.Contains(where, "2024") {
		t.Errorf("predicate interpolates values: %s", where)
	}

	where, args = transactionPredicate(core.TransactionFilter{})
	if where != "" || len(args) != 0 {
		t.Errorf("empty filter predicate = %q %v", where, args)
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "%%"},
		{"Venta", "%Venta%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c\d`, `%c\\d%`},
	}
	for _, tt := range tests {
		if got := LikePattern(tt.in); got != tt.want {
			t.Errorf("LikePattern(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionExports(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)

	err := g.Update(ctx, "seed", func(ctx context.Context, q *Queries) error {
		for i := 0; i < 2; i++ {
			s, err := q.InsertSession(ctx, "Ana", core.Cents(1000), now)
			if err != nil {
				return err
			}
			if _, err := q.CloseSession(ctx, s.ID, core.Cents(1000), now.Add(time.Hour)); err != nil {
				return err
			}
		}
		_, err := q.InsertSession(ctx, "Ana", core.Cents(0), now.Add(2*time.Hour))
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var pending []core.Session
	err = g.Update(ctx, "exports", func(ctx context.Context, q *Queries) error {
		var err error
		if pending, err = q.ListUnexportedSessions(ctx, 0, 10); err != nil {
			return err
		}
		if err := q.MarkSessionExported(ctx, pending[0].ID, "ref-1", now); err != nil {
			return err
		}
		// Second mark overwrites instead of failing.
		return q.MarkSessionExported(ctx, pending[0].ID, "ref-2", now)
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("unexported closed sessions = %d, want 2 (the open one excluded)", len(pending))
	}

	err = g.View(ctx, "check", func(ctx context.Context, q *Queries) error {
		done, err := q.IsSessionExported(ctx, pending[0].ID)
		if err != nil {
			return err
		}
		if !done {
			t.Error("first session should be marked exported")
		}
		rest, err := q.ListUnexportedSessions(ctx, 0, 10)
		if err != nil {
			return err
		}
		if len(rest) != 1 || rest[0].ID != pending[1].ID {
			t.Errorf("remaining = %+v, want only session %d", rest, pending[1].ID)
		}
		past, err := q.ListUnexportedSessions(ctx, pending[1].ID, 10)
		if err != nil {
			return err
		}
		if len(past) != 0 {
			t.Errorf("sessions after %d = %+v, want none", pending[1].ID, past)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
}
