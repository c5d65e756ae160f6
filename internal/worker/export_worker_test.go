package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"caja/internal/amqp"
	"caja/internal/core"
	"caja/internal/export"
	"caja/internal/log"
	"caja/internal/services"
	"caja/internal/storage"
)

type flakyExporter struct {
	mu      sync.Mutex
	fail    bool
	failFor map[int64]bool
	delay   time.Duration
	calls   int
	inner   *export.Memory
}

func (f *flakyExporter) ExportSession(ctx context.Context, s core.SessionSummary, txs []core.Transaction) (string, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail || f.failFor[s.Session.ID]
	delay := f.delay
	f.mu.Unlock()
	time.Sleep(delay)
	if fail {
		return "", errors.New("sheets unavailable")
	}
	return f.inner.ExportSession(ctx, s, txs)
}

func (f *flakyExporter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// unreliableMarks fails MarkExported while fail is set.
type unreliableMarks struct {
	SessionStore
	fail     bool
	attempts int
}

func (u *unreliableMarks) MarkExported(ctx context.Context, id int64, ref string) error {
	u.attempts++
	if u.fail {
		return errors.New("disk I/O error")
	}
	return u.SessionStore.MarkExported(ctx, id, ref)
}

type fixture struct {
	sessions *services.SessionService
	ledger   *services.LedgerService
	exporter *flakyExporter
	worker   *ExportWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw, err := storage.Open(filepath.Join(t.TempDir(), "caja.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	opts := []services.Option{services.WithLogger(log.Discard())}
	sessions := services.NewSessionService(gw, opts...)
	categories := services.NewCategoryService(gw, opts...)
	ledger := services.NewLedgerService(gw, sessions, categories, opts...)
	exp := &flakyExporter{inner: export.NewMemory()}
	return &fixture{
		sessions: sessions,
		ledger:   ledger,
		exporter: exp,
		worker:   NewExportWorker(sessions, ledger, exp, log.Discard(), 10),
	}
}

// closedSession opens a session, records one sale and closes it.
func (f *fixture) closedSession(t *testing.T) core.Session {
	t.Helper()
	ctx := context.Background()
	s, err := f.sessions.CreateSession(ctx, core.NewSession{OperatorName: "Luis", OpeningAmount: core.Cents(5000)})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.ledger.CreateTransaction(ctx, core.NewTransaction{
		SessionID: s.ID, Type: core.Income, Amount: core.Cents(1200), Concept: "Venta",
	}); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	closed, err := f.sessions.CloseSession(ctx, core.CloseSession{SessionID: s.ID, ClosingAmount: core.Cents(6200)})
	if err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	return closed
}

func TestHandleEvent_ExportsClosedSessionOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.closedSession(t)
	ev := core.LedgerEvent{Type: core.EventSessionClosed, SessionID: s.ID}

	if err := f.worker.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	rows := f.exporter.inner.Rows()
	if len(rows) != 2 {
		t.Fatalf("exported rows = %d, want 1 transaction + closing", len(rows))
	}
	if rows[0][1] != "TR-1001" {
		t.Errorf("first row number = %v, want TR-1001", rows[0][1])
	}

	if err := f.worker.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("duplicate HandleEvent() error = %v", err)
	}
	if got := len(f.exporter.inner.Rows()); got != 2 {
		t.Errorf("duplicate event exported again: %d rows", got)
	}
}

func TestHandleEvent_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, ev := range []core.LedgerEvent{
		{Type: core.EventSessionOpened, SessionID: 1},
		{Type: core.EventTransactionCreated, SessionID: 1, TransactionID: 1},
		{Type: core.EventSessionClosed, SessionID: 404},
	} {
		if err := f.worker.HandleEvent(ctx, ev); err != nil {
			t.Errorf("HandleEvent(%s) error = %v", ev.Type, err)
		}
	}
	if f.exporter.calls != 0 {
		t.Errorf("exporter called %d times, want 0", f.exporter.calls)
	}
}

func TestExportSession_RejectsActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.sessions.CreateSession(ctx, core.NewSession{OperatorName: "Luis"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := f.worker.ExportSession(ctx, s.ID); !errors.Is(err, core.ErrState) {
		t.Errorf("ExportSession(active) error = %v, want State", err)
	}
}

func TestHandleEvent_ExporterFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.closedSession(t)
	ev := core.LedgerEvent{Type: core.EventSessionClosed, SessionID: s.ID}

	f.exporter.fail = true
	if err := f.worker.HandleEvent(ctx, ev); err == nil {
		t.Fatal("HandleEvent() should surface exporter failure for requeue")
	}
	if done, _ := f.sessions.Exported(ctx, s.ID); done {
		t.Fatal("failed export must not be recorded")
	}

	f.exporter.fail = false
	if err := f.worker.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("retry HandleEvent() error = %v", err)
	}
	if done, _ := f.sessions.Exported(ctx, s.ID); !done {
		t.Error("successful retry should record the export")
	}
}

func TestSyncPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.closedSession(t)
	f.closedSession(t)

	if err := f.worker.SyncPending(ctx); err != nil {
		t.Fatalf("SyncPending() error = %v", err)
	}
	if got := len(f.exporter.inner.Rows()); got != 4 {
		t.Errorf("exported rows = %d, want 4", got)
	}
	pending, err := f.sessions.PendingExports(ctx, 0, 10)
	if err != nil || len(pending) != 0 {
		t.Errorf("PendingExports() = %d, %v; want none", len(pending), err)
	}

	if err := f.worker.SyncPending(ctx); err != nil {
		t.Fatalf("second SyncPending() error = %v", err)
	}
	if f.exporter.calls != 2 {
		t.Errorf("exporter calls = %d, want 2", f.exporter.calls)
	}
}

type scriptedSource struct {
	events  []core.LedgerEvent
	handled chan struct{}
}

func (s *scriptedSource) Consume(ctx context.Context, handler amqp.Handler) error {
	for _, ev := range s.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	close(s.handled)
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	f := newFixture(t)
	s := f.closedSession(t)
	// Exported by the startup sweep, so the event below must be a no-op.
	source := &scriptedSource{
		events:  []core.LedgerEvent{{Type: core.EventSessionClosed, SessionID: s.ID}},
		handled: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx, source, time.Hour) }()

	select {
	case <-source.handled:
	case <-time.After(5 * time.Second):
		t.Fatal("events were not consumed")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if f.exporter.calls != 1 {
		t.Errorf("exporter calls = %d, want 1", f.exporter.calls)
	}
}

func TestExport_EventAndSweepExportOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.closedSession(t)
	f.exporter.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- f.worker.HandleEvent(ctx, core.LedgerEvent{Type: core.EventSessionClosed, SessionID: s.ID})
	}()
	go func() {
		defer wg.Done()
		errs <- f.worker.SyncPending(ctx)
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent export error = %v", err)
		}
	}

	if got := f.exporter.Calls(); got != 1 {
		t.Errorf("exporter calls = %d, want 1", got)
	}
	if got := len(f.exporter.inner.Rows()); got != 2 {
		t.Errorf("exported rows = %d, want 2", got)
	}
}

func TestSyncPending_RetriesRecordWithoutReexport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.closedSession(t)

	marks := &unreliableMarks{SessionStore: f.sessions, fail: true}
	w := NewExportWorker(marks, f.ledger, f.exporter, log.Discard(), 10)

	if err := w.SyncPending(ctx); err != nil {
		t.Fatalf("SyncPending() error = %v", err)
	}
	if done, _ := f.sessions.Exported(ctx, s.ID); done {
		t.Fatal("export record should not exist while MarkExported fails")
	}

	if err := w.SyncPending(ctx); err != nil {
		t.Fatalf("second SyncPending() error = %v", err)
	}
	if got := f.exporter.Calls(); got != 1 {
		t.Errorf("exporter calls after failed record = %d, want 1", got)
	}
	if marks.attempts != 2 {
		t.Errorf("MarkExported attempts = %d, want 2", marks.attempts)
	}

	marks.fail = false
	if err := w.HandleEvent(ctx, core.LedgerEvent{Type: core.EventSessionClosed, SessionID: s.ID}); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if done, _ := f.sessions.Exported(ctx, s.ID); !done {
		t.Error("export record should be written once MarkExported recovers")
	}
	if got := f.exporter.Calls(); got != 1 {
		t.Errorf("exporter calls = %d, want 1", got)
	}
	if got := len(f.exporter.inner.Rows()); got != 2 {
		t.Errorf("exported rows = %d, want 2", got)
	}
}

func TestSyncPending_FailingSessionDoesNotBlockNewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stuck := f.closedSession(t)
	fresh := f.closedSession(t)

	f.exporter.failFor = map[int64]bool{stuck.ID: true}
	w := NewExportWorker(f.sessions, f.ledger, f.exporter, log.Discard(), 1)

	if err := w.SyncPending(ctx); err != nil {
		t.Fatalf("SyncPending() error = %v", err)
	}
	if done, _ := f.sessions.Exported(ctx, fresh.ID); !done {
		t.Error("newer session should be exported past the failing one")
	}
	if done, _ := f.sessions.Exported(ctx, stuck.ID); done {
		t.Error("failing session must stay pending")
	}
	if got := f.exporter.Calls(); got != 2 {
		t.Errorf("exporter calls = %d, want 2", got)
	}
}
