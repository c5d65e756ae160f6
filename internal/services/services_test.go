package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/storage"
)

// stepClock advances one second on every reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{now: start}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev core.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []core.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type testEnv struct {
	gw         *storage.Gateway
	clock      *stepClock
	pub        *recordingPublisher
	sessions   *SessionService
	categories *CategoryService
	ledger     *LedgerService
	summary    *SummaryService
	backups    *BackupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	gw, err := storage.Open(filepath.Join(dir, "caja.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	clock := newStepClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local))
	pub := &recordingPublisher{}
	opts := []Option{WithClock(clock.Now), WithPublisher(pub), WithLogger(log.Discard())}

	sessions := NewSessionService(gw, opts...)
	categories := NewCategoryService(gw, opts...)
	return &testEnv{
		gw:         gw,
		clock:      clock,
		pub:        pub,
		sessions:   sessions,
		categories: categories,
		ledger:     NewLedgerService(gw, sessions, categories, opts...),
		summary:    NewSummaryService(gw, sessions, opts...),
		backups:    NewBackupService(gw, filepath.Join(dir, "backups"), opts...),
	}
}

func (e *testEnv) openSession(t *testing.T, operator string, opening int64) core.Session {
	t.Helper()
	s, err := e.sessions.CreateSession(context.Background(), core.NewSession{
		OperatorName:  operator,
		OpeningAmount: core.Cents(opening),
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return s
}

func (e *testEnv) record(t *testing.T, sessionID int64, typ core.TransactionType, cents int64, concept string) core.Transaction {
	t.Helper()
	tr, err := e.ledger.CreateTransaction(context.Background(), core.NewTransaction{
		SessionID: sessionID,
		Type:      typ,
		Amount:    core.Cents(cents),
		Concept:   concept,
	})
	if err != nil {
		t.Fatalf("CreateTransaction(%s %d) error = %v", typ, cents, err)
	}
	return tr
}

func (e *testEnv) countTransactions(t *testing.T) int64 {
	t.Helper()
	var n int64
	err := e.gw.View(context.Background(), "count", func(ctx context.Context, q *storage.Queries) error {
		var err error
		n, err = q.CountTransactions(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func categoryOfType(t *testing.T, e *testEnv, typ core.TransactionType) core.Category {
	t.Helper()
	cats, err := e.categories.List(context.Background(), typ)
	if err != nil || len(cats) == 0 {
		t.Fatalf("List(%s) = %v, %v", typ, cats, err)
	}
	return cats[0]
}
