// Package worker exports closed sessions to the configured spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"caja/internal/amqp"
	"caja/internal/core"
	"caja/internal/export"
	"caja/internal/log"
	"caja/internal/services"
)

// EventSource delivers ledger events until ctx ends.
type EventSource interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// SessionStore is the part of the session service the worker needs.
type SessionStore interface {
	GetSessionSummary(ctx context.Context, id int64) (core.SessionSummary, error)
	PendingExports(ctx context.Context, afterID int64, limit int) ([]core.Session, error)
	MarkExported(ctx context.Context, id int64, ref string) error
	Exported(ctx context.Context, id int64) (bool, error)
}

// TransactionSource is the ledger's export read contract.
type TransactionSource interface {
	ListForExport(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
}

var (
	_ SessionStore      = (*services.SessionService)(nil)
	_ TransactionSource = (*services.LedgerService)(nil)
)

// ExportWorker exports every closed session once. Events drive the fast
// path; a periodic sweep catches sessions whose event was lost.
//
// Exports are serialized by mu. A session whose rows reached the exporter
// but whose export record could not be written is kept in unrecorded, and
// later attempts retry the record instead of exporting again. Across a
// process restart such a session is exported a second time.
type ExportWorker struct {
	sessions  SessionStore
	ledger    TransactionSource
	exporter  export.Exporter
	logger    *log.Logger
	batchSize int

	mu         sync.Mutex
	unrecorded map[int64]string
}

func NewExportWorker(sessions SessionStore, ledger TransactionSource, exporter export.Exporter, logger *log.Logger, batchSize int) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &ExportWorker{
		sessions:   sessions,
		ledger:     ledger,
		exporter:   exporter,
		logger:     logger.WithComponent(log.ComponentWorker),
		batchSize:  batchSize,
		unrecorded: make(map[int64]string),
	}
}

// HandleEvent exports the session named by a session.closed event. Other
// event types are acknowledged and ignored.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev core.LedgerEvent) error {
	if ev.Type != core.EventSessionClosed {
		w.logger.DebugContext(ctx, "Ignoring event", log.FieldEventType, string(ev.Type))
		return nil
	}

	err := w.ExportSession(ctx, ev.SessionID)
	if core.IsNotFound(err) {
		// Requeueing cannot make a missing session appear.
		w.logger.WarnContext(ctx, "Dropping event for unknown session", log.FieldSessionID, ev.SessionID)
		return nil
	}
	return err
}

// ExportSession reads the session's full ledger and hands it to the exporter,
// unless the session is already exported.
func (w *ExportWorker) ExportSession(ctx context.Context, sessionID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ref, ok := w.unrecorded[sessionID]; ok {
		w.record(ctx, sessionID, ref)
		return nil
	}

	done, err := w.sessions.Exported(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("check export status: %w", err)
	}
	if done {
		w.logger.InfoContext(ctx, "Session already exported, skipping", log.FieldSessionID, sessionID)
		return nil
	}

	summary, err := w.sessions.GetSessionSummary(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session summary: %w", err)
	}
	if !summary.Session.Closed() {
		return core.E(core.KindState, "export_session", core.CodeSessionStillActive,
			fmt.Sprintf("session %d is still active", sessionID))
	}

	txs, err := w.ledger.ListForExport(ctx, core.TransactionFilter{SessionID: &sessionID})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	start := time.Now()
	ref, err := w.exporter.ExportSession(ctx, summary, txs)
	if err != nil {
		return fmt.Errorf("export session %d: %w", sessionID, err)
	}
	w.unrecorded[sessionID] = ref

	w.logger.InfoContext(ctx, "Session exported",
		log.FieldSessionID, sessionID,
		log.FieldOperation, log.OpExport,
		"transactions", len(txs),
		"ref", ref,
		log.FieldDuration, time.Since(start).Milliseconds())
	w.record(ctx, sessionID, ref)
	return nil
}

// record writes the export record. On failure the session stays in
// unrecorded and the next attempt retries only the record. Caller holds mu.
func (w *ExportWorker) record(ctx context.Context, sessionID int64, ref string) {
	if err := w.sessions.MarkExported(ctx, sessionID, ref); err != nil {
		w.logger.ErrorContext(ctx, "Failed to record export", log.FieldSessionID, sessionID, log.FieldError, err)
		return
	}
	delete(w.unrecorded, sessionID)
}

// SyncPending exports closed sessions that have no export record yet. It
// pages by id, so sessions that keep failing do not hide newer ones.
func (w *ExportWorker) SyncPending(ctx context.Context) error {
	var (
		after                 int64
		total, synced, failed int
	)
	for {
		page, err := w.sessions.PendingExports(ctx, after, w.batchSize)
		if err != nil {
			return fmt.Errorf("list pending exports: %w", err)
		}
		for _, s := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			total++
			after = s.ID
			if err := w.ExportSession(ctx, s.ID); err != nil {
				w.logger.ErrorContext(ctx, "Failed to export pending session", log.FieldSessionID, s.ID, log.FieldError, err)
				failed++
				continue
			}
			synced++
		}
		if len(page) < w.batchSize {
			break
		}
	}
	if total == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "Pending export sweep completed",
		"total", total,
		"synced", synced,
		"errors", failed)
	return nil
}

// Run sweeps once at startup, then consumes events and sweeps every interval
// until ctx is cancelled. A nil source disables the event path.
func (w *ExportWorker) Run(ctx context.Context, source EventSource, interval time.Duration) error {
	if err := w.SyncPending(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup export sweep failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if source != nil {
		g.Go(func() error {
			return source.Consume(ctx, w.HandleEvent)
		})
	}
	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := w.SyncPending(ctx); err != nil {
						w.logger.ErrorContext(ctx, "Periodic export sweep failed", log.FieldError, err)
					}
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
