package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/storage"
)

// Publisher receives ledger events after the originating write has committed.
type Publisher interface {
	Publish(ctx context.Context, ev core.LedgerEvent) error
}

// Option customizes a service.
type Option func(*base)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithPublisher attaches an event publisher. Without one, events are dropped.
func WithPublisher(p Publisher) Option {
	return func(b *base) { b.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(b *base) { b.logger = l }
}

type base struct {
	gw        *storage.Gateway
	logger    *log.Logger
	now       func() time.Time
	publisher Publisher
}

func newBase(gw *storage.Gateway, component string, opts []Option) base {
	b := base{gw: gw, now: time.Now}
	for _, opt := range opts {
		opt(&b)
	}
	if b.logger == nil {
		b.logger = log.FromContext(context.Background())
	}
	b.logger = b.logger.WithComponent(component)
	return b
}

// publish never fails the caller; the write it reports is already durable.
func (b *base) publish(ctx context.Context, ev core.LedgerEvent) {
	if b.publisher == nil {
		return
	}
	ev.Timestamp = b.now()
	if err := b.publisher.Publish(ctx, ev); err != nil {
		b.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldEventType, string(ev.Type),
			log.FieldSessionID, ev.SessionID,
			log.FieldError, err)
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
