package services

import (
	"context"
	"fmt"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/storage"
)

// SessionService owns the session lifecycle: NONE -> ACTIVE -> CLOSED.
type SessionService struct {
	base
}

func NewSessionService(gw *storage.Gateway, opts ...Option) *SessionService {
	return &SessionService{base: newBase(gw, log.ComponentSession, opts)}
}

// CreateSession opens a new session. The active-session check and the insert
// share one critical section.
func (s *SessionService) CreateSession(ctx context.Context, in core.NewSession) (core.Session, error) {
	const op = "create_session"
	if err := in.Validate(); err != nil {
		return core.Session{}, err
	}

	var created core.Session
	err := s.gw.Update(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		active, err := s.activeIn(ctx, q)
		if err != nil {
			return err
		}
		if active != nil {
			return core.E(core.KindConflict, op, core.CodeActiveSessionExists,
				fmt.Sprintf("session %d is already active", active.ID))
		}
		created, err = q.InsertSession(ctx, in.OperatorName, in.OpeningAmount, s.now())
		return err
	})
	if err != nil {
		return core.Session{}, err
	}

	s.logger.InfoContext(ctx, "Session opened",
		log.NewFields().WithSession(created.ID, created.OperatorName).
			WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, core.LedgerEvent{Type: core.EventSessionOpened, SessionID: created.ID})
	return created, nil
}

// CloseSession records the counted closing amount and ends the session.
func (s *SessionService) CloseSession(ctx context.Context, in core.CloseSession) (core.Session, error) {
	const op = "close_session"
	if err := in.Validate(); err != nil {
		return core.Session{}, err
	}

	var closed core.Session
	err := s.gw.Update(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		current, err := s.getIn(ctx, q, op, in.SessionID)
		if err != nil {
			return err
		}
		if current.Closed() {
			return core.E(core.KindState, op, core.CodeSessionClosed,
				fmt.Sprintf("session %d is already closed", current.ID))
		}
		closed, err = q.CloseSession(ctx, current.ID, in.ClosingAmount, s.now())
		return err
	})
	if err != nil {
		return core.Session{}, err
	}

	s.logger.InfoContext(ctx, "Session closed",
		log.NewFields().WithSession(closed.ID, closed.OperatorName).
			WithOperation(log.OpClose).ToSlice()...)
	s.publish(ctx, core.LedgerEvent{Type: core.EventSessionClosed, SessionID: closed.ID})
	return closed, nil
}

// GetSession returns a session by id.
func (s *SessionService) GetSession(ctx context.Context, id int64) (core.Session, error) {
	const op = "get_session"
	var out core.Session
	err := s.gw.View(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = s.getIn(ctx, q, op, id)
		return err
	})
	return out, err
}

// GetActiveSession returns the active session, or nil when none is open.
func (s *SessionService) GetActiveSession(ctx context.Context) (*core.Session, error) {
	var out *core.Session
	err := s.gw.View(ctx, "get_active_session", func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = s.activeIn(ctx, q)
		return err
	})
	return out, err
}

func (s *SessionService) HasActiveSession(ctx context.Context) (bool, error) {
	active, err := s.GetActiveSession(ctx)
	return active != nil, err
}

// GetSessionSummary aggregates a session's transactions into balances.
func (s *SessionService) GetSessionSummary(ctx context.Context, id int64) (core.SessionSummary, error) {
	const op = "get_session_summary"
	var out core.SessionSummary
	err := s.gw.View(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		session, err := s.getIn(ctx, q, op, id)
		if err != nil {
			return err
		}
		out, err = s.summaryIn(ctx, q, session)
		return err
	})
	return out, err
}

// The *In helpers run inside a caller's critical section and never touch the
// gateway themselves.

func (s *SessionService) getIn(ctx context.Context, q *storage.Queries, op string, id int64) (core.Session, error) {
	session, err := q.GetSession(ctx, id)
	if isNoRows(err) {
		return core.Session{}, core.E(core.KindNotFound, op, core.CodeSessionNotFound,
			fmt.Sprintf("session %d not found", id))
	}
	return session, err
}

func (s *SessionService) activeIn(ctx context.Context, q *storage.Queries) (*core.Session, error) {
	session, err := q.GetActiveSession(ctx)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) summaryIn(ctx context.Context, q *storage.Queries, session core.Session) (core.SessionSummary, error) {
	totals, err := q.SessionTotals(ctx, session.ID)
	if err != nil {
		return core.SessionSummary{}, err
	}
	return core.NewSessionSummary(session, totals.Income, totals.Expense, totals.IncomeCount, totals.ExpenseCount), nil
}

// balanceIn is opening + income - expense for the session.
func (s *SessionService) balanceIn(ctx context.Context, q *storage.Queries, session core.Session) (core.Money, error) {
	sum, err := s.summaryIn(ctx, q, session)
	if err != nil {
		return core.Money{}, err
	}
	return sum.CurrentBalance, nil
}

// PendingExports lists closed sessions that have not been exported yet, after
// afterID. Callers page by passing the last id they saw.
func (s *SessionService) PendingExports(ctx context.Context, afterID int64, limit int) ([]core.Session, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	var out []core.Session
	err := s.gw.View(ctx, "pending_exports", func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.ListUnexportedSessions(ctx, afterID, limit)
		return err
	})
	return out, err
}

// MarkExported records a successful export of a closed session.
func (s *SessionService) MarkExported(ctx context.Context, id int64, ref string) error {
	const op = "mark_exported"
	return s.gw.Update(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		session, err := s.getIn(ctx, q, op, id)
		if err != nil {
			return err
		}
		if !session.Closed() {
			return core.E(core.KindState, op, core.CodeSessionStillActive,
				fmt.Sprintf("session %d is still active", id))
		}
		return q.MarkSessionExported(ctx, id, ref, s.now())
	})
}

// Exported reports whether a session already has an export record.
func (s *SessionService) Exported(ctx context.Context, id int64) (bool, error) {
	var done bool
	err := s.gw.View(ctx, "session_exported", func(ctx context.Context, q *storage.Queries) error {
		var err error
		done, err = q.IsSessionExported(ctx, id)
		return err
	})
	return done, err
}
