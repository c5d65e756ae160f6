package services

import (
	"context"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/storage"
)

// SummaryService computes per-date aggregates. It only reads.
type SummaryService struct {
	base
	sessions *SessionService
}

func NewSummaryService(gw *storage.Gateway, sessions *SessionService, opts ...Option) *SummaryService {
	return &SummaryService{base: newBase(gw, log.ComponentSummary, opts), sessions: sessions}
}

// DailySummary aggregates transactions created on date. CurrentBalance is the
// balance of the session active right now (zero if none), whatever the date.
func (s *SummaryService) DailySummary(ctx context.Context, date core.Date) (core.DailySummary, error) {
	var out core.DailySummary
	err := s.gw.View(ctx, "daily_summary", func(ctx context.Context, q *storage.Queries) error {
		totals, err := q.DayTotals(ctx, date)
		if err != nil {
			return err
		}
		var balance core.Money
		active, err := s.sessions.activeIn(ctx, q)
		if err != nil {
			return err
		}
		if active != nil {
			if balance, err = s.sessions.balanceIn(ctx, q, *active); err != nil {
				return err
			}
		}
		out = totals.Daily(date, balance)
		return nil
	})
	return out, err
}

func (s *SummaryService) TodaySummary(ctx context.Context) (core.DailySummary, error) {
	return s.DailySummary(ctx, s.today())
}

// TodayTransactionsSummary is today's aggregation with the total row count.
func (s *SummaryService) TodayTransactionsSummary(ctx context.Context) (core.TransactionsSummary, error) {
	today := s.today()
	var out core.TransactionsSummary
	err := s.gw.View(ctx, "today_transactions_summary", func(ctx context.Context, q *storage.Queries) error {
		totals, err := q.DayTotals(ctx, today)
		if err != nil {
			return err
		}
		out = totals.Transactions(today)
		return nil
	})
	return out, err
}

func (s *SummaryService) today() core.Date {
	return core.DateOf(s.now().Local())
}
