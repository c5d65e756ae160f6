package services

import (
	"context"
	"fmt"
	"strings"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/storage"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// LedgerService validates, numbers and records transactions and answers
// filtered reads over them.
type LedgerService struct {
	base
	sessions   *SessionService
	categories *CategoryService
}

func NewLedgerService(gw *storage.Gateway, sessions *SessionService, categories *CategoryService, opts ...Option) *LedgerService {
	return &LedgerService{
		base:       newBase(gw, log.ComponentLedger, opts),
		sessions:   sessions,
		categories: categories,
	}
}

// CreateTransaction records one income or expense in the active session.
// Everything after input validation, including number allocation and the
// insert, happens in a single critical section.
func (l *LedgerService) CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	const op = "create_transaction"
	in.Concept = strings.TrimSpace(in.Concept)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := l.gw.Update(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		active, err := l.sessions.activeIn(ctx, q)
		if err != nil {
			return err
		}
		if active == nil {
			return core.E(core.KindConflict, op, core.CodeNoActiveSession, "there is no active session")
		}
		if active.ID != in.SessionID {
			return core.E(core.KindConflict, op, core.CodeSessionNotActive,
				fmt.Sprintf("session %d is not the active session", in.SessionID))
		}

		if in.Type == core.Expense {
			balance, err := l.sessions.balanceIn(ctx, q, *active)
			if err != nil {
				return err
			}
			if in.Amount.GreaterThan(balance) {
				e := core.E(core.KindInsufficientFunds, op, core.CodeInsufficientFunds,
					fmt.Sprintf("expense of %s exceeds current balance of %s", in.Amount, balance))
				e.Balance = balance
				return e
			}
		}

		var categoryName *string
		if in.CategoryID != nil {
			cat, err := l.categories.requireActiveIn(ctx, q, op, *in.CategoryID)
			if err != nil {
				return err
			}
			if cat.Type != in.Type {
				return core.E(core.KindCategoryMismatch, op, core.CodeCategoryMismatch,
					fmt.Sprintf("category %q is for %s, not %s", cat.Name, cat.Type, in.Type))
			}
			categoryName = &cat.Name
		}

		count, err := q.CountTransactions(ctx)
		if err != nil {
			return err
		}

		createdBy := strings.TrimSpace(in.CreatedBy)
		if createdBy == "" {
			createdBy = active.OperatorName
		}

		id, err := q.InsertTransaction(ctx, storage.InsertTransactionParams{
			SessionID:         in.SessionID,
			TransactionNumber: core.NextTransactionNumber(count),
			Type:              in.Type,
			Amount:            in.Amount,
			Concept:           in.Concept,
			CategoryID:        in.CategoryID,
			CategoryName:      categoryName,
			CreatedAt:         l.now(),
			CreatedBy:         createdBy,
		})
		if err != nil {
			return err
		}
		created, err = q.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	l.logger.InfoContext(ctx, "Transaction recorded",
		log.NewFields().
			WithTransaction(created.ID, created.TransactionNumber, string(created.Type), created.Amount.Cents).
			WithSession(created.SessionID, "").
			WithOperation(log.OpCreate).ToSlice()...)
	l.publish(ctx, core.LedgerEvent{
		Type:              core.EventTransactionCreated,
		SessionID:         created.SessionID,
		TransactionID:     created.ID,
		TransactionNumber: created.TransactionNumber,
	})
	return created, nil
}

// GetTransactionByID returns one transaction joined with its category name.
func (l *LedgerService) GetTransactionByID(ctx context.Context, id int64) (core.Transaction, error) {
	const op = "get_transaction"
	var out core.Transaction
	err := l.gw.View(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.GetTransaction(ctx, id)
		if isNoRows(err) {
			return core.E(core.KindNotFound, op, core.CodeTransactionNotFound,
				fmt.Sprintf("transaction %d not found", id))
		}
		return err
	})
	return out, err
}

// GetTransactions returns one newest-first page and the unpaged match count.
// Both come from the same predicate in the same critical section.
func (l *LedgerService) GetTransactions(ctx context.Context, f core.TransactionFilter) (core.TransactionPage, error) {
	if err := f.Validate(); err != nil {
		return core.TransactionPage{}, err
	}
	f.Limit = clampLimit(f.Limit)

	var page core.TransactionPage
	err := l.gw.View(ctx, "get_transactions", func(ctx context.Context, q *storage.Queries) error {
		var err error
		if page.Transactions, err = q.ListTransactions(ctx, f); err != nil {
			return err
		}
		page.TotalCount, err = q.CountFilteredTransactions(ctx, f)
		return err
	})
	return page, err
}

// SearchTransactions matches query as a substring of concept or number.
// An empty query matches every transaction.
func (l *LedgerService) SearchTransactions(ctx context.Context, query string, limit, offset int) (core.TransactionPage, error) {
	const op = "search_transactions"
	if limit < 0 || offset < 0 {
		return core.TransactionPage{}, core.E(core.KindValidation, op, core.CodeInvalidPaging, "limit and offset cannot be negative")
	}
	limit = clampLimit(limit)
	pattern := storage.LikePattern(strings.TrimSpace(query))

	var page core.TransactionPage
	err := l.gw.View(ctx, op, func(ctx context.Context, q *storage.Queries) error {
		var err error
		if page.Transactions, err = q.SearchTransactions(ctx, pattern, limit, offset); err != nil {
			return err
		}
		page.TotalCount, err = q.CountSearchTransactions(ctx, pattern)
		return err
	})
	return page, err
}

// RecentTransactions returns the newest transactions, optionally for one session.
func (l *LedgerService) RecentTransactions(ctx context.Context, sessionID *int64, limit int) ([]core.Transaction, error) {
	if limit < 0 {
		return nil, core.E(core.KindValidation, "recent_transactions", core.CodeInvalidPaging, "limit cannot be negative")
	}
	page, err := l.GetTransactions(ctx, core.TransactionFilter{SessionID: sessionID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return page.Transactions, nil
}

// ListForExport is the read contract used by exporters: date range, type and
// category filters, no paging.
func (l *LedgerService) ListForExport(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	f.Limit, f.Offset = 0, 0
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var out []core.Transaction
	err := l.gw.View(ctx, "list_for_export", func(ctx context.Context, q *storage.Queries) error {
		var err error
		out, err = q.ListTransactions(ctx, f)
		return err
	})
	return out, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
