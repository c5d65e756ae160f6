// Package commands is the operation surface consumed by presentation layers.
// Every call returns the same envelope, and failures carry a localized message.
package commands

import (
	"context"
	"errors"

	"caja/internal/core"
	"caja/internal/log"
	"caja/internal/services"
)

// Response is the uniform result envelope.
type Response struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Dispatcher routes commands to the ledger services.
type Dispatcher struct {
	Sessions   *services.SessionService
	Ledger     *services.LedgerService
	Categories *services.CategoryService
	Summary    *services.SummaryService
	Backups    *services.BackupService
	Currency   string
	Logger     *log.Logger
}

func asError(err error, target **core.Error) bool {
	return errors.As(err, target)
}

func (d *Dispatcher) ok(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail logs err and renders the failure envelope.
func (d *Dispatcher) Fail(ctx context.Context, op string, err error) Response {
	kind := core.KindOf(err)
	logger := d.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	fields := log.NewFields().WithOperation(op).WithError(err).WithErrorKind(kind.String()).ToSlice()
	if kind == core.KindStorage || kind == core.KindUnknown {
		logger.ErrorContext(ctx, "Command failed", fields...)
	} else {
		logger.DebugContext(ctx, "Command rejected", fields...)
	}
	return Response{Success: false, Error: Localize(err, d.Currency), ErrorKind: kind.String()}
}

func (d *Dispatcher) respond(ctx context.Context, op string, data any, err error) Response {
	if err != nil {
		return d.Fail(ctx, op, err)
	}
	return d.ok(data)
}

// ==================== Sessions ====================

type CreateSessionRequest struct {
	OperatorName  string     `json:"operator_name"`
	OpeningAmount core.Money `json:"opening_amount"`
}

func (d *Dispatcher) CreateSession(ctx context.Context, req CreateSessionRequest) Response {
	s, err := d.Sessions.CreateSession(ctx, core.NewSession(req))
	return d.respond(ctx, "create_session", s, err)
}

// GetActiveSession returns the session or a null payload when none is open.
func (d *Dispatcher) GetActiveSession(ctx context.Context) Response {
	s, err := d.Sessions.GetActiveSession(ctx)
	if err != nil {
		return d.Fail(ctx, "get_active_session", err)
	}
	if s == nil {
		return Response{Success: true}
	}
	return d.ok(s)
}

type CloseSessionRequest struct {
	SessionID     int64      `json:"session_id"`
	ClosingAmount core.Money `json:"closing_amount"`
}

func (d *Dispatcher) CloseSession(ctx context.Context, req CloseSessionRequest) Response {
	s, err := d.Sessions.CloseSession(ctx, core.CloseSession(req))
	return d.respond(ctx, "close_session", s, err)
}

func (d *Dispatcher) GetSessionSummary(ctx context.Context, sessionID int64) Response {
	sum, err := d.Sessions.GetSessionSummary(ctx, sessionID)
	return d.respond(ctx, "get_session_summary", sum, err)
}

func (d *Dispatcher) HasActiveSession(ctx context.Context) Response {
	ok, err := d.Sessions.HasActiveSession(ctx)
	return d.respond(ctx, "has_active_session", ok, err)
}

func (d *Dispatcher) GetTodaySummary(ctx context.Context) Response {
	sum, err := d.Summary.TodaySummary(ctx)
	return d.respond(ctx, "get_today_summary", sum, err)
}

// GetDailySummary accepts a YYYY-MM-DD date.
func (d *Dispatcher) GetDailySummary(ctx context.Context, date string) Response {
	day, err := core.ParseDate(date)
	if err != nil {
		return d.Fail(ctx, "get_daily_summary", err)
	}
	sum, err := d.Summary.DailySummary(ctx, day)
	return d.respond(ctx, "get_daily_summary", sum, err)
}

func (d *Dispatcher) GetTodayTransactionsSummary(ctx context.Context) Response {
	sum, err := d.Summary.TodayTransactionsSummary(ctx)
	return d.respond(ctx, "get_today_transactions_summary", sum, err)
}

// ==================== Transactions ====================

func (d *Dispatcher) CreateTransaction(ctx context.Context, req core.NewTransaction) Response {
	tr, err := d.Ledger.CreateTransaction(ctx, req)
	return d.respond(ctx, "create_transaction", tr, err)
}

func (d *Dispatcher) GetTransactionByID(ctx context.Context, id int64) Response {
	tr, err := d.Ledger.GetTransactionByID(ctx, id)
	return d.respond(ctx, "get_transaction", tr, err)
}

// GetTransactionsRequest carries filters as they arrive from a client.
type GetTransactionsRequest struct {
	SessionID       *int64 `json:"session_id"`
	TransactionType string `json:"transaction_type"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	CategoryID      *int64 `json:"category_id"`
	Limit           int    `json:"limit"`
	Offset          int    `json:"offset"`
}

// Filter converts the request into a ledger filter.
func (r GetTransactionsRequest) Filter() (core.TransactionFilter, error) {
	f := core.TransactionFilter{
		SessionID:  r.SessionID,
		CategoryID: r.CategoryID,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
	if r.TransactionType != "" {
		t, err := core.ParseTransactionType(r.TransactionType)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if r.StartDate != "" {
		d, err := core.ParseDate(r.StartDate)
		if err != nil {
			return f, err
		}
		f.StartDate = &d
	}
	if r.EndDate != "" {
		d, err := core.ParseDate(r.EndDate)
		if err != nil {
			return f, err
		}
		f.EndDate = &d
	}
	return f, nil
}

func (d *Dispatcher) GetTransactions(ctx context.Context, req GetTransactionsRequest) Response {
	f, err := req.Filter()
	if err != nil {
		return d.Fail(ctx, "get_transactions", err)
	}
	page, err := d.Ledger.GetTransactions(ctx, f)
	return d.respond(ctx, "get_transactions", page, err)
}

func (d *Dispatcher) GetRecentTransactions(ctx context.Context, sessionID *int64, limit int) Response {
	rows, err := d.Ledger.RecentTransactions(ctx, sessionID, limit)
	return d.respond(ctx, "get_recent_transactions", rows, err)
}

type SearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

func (d *Dispatcher) SearchTransactions(ctx context.Context, req SearchRequest) Response {
	page, err := d.Ledger.SearchTransactions(ctx, req.Query, req.Limit, req.Offset)
	return d.respond(ctx, "search_transactions", page, err)
}

// ==================== Categories ====================

func (d *Dispatcher) GetAllCategories(ctx context.Context) Response {
	cats, err := d.Categories.List(ctx, "")
	return d.respond(ctx, "get_all_categories", cats, err)
}

func (d *Dispatcher) GetCategoriesByType(ctx context.Context, typ string) Response {
	t, err := core.ParseTransactionType(typ)
	if err != nil {
		return d.Fail(ctx, "get_categories_by_type", err)
	}
	cats, err := d.Categories.List(ctx, t)
	return d.respond(ctx, "get_categories_by_type", cats, err)
}

type CategoryRequest struct {
	Name string               `json:"name"`
	Type core.TransactionType `json:"category_type"`
}

func (d *Dispatcher) CreateCategory(ctx context.Context, req CategoryRequest) Response {
	c, err := d.Categories.Create(ctx, req.Name, req.Type)
	return d.respond(ctx, "create_category", c, err)
}

func (d *Dispatcher) RenameCategory(ctx context.Context, id int64, name string) Response {
	c, err := d.Categories.Rename(ctx, id, name)
	return d.respond(ctx, "rename_category", c, err)
}

func (d *Dispatcher) DeactivateCategory(ctx context.Context, id int64) Response {
	c, err := d.Categories.Deactivate(ctx, id)
	return d.respond(ctx, "deactivate_category", c, err)
}

// ==================== Backups ====================

type BackupRequest struct {
	Dir         string `json:"dir"`
	Description string `json:"description"`
}

func (d *Dispatcher) CreateBackup(ctx context.Context, req BackupRequest) Response {
	info, err := d.Backups.CreateBackup(ctx, req.Dir, req.Description)
	return d.respond(ctx, "create_backup", info, err)
}

func (d *Dispatcher) ListBackups(ctx context.Context, dir string) Response {
	list, err := d.Backups.ListBackups(dir)
	return d.respond(ctx, "list_backups", list, err)
}

func (d *Dispatcher) DeleteBackup(ctx context.Context, filename string) Response {
	err := d.Backups.DeleteBackup(filename)
	return d.respond(ctx, "delete_backup", map[string]string{"deleted": filename}, err)
}

func (d *Dispatcher) BackupHistory(ctx context.Context, limit int) Response {
	list, err := d.Backups.BackupHistory(ctx, limit)
	return d.respond(ctx, "backup_history", list, err)
}

func (d *Dispatcher) DatabaseInfo(ctx context.Context) Response {
	info, err := d.Backups.DatabaseInfo()
	return d.respond(ctx, "database_info", info, err)
}
