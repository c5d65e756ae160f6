package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"caja/internal/core"
)

// TimestampLayout is how instants are stored; date(...) in SQLite understands it.
const TimestampLayout = "2006-01-02 15:04:05"

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds every statement the ledger runs. It is only handed out inside
// a Gateway critical section.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ==================== Sessions ====================

const sessionColumns = `id, operator_name, opening_amount, closing_amount, opened_at, closed_at, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (core.Session, error) {
	var (
		s        core.Session
		opening  int64
		closing  sql.NullInt64
		openedAt string
		closedAt sql.NullString
	)
	if err := row.Scan(&s.ID, &s.OperatorName, &opening, &closing, &openedAt, &closedAt, &s.IsActive); err != nil {
		return core.Session{}, err
	}
	s.OpeningAmount = core.Cents(opening)
	if closing.Valid {
		c := core.Cents(closing.Int64)
		s.ClosingAmount = &c
	}
	t, err := parseTimestamp(openedAt)
	if err != nil {
		return core.Session{}, err
	}
	s.OpenedAt = t
	if closedAt.Valid {
		ct, err := parseTimestamp(closedAt.String)
		if err != nil {
			return core.Session{}, err
		}
		s.ClosedAt = &ct
	}
	return s, nil
}

// GetActiveSession returns sql.ErrNoRows when no session is open.
func (q *Queries) GetActiveSession(ctx context.Context) (core.Session, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE is_active = 1`)
	return scanSession(row)
}

func (q *Queries) GetSession(ctx context.Context, id int64) (core.Session, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (q *Queries) InsertSession(ctx context.Context, operator string, opening core.Money, openedAt time.Time) (core.Session, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO sessions (operator_name, opening_amount, opened_at, is_active)
		 VALUES (?, ?, ?, 1)
		 RETURNING `+sessionColumns,
		operator, opening.Cents, formatTimestamp(openedAt))
	return scanSession(row)
}

// CloseSession only touches a row that is still active; sql.ErrNoRows otherwise.
func (q *Queries) CloseSession(ctx context.Context, id int64, closing core.Money, closedAt time.Time) (core.Session, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE sessions
		 SET closing_amount = ?, closed_at = ?, is_active = 0
		 WHERE id = ? AND is_active = 1
		 RETURNING `+sessionColumns,
		closing.Cents, formatTimestamp(closedAt), id)
	return scanSession(row)
}

func (q *Queries) CountActiveSessions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE is_active = 1`).Scan(&n)
	return n, err
}

// SessionTotals aggregates a session's transactions by type.
func (q *Queries) SessionTotals(ctx context.Context, sessionID int64) (core.DayTotals, error) {
	return q.totals(ctx, `session_id = ?`, sessionID)
}

// DayTotals aggregates all transactions created on the given calendar date.
func (q *Queries) DayTotals(ctx context.Context, date core.Date) (core.DayTotals, error) {
	return q.totals(ctx, `date(created_at) = date(?)`, date.String())
}

func (q *Queries) totals(ctx context.Context, predicate string, arg any) (core.DayTotals, error) {
	var income, expense, incomeCount, expenseCount int64
	err := q.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN type = 'income' THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN type = 'expense' THEN 1 ELSE 0 END), 0)
		 FROM transactions
		 WHERE `+predicate, arg).Scan(&income, &expense, &incomeCount, &expenseCount)
	if err != nil {
		return core.DayTotals{}, err
	}
	return core.DayTotals{
		Income:       core.Cents(income),
		Expense:      core.Cents(expense),
		IncomeCount:  incomeCount,
		ExpenseCount: expenseCount,
	}, nil
}

// ==================== Transactions ====================

const transactionSelect = `SELECT
    t.id, t.session_id, t.transaction_number, t.type, t.amount,
    t.concept, t.category_id, COALESCE(c.name, t.category_name), t.created_at, t.created_by
 FROM transactions t
 LEFT JOIN categories c ON t.category_id = c.id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tr         core.Transaction
		typ        string
		amount     int64
		categoryID sql.NullInt64
		catName    sql.NullString
		createdAt  string
	)
	if err := row.Scan(&tr.ID, &tr.SessionID, &tr.TransactionNumber, &typ, &amount,
		&tr.Concept, &categoryID, &catName, &createdAt, &tr.CreatedBy); err != nil {
		return core.Transaction{}, err
	}
	tr.Type = core.TransactionType(typ)
	tr.Amount = core.Cents(amount)
	if categoryID.Valid {
		id := categoryID.Int64
		tr.CategoryID = &id
	}
	if catName.Valid {
		name := catName.String
		tr.CategoryName = &name
	}
	t, err := parseTimestamp(createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tr.CreatedAt = t
	return tr, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	out := make([]core.Transaction, 0)
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// CountTransactions returns the total number of transaction rows in the store.
func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

type InsertTransactionParams struct {
	SessionID         int64
	TransactionNumber string
	Type              core.TransactionType
	Amount            core.Money
	Concept           string
	CategoryID        *int64
	CategoryName      *string
	CreatedAt         time.Time
	CreatedBy         string
}

func (q *Queries) InsertTransaction(ctx context.Context, p InsertTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions
		    (session_id, transaction_number, type, amount, concept, category_id, category_name, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, p.TransactionNumber, string(p.Type), p.Amount.Cents, p.Concept,
		nullInt64(p.CategoryID), nullString(p.CategoryName), formatTimestamp(p.CreatedAt), p.CreatedBy)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
}

// transactionPredicate builds the WHERE clause shared by the page and count
// queries. Every caller-supplied value travels as a bound parameter.
func transactionPredicate(f core.TransactionFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.SessionID != nil {
		clauses = append(clauses, "t.session_id = ?")
		args = append(args, *f.SessionID)
	}
	if f.Type != "" {
		clauses = append(clauses, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.StartDate != nil {
		clauses = append(clauses, "date(t.created_at) >= date(?)")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		clauses = append(clauses, "date(t.created_at) <= date(?)")
		args = append(args, f.EndDate.String())
	}
	if f.CategoryID != nil {
		clauses = append(clauses, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

const newestFirst = ` ORDER BY t.created_at DESC, t.id DESC`

// ListTransactions returns the filtered rows; Limit <= 0 means unpaged.
func (q *Queries) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionPredicate(f)
	query := transactionSelect + where + newestFirst
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (q *Queries) CountFilteredTransactions(ctx context.Context, f core.TransactionFilter) (int64, error) {
	where, args := transactionPredicate(f)
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&n)
	return n, err
}

// LikePattern escapes LIKE wildcards so the query matches as a plain substring.
func LikePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}

const searchPredicate = ` WHERE t.concept LIKE ? ESCAPE '\' OR t.transaction_number LIKE ? ESCAPE '\'`

func (q *Queries) SearchTransactions(ctx context.Context, pattern string, limit, offset int) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		transactionSelect+searchPredicate+newestFirst+` LIMIT ? OFFSET ?`,
		pattern, pattern, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func (q *Queries) CountSearchTransactions(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+searchPredicate, pattern, pattern).Scan(&n)
	return n, err
}

// ==================== Categories ====================

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.IsActive); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	return c, nil
}

// ListCategories returns active categories; an empty type lists both kinds.
func (q *Queries) ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error) {
	query := `SELECT id, name, type, is_active FROM categories WHERE is_active = 1`
	var args []any
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY type, name`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, `SELECT id, name, type, is_active FROM categories WHERE id = ?`, id))
}

func (q *Queries) InsertCategory(ctx context.Context, name string, typ core.TransactionType) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, type, is_active) VALUES (?, ?, 1)
		 RETURNING id, name, type, is_active`, name, string(typ)))
}

// RenameCategory reports sql.ErrNoRows for unknown ids.
func (q *Queries) RenameCategory(ctx context.Context, id int64, name string) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ?
		 RETURNING id, name, type, is_active`, name, id))
}

func (q *Queries) DeactivateCategory(ctx context.Context, id int64) (core.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx,
		`UPDATE categories SET is_active = 0 WHERE id = ?
		 RETURNING id, name, type, is_active`, id))
}

// ==================== Backups ====================

// BackupRecord is one row of the backup history.
type BackupRecord struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Filepath    string    `json:"filepath"`
	CreatedAt   time.Time `json:"created_at"`
	SizeBytes   int64     `json:"size_bytes"`
	Description string    `json:"description"`
}

// VacuumInto writes a consistent copy of the database to path.
func (q *Queries) VacuumInto(ctx context.Context, path string) error {
	_, err := q.db.ExecContext(ctx, `VACUUM INTO ?`, path)
	return err
}

func (q *Queries) InsertBackup(ctx context.Context, b BackupRecord) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO backups (filename, filepath, created_at, size_bytes, description) VALUES (?, ?, ?, ?, ?)`,
		b.Filename, b.Filepath, formatTimestamp(b.CreatedAt), b.SizeBytes, b.Description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) ListBackups(ctx context.Context, limit int) ([]BackupRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, filename, filepath, created_at, size_bytes, description
		 FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]BackupRecord, 0)
	for rows.Next() {
		var (
			b         BackupRecord
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.Filename, &b.Filepath, &createdAt, &b.SizeBytes, &b.Description); err != nil {
			return nil, err
		}
		if b.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// ==================== Session exports ====================

// ListUnexportedSessions returns closed sessions with no export record and an
// id greater than afterID, oldest first.
func (q *Queries) ListUnexportedSessions(ctx context.Context, afterID int64, limit int) ([]core.Session, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT s.id, s.operator_name, s.opening_amount, s.closing_amount, s.opened_at, s.closed_at, s.is_active
		 FROM sessions s
		 LEFT JOIN session_exports e ON e.session_id = s.id
		 WHERE s.is_active = 0 AND e.session_id IS NULL AND s.id > ?
		 ORDER BY s.id ASC
		 LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkSessionExported is idempotent; a re-export overwrites the stored ref.
func (q *Queries) MarkSessionExported(ctx context.Context, sessionID int64, ref string, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO session_exports (session_id, exported_at, ref) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET exported_at = excluded.exported_at, ref = excluded.ref`,
		sessionID, formatTimestamp(at), ref)
	return err
}

// IsSessionExported reports whether an export record exists.
func (q *Queries) IsSessionExported(ctx context.Context, sessionID int64) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_exports WHERE session_id = ?`, sessionID).Scan(&n)
	return n > 0, err
}
