// Package export pushes closed-session ledgers to external spreadsheets.
package export

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"caja/internal/core"
)

// Exporter receives the full ledger of one closed session.
type Exporter interface {
	ExportSession(ctx context.Context, summary core.SessionSummary, txs []core.Transaction) (ref string, err error)
}

// Header is the column layout of exported rows.
var Header = []any{"session", "number", "date", "type", "concept", "category", "amount", "created_by"}

// Rows renders transactions oldest first, one row per transaction. Expenses
// carry a negative amount so a column sum yields the session net.
func Rows(sessionID int64, txs []core.Transaction) [][]any {
	ordered := slices.Clone(txs)
	slices.SortStableFunc(ordered, func(a, b core.Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	rows := make([][]any, 0, len(ordered))
	for _, tx := range ordered {
		amount := tx.Amount.Float()
		if tx.Type == core.Expense {
			amount = -amount
		}
		category := ""
		if tx.CategoryName != nil {
			category = *tx.CategoryName
		}
		rows = append(rows, []any{
			sessionID,
			tx.TransactionNumber,
			tx.CreatedAt.Format("2006-01-02 15:04:05"),
			string(tx.Type),
			tx.Concept,
			category,
			amount,
			tx.CreatedBy,
		})
	}
	return rows
}

// ClosingRow renders the session totals line appended after its transactions.
func ClosingRow(s core.SessionSummary) []any {
	closedAt := ""
	if s.Session.ClosedAt != nil {
		closedAt = s.Session.ClosedAt.Format("2006-01-02 15:04:05")
	}
	return []any{
		s.Session.ID,
		"CIERRE",
		closedAt,
		"",
		fmt.Sprintf("Operador: %s", s.Session.OperatorName),
		fmt.Sprintf("Esperado %s / Diferencia %s", s.ExpectedClosing, s.Difference),
		s.CurrentBalance.Float(),
		s.Session.OperatorName,
	}
}

// Memory keeps exported rows in process. Used when no spreadsheet is configured.
type Memory struct {
	mu   sync.Mutex
	rows [][]any
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) ExportSession(_ context.Context, summary core.SessionSummary, txs []core.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := len(m.rows) + 1
	m.rows = append(m.rows, Rows(summary.Session.ID, txs)...)
	m.rows = append(m.rows, ClosingRow(summary))
	return fmt.Sprintf("memory!%d:%d", start, len(m.rows)), nil
}

// Rows returns a copy of everything exported so far.
func (m *Memory) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows)
}
