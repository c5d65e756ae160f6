package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// TransactionNumberBase is added to the row count to derive TR-NNNN numbers.
const TransactionNumberBase = 1000

// DateLayout is the calendar date format used by filters and summaries.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	// Date is a calendar date; time-of-day is ignored.
	Date struct {
		time.Time
	}

	Session struct {
		ID            int64      `json:"id"`
		OperatorName  string     `json:"operator_name"`
		OpeningAmount Money      `json:"opening_amount"`
		ClosingAmount *Money     `json:"closing_amount"`
		OpenedAt      time.Time  `json:"opened_at"`
		ClosedAt      *time.Time `json:"closed_at"`
		IsActive      bool       `json:"is_active"`
	}

	Transaction struct {
		ID                int64           `json:"id"`
		SessionID         int64           `json:"session_id"`
		TransactionNumber string          `json:"transaction_number"`
		Type              TransactionType `json:"transaction_type"`
		Amount            Money           `json:"amount"`
		Concept           string          `json:"concept"`
		CategoryID        *int64          `json:"category_id"`
		CategoryName      *string         `json:"category_name"`
		CreatedAt         time.Time       `json:"created_at"`
		CreatedBy         string          `json:"created_by"`
	}

	Category struct {
		ID       int64           `json:"id"`
		Name     string          `json:"name"`
		Type     TransactionType `json:"category_type"`
		IsActive bool            `json:"is_active"`
	}

	// NewSession is the input of a session opening.
	NewSession struct {
		OperatorName  string `json:"operator_name"`
		OpeningAmount Money  `json:"opening_amount"`
	}

	// CloseSession is the input of a session close.
	CloseSession struct {
		SessionID     int64 `json:"session_id"`
		ClosingAmount Money `json:"closing_amount"`
	}

	// NewTransaction is the input of a transaction creation.
	NewTransaction struct {
		SessionID  int64           `json:"session_id"`
		Type       TransactionType `json:"transaction_type"`
		Amount     Money           `json:"amount"`
		Concept    string          `json:"concept"`
		CategoryID *int64          `json:"category_id"`
		CreatedBy  string          `json:"created_by"`
	}

	// TransactionFilter narrows ledger reads. Nil/zero fields do not filter.
	TransactionFilter struct {
		SessionID  *int64
		Type       TransactionType
		StartDate  *Date
		EndDate    *Date
		CategoryID *int64
		Limit      int
		Offset     int
	}

	// TransactionPage is one page of a filtered read plus the unpaged match count.
	TransactionPage struct {
		Transactions []Transaction `json:"transactions"`
		TotalCount   int64         `json:"total_count"`
	}
)

// Valid reports whether t is income or expense.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTransactionType normalizes and validates a type string.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", E(KindValidation, "parse_type", CodeInvalidType,
			fmt.Sprintf("transaction type must be 'income' or 'expense', got %q", s))
	}
	return t, nil
}

// FormatTransactionNumber renders the human-facing number for a sequence value.
func FormatTransactionNumber(seq int64) string {
	return fmt.Sprintf("TR-%04d", seq)
}

// NextTransactionNumber derives the number of the next row from the current row count.
func NextTransactionNumber(count int64) string {
	return FormatTransactionNumber(TransactionNumberBase + count + 1)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDateIn(t.Year(), int(t.Month()), t.Day(), t.Location())
}

// NewDateIn creates a Date in a specific location.
func NewDateIn(year, month, day int, loc *time.Location) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return Date{}, E(KindValidation, "parse_date", CodeInvalidDateRange,
			fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s))
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Validate checks the opening input.
func (s NewSession) Validate() error {
	if strings.TrimSpace(s.OperatorName) == "" {
		return E(KindValidation, "create_session", CodeOperatorRequired, "operator name is required")
	}
	if s.OpeningAmount.IsNegative() {
		return E(KindValidation, "create_session", CodeNegativeOpening, "opening amount cannot be negative")
	}
	return nil
}

// Validate checks the closing input.
func (c CloseSession) Validate() error {
	if c.ClosingAmount.IsNegative() {
		return E(KindValidation, "close_session", CodeNegativeClosing, "closing amount cannot be negative")
	}
	return nil
}

// Validate checks concept, amount and type, in that order.
func (t NewTransaction) Validate() error {
	if strings.TrimSpace(t.Concept) == "" {
		return E(KindValidation, "create_transaction", CodeConceptRequired, "concept is required")
	}
	if !t.Amount.IsPositive() {
		return E(KindValidation, "create_transaction", CodeAmountNotPositive, "amount must be greater than zero")
	}
	if !t.Type.Valid() {
		return E(KindValidation, "create_transaction", CodeInvalidType, "transaction type must be 'income' or 'expense'")
	}
	return nil
}

// Validate checks paging and date bounds.
func (f TransactionFilter) Validate() error {
	if f.Limit < 0 || f.Offset < 0 {
		return E(KindValidation, "get_transactions", CodeInvalidPaging, "limit and offset cannot be negative")
	}
	if f.Type != "" && !f.Type.Valid() {
		return E(KindValidation, "get_transactions", CodeInvalidType, "transaction type must be 'income' or 'expense'")
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(f.EndDate.Time) {
		return E(KindValidation, "get_transactions", CodeInvalidDateRange, "start date is after end date")
	}
	return nil
}

// Closed reports whether the session has been closed.
func (s Session) Closed() bool {
	return !s.IsActive
}
