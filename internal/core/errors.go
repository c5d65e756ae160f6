package core

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures so callers can branch without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindInsufficientFunds
	KindCategoryMismatch
	KindState
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict_error"
	case KindNotFound:
		return "not_found_error"
	case KindInsufficientFunds:
		return "insufficient_funds_error"
	case KindCategoryMismatch:
		return "category_mismatch_error"
	case KindState:
		return "state_error"
	case KindStorage:
		return "storage_error"
	default:
		return "unknown_error"
	}
}

// Kind sentinels, usable with errors.Is.
var (
	ErrValidation        = kindError(KindValidation)
	ErrConflict          = kindError(KindConflict)
	ErrNotFound          = kindError(KindNotFound)
	ErrInsufficientFunds = kindError(KindInsufficientFunds)
	ErrCategoryMismatch  = kindError(KindCategoryMismatch)
	ErrState             = kindError(KindState)
	ErrStorage           = kindError(KindStorage)
)

type kindSentinel struct{ kind Kind }

func kindError(k Kind) error          { return &kindSentinel{kind: k} }
func (s *kindSentinel) Error() string { return s.kind.String() }

// Error codes identify the precise rule that failed. They drive localized
// rendering at the presentation boundary.
const (
	CodeOperatorRequired    = "operator_required"
	CodeNegativeOpening     = "negative_opening_amount"
	CodeNegativeClosing     = "negative_closing_amount"
	CodeConceptRequired     = "concept_required"
	CodeAmountNotPositive   = "amount_not_positive"
	CodeInvalidType         = "invalid_transaction_type"
	CodeCategoryName        = "category_name_required"
	CodeInvalidPaging       = "invalid_paging"
	CodeInvalidDateRange    = "invalid_date_range"
	CodeActiveSessionExists = "active_session_exists"
	CodeNoActiveSession     = "no_active_session"
	CodeSessionNotActive    = "session_not_active"
	CodeSessionClosed       = "session_already_closed"
	CodeSessionStillActive  = "session_still_active"
	CodeSessionNotFound     = "session_not_found"
	CodeTransactionNotFound = "transaction_not_found"
	CodeCategoryNotFound    = "category_not_found"
	CodeInsufficientFunds   = "insufficient_funds"
	CodeCategoryMismatch    = "category_type_mismatch"
	CodeBackupFailed        = "backup_failed"
	CodeBackupNotFound      = "backup_not_found"
	CodeInvalidRequest      = "invalid_request"
)

// Error is the single error type returned by ledger operations.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "create_transaction"
	Code    string
	Message string
	// Balance carries the current balance for insufficient funds failures.
	Balance Money
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so errors.Is(err, ErrConflict) works through wrapping.
func (e *Error) Is(target error) bool {
	if s, ok := target.(*kindSentinel); ok {
		return s.kind == e.Kind
	}
	return false
}

// E builds an Error of the given kind.
func E(kind Kind, op, code, message string) *Error {
	return &Error{Kind: kind, Op: op, Code: code, Message: message}
}

// StorageError wraps a persistence failure.
func StorageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Message: "storage failure", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
