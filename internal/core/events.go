package core

import "time"

// EventType names a ledger fact published after commit.
type EventType string

const (
	EventSessionOpened      EventType = "session.opened"
	EventSessionClosed      EventType = "session.closed"
	EventTransactionCreated EventType = "transaction.created"
)

// LedgerEvent is a lightweight notification; consumers re-read details from the ledger.
type LedgerEvent struct {
	Type              EventType `json:"type"`
	SessionID         int64     `json:"session_id"`
	TransactionID     int64     `json:"transaction_id,omitempty"`
	TransactionNumber string    `json:"transaction_number,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
