package amqp

import (
	"encoding/json"
	"fmt"

	"caja/internal/core"
)

// EncodeEvent serializes a ledger event for the wire.
func EncodeEvent(ev core.LedgerEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a delivery body. Events without a type are rejected.
func DecodeEvent(data []byte) (core.LedgerEvent, error) {
	var ev core.LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.LedgerEvent{}, err
	}
	if ev.Type == "" {
		return core.LedgerEvent{}, fmt.Errorf("event without type")
	}
	return ev, nil
}
