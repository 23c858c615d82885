package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/core"
)

// Event names double as routing keys on the direct exchange.
const (
	EventExpenseAdded   = "expense.added"
	EventExpenseRemoved = "expense.removed"
)

// ExpenseEvent describes a change to the ledger.
type ExpenseEvent struct {
	Event         string    `json:"event"`
	ID            string    `json:"id"`
	Description   string    `json:"description"`
	AmountCents   int64     `json:"amount_cents"`
	AmountMissing bool      `json:"amount_missing,omitempty"`
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an event for e stamped with the current time.
func NewExpenseEvent(event string, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Event:         event,
		ID:            e.ID,
		Description:   e.Description,
		AmountCents:   e.Amount.Cents,
		AmountMissing: e.Amount.Missing,
		Date:          e.Date.String(),
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes a message produced by ToJSON.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
