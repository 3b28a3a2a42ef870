// Package events announces ledger changes to other systems.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// OccurrenceMaterialized is the event type published after a recurring
// expense produced a new occurrence.
const OccurrenceMaterialized = "occurrence.materialized"

// OccurrenceEvent describes one materialized occurrence.
type OccurrenceEvent struct {
	Type            string    `json:"type"`
	GroupID         string    `json:"groupId"`
	LinkID          string    `json:"linkId"`
	SourceExpenseID string    `json:"sourceExpenseId"`
	ExpenseID       string    `json:"expenseId"`
	ExpenseDate     time.Time `json:"expenseDate"`
	NextExpenseDate time.Time `json:"nextExpenseDate"`
	MaterializedAt  time.Time `json:"materializedAt"`
}

// ToJSON converts the event to JSON bytes.
func (e *OccurrenceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// OccurrenceEventFromJSON decodes an event published by ToJSON.
func OccurrenceEventFromJSON(data []byte) (*OccurrenceEvent, error) {
	var e OccurrenceEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Publisher delivers events. Publishing happens after the change committed,
// so a failed publish never undoes it.
type Publisher interface {
	PublishOccurrence(ctx context.Context, event OccurrenceEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishOccurrence(context.Context, OccurrenceEvent) error { return nil }
