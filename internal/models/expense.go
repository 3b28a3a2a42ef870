package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SplitMode says how ExpenseSplit shares are interpreted.
type SplitMode string

const (
	SplitEvenly       SplitMode = "EVENLY"
	SplitByShares     SplitMode = "BY_SHARES"
	SplitByPercentage SplitMode = "BY_PERCENTAGE"
	SplitByAmount     SplitMode = "BY_AMOUNT"
)

// Valid reports whether m is a known split mode.
func (m SplitMode) Valid() bool {
	switch m {
	case SplitEvenly, SplitByShares, SplitByPercentage, SplitByAmount:
		return true
	}
	return false
}

var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrEmptyTitle            = errors.New("empty title")
	ErrMissingDate           = errors.New("missing expense date")
	ErrMissingPayer          = errors.New("missing payer")
	ErrNoSplits              = errors.New("expense must be split with at least one participant")
	ErrInvalidShares         = errors.New("split shares must be positive")
	ErrInvalidSplitMode      = errors.New("invalid split mode")
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")
)

// Expense is a single ledger entry: either a one-off expense, the template
// of a recurring series, or a materialized occurrence of one.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group that owns this expense.
	GroupID string

	// ExpenseDate is the date the expense is effective on.
	ExpenseDate time.Time

	Title      string
	CategoryID int64

	// Amount is the expense total in the group currency, in minor units.
	Amount int64

	// OriginalAmount, OriginalCurrency and ConversionRate describe an expense
	// entered in a foreign currency. All are optional.
	OriginalAmount   *int64
	OriginalCurrency string
	ConversionRate   decimal.NullDecimal

	// PaidByID is the participant who paid.
	PaidByID string

	IsReimbursement bool
	SplitMode       SplitMode
	RecurrenceRule  RecurrenceRule
	Notes           string

	// CreatedAt is when the row was written.
	CreatedAt time.Time

	// PaidFor lists the participants the expense is split with.
	PaidFor []ExpenseSplit

	// Documents are the attachments currently owned by this expense.
	// Populated on detail reads only.
	Documents []Document

	// DocumentCount is populated on list reads instead of Documents.
	DocumentCount int

	// Link is the recurrence link whose current frame is this expense, if any.
	// Populated on detail reads only.
	Link *RecurrenceLink
}

// ExpenseSplit joins an expense to a participant with a shares weight.
type ExpenseSplit struct {
	ExpenseID     string
	ParticipantID string
	Shares        int64
}

// Document is a media attachment. ExpenseID is empty when detached.
type Document struct {
	ID        string
	URL       string
	Width     int
	Height    int
	ExpenseID string
}

// Validate checks the fields a caller must supply before an expense is saved.
func (e *Expense) Validate() error {
	if e.ExpenseDate.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.Amount == 0 {
		return ErrInvalidAmount
	}
	if e.PaidByID == "" {
		return ErrMissingPayer
	}
	if !e.SplitMode.Valid() {
		return ErrInvalidSplitMode
	}
	if !e.RecurrenceRule.Valid() {
		return ErrInvalidRecurrenceRule
	}
	if len(e.PaidFor) == 0 {
		return ErrNoSplits
	}
	for _, s := range e.PaidFor {
		if s.Shares <= 0 {
			return ErrInvalidShares
		}
	}
	return nil
}

// ParticipantIDs returns the payer followed by every split participant.
func (e *Expense) ParticipantIDs() []string {
	ids := make([]string, 0, len(e.PaidFor)+1)
	ids = append(ids, e.PaidByID)
	for _, s := range e.PaidFor {
		ids = append(ids, s.ParticipantID)
	}
	return ids
}
