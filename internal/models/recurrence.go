package models

import "time"

// RecurrenceRule is how often a recurring expense repeats.
type RecurrenceRule string

const (
	RuleNone    RecurrenceRule = "NONE"
	RuleDaily   RecurrenceRule = "DAILY"
	RuleWeekly  RecurrenceRule = "WEEKLY"
	RuleMonthly RecurrenceRule = "MONTHLY"
)

// Valid reports whether r is a known rule.
func (r RecurrenceRule) Valid() bool {
	switch r {
	case RuleNone, RuleDaily, RuleWeekly, RuleMonthly:
		return true
	}
	return false
}

// Recurring reports whether r produces further occurrences.
func (r RecurrenceRule) Recurring() bool {
	return r.Valid() && r != RuleNone
}

// RecurrenceLink is one cursor of a recurring series: it points at the most
// recently materialized expense and the date its successor is due.
type RecurrenceLink struct {
	ID      string
	GroupID string

	// CurrentFrameExpenseID is the expense the next occurrence is cloned from.
	// At most one link references a given expense.
	CurrentFrameExpenseID string

	// NextExpenseDate is when the next occurrence becomes due.
	NextExpenseDate time.Time

	// NextExpenseCreatedAt is nil while the link is pending and set once the
	// successor has been materialized.
	NextExpenseCreatedAt *time.Time
}

// Pending reports whether the successor of this link has not been created yet.
func (l *RecurrenceLink) Pending() bool {
	return l.NextExpenseCreatedAt == nil
}

// Due reports whether a pending link's successor should exist at now.
func (l *RecurrenceLink) Due(now time.Time) bool {
	return l.Pending() && !l.NextExpenseDate.After(now)
}

// Frame is everything needed to clone an expense into its next occurrence.
type Frame struct {
	Expense

	// DocumentIDs are the documents the next occurrence takes ownership of.
	DocumentIDs []string
}
