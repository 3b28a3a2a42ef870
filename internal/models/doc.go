// Package models defines the core domain models for the shared ledger.
//
// # Ledger Models
//
// A Group owns Participants and Expenses. Each Expense is paid by one
// participant and split across participants through ExpenseSplit rows whose
// meaning depends on the expense's SplitMode. Documents (receipts, photos)
// belong to at most one expense at a time.
//
// # Recurring Expenses
//
// An Expense whose RecurrenceRule is not RuleNone is the head of a series.
// The series is tracked by RecurrenceLink rows forming a forward chain:
//
//	template ── link#1 (closed) ──▶ occurrence#1 ── link#2 (pending) ──▶ ...
//
// A pending link records the date the next occurrence becomes due. When an
// occurrence is materialized the link is closed and a new pending link is
// appended for the new occurrence. Closed links are never modified.
//
// # Design Principles
//
//  1. Amounts are integer minor units (cents); never floats.
//  2. All dates are UTC instants; recurrence arithmetic works on UTC components.
//  3. Relationships use ID strings, not pointers.
package models
