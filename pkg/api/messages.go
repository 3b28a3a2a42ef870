// Package api defines the request and response messages of the ledger RPC
// services. Messages travel as JSON; see Codec.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Group struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Information  string        `json:"information,omitempty"`
	Currency     string        `json:"currency"`
	CurrencyCode string        `json:"currencyCode,omitempty"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type ExpenseSplit struct {
	ParticipantID string `json:"participantId"`
	Shares        int64  `json:"shares"`
}

type Document struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// RecurrenceLink is the pending or closed cursor attached to an expense.
type RecurrenceLink struct {
	ID                   string     `json:"id"`
	NextExpenseDate      time.Time  `json:"nextExpenseDate"`
	NextExpenseCreatedAt *time.Time `json:"nextExpenseCreatedAt,omitempty"`
}

// ExpenseInput carries the fields a client sets on create and update.
// Amounts are in minor units.
type ExpenseInput struct {
	ExpenseDate      time.Time           `json:"expenseDate"`
	Title            string              `json:"title"`
	CategoryID       int64               `json:"categoryId"`
	Amount           int64               `json:"amount"`
	OriginalAmount   *int64              `json:"originalAmount,omitempty"`
	OriginalCurrency string              `json:"originalCurrency,omitempty"`
	ConversionRate   decimal.NullDecimal `json:"conversionRate"`
	PaidByID         string              `json:"paidById"`
	IsReimbursement  bool                `json:"isReimbursement"`
	SplitMode        string              `json:"splitMode"`
	RecurrenceRule   string              `json:"recurrenceRule"`
	Notes            string              `json:"notes,omitempty"`
	PaidFor          []ExpenseSplit      `json:"paidFor"`
	Documents        []Document          `json:"documents,omitempty"`
}

type Expense struct {
	ID      string `json:"id"`
	GroupID string `json:"groupId"`
	ExpenseInput
	CreatedAt      time.Time       `json:"createdAt"`
	DocumentCount  int             `json:"documentCount"`
	RecurrenceLink *RecurrenceLink `json:"recurrenceLink,omitempty"`
}

type ParticipantBalance struct {
	ParticipantID string `json:"participantId"`
	Paid          int64  `json:"paid"`
	Owed          int64  `json:"owed"`
	Net           int64  `json:"net"`
}

type DebtEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type CreateGroupRequest struct {
	Name         string   `json:"name"`
	Information  string   `json:"information,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	CurrencyCode string   `json:"currencyCode,omitempty"`
	Participants []string `json:"participants"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupBalancesResponse struct {
	Balances []ParticipantBalance `json:"balances"`
	Debts    []DebtEdge           `json:"debts"`
}

type CreateExpenseRequest struct {
	GroupID string       `json:"groupId"`
	Expense ExpenseInput `json:"expense"`
}

type CreateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type UpdateExpenseRequest struct {
	GroupID   string       `json:"groupId"`
	ExpenseID string       `json:"expenseId"`
	Expense   ExpenseInput `json:"expense"`
}

type UpdateExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	GroupID   string `json:"groupId"`
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type GetExpenseRequest struct {
	GroupID   string `json:"groupId"`
	ExpenseID string `json:"expenseId"`
}

type GetExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ListGroupExpensesRequest struct {
	GroupID string `json:"groupId"`
	Offset  int    `json:"offset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Filter  string `json:"filter,omitempty"`
}

type ListGroupExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

// GroupExport is the JSON document served by the export endpoint.
// Expenses are sorted oldest first.
type GroupExport struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Currency     string        `json:"currency"`
	CurrencyCode string        `json:"currencyCode,omitempty"`
	Participants []Participant `json:"participants"`
	Expenses     []Expense     `json:"expenses"`
}
