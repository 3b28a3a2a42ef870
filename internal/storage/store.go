// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/sharedledger/internal/models"
)

var (
	// ErrNotFound is wrapped by every lookup that finds no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParticipant is returned when an expense references a
	// participant outside its group.
	ErrInvalidParticipant = errors.New("participant does not belong to group")
)

// ListOptions pages and filters expense listings. A zero Limit means no limit.
type ListOptions struct {
	Offset int
	Limit  int
	// Filter matches expense titles case-insensitively.
	Filter string
}

// Store defines the ledger storage operations used by the service layer.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Store interface {
	RecurrenceStore

	// CreateGroup persists a group and its participants.
	// Missing IDs and CreatedAt are filled in by the store.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its participants.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// CreateExpense persists a new expense with its splits and documents, and
	// opens a recurrence link when its rule is recurring.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// UpdateExpense replaces an expense's fields, splits and documents and
	// applies the recurrence link lifecycle.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense. Its splits and links go with it;
	// its documents are detached.
	DeleteExpense(ctx context.Context, groupID, expenseID string) error

	// GetExpense retrieves an expense with splits, documents and its link.
	GetExpense(ctx context.Context, groupID, expenseID string) (*models.Expense, error)

	// ListGroupExpenses lists a group's expenses, newest first, with splits
	// and document counts.
	ListGroupExpenses(ctx context.Context, groupID string, opts ListOptions) ([]models.Expense, error)

	// Close releases any resources held by the store.
	Close() error
}

// RecurrenceStore is what the recurrence engine needs from storage.
type RecurrenceStore interface {
	// ListDueLinks returns pending links with NextExpenseDate <= now,
	// oldest first. An empty groupID matches every group.
	ListDueLinks(ctx context.Context, groupID string, now time.Time) ([]models.RecurrenceLink, error)

	// LoadFrame reads everything needed to clone an expense.
	LoadFrame(ctx context.Context, expenseID string) (*models.Frame, error)

	// InTx runs fn in a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx RecurrenceTx) error) error
}

// RecurrenceTx is the set of writes a materialization performs atomically.
type RecurrenceTx interface {
	InsertExpense(ctx context.Context, expense *models.Expense) error
	InsertSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error
	ReparentDocuments(ctx context.Context, documentIDs []string, expenseID string) error
	InsertLink(ctx context.Context, link *models.RecurrenceLink) error

	// CloseLink sets NextExpenseCreatedAt on a link only if it is still
	// pending and reports how many rows changed (0 or 1).
	CloseLink(ctx context.Context, linkID string, at time.Time) (int64, error)
}
