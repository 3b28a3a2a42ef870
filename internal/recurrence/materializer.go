package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/storage"
)

// ErrLinkClosed means another writer closed the link first. The caller
// should stand down; nothing was written.
var ErrLinkClosed = errors.New("recurrence link already closed")

// Occurrence is the outcome of one successful materialization.
type Occurrence struct {
	// Expense is the new expense, with PaidFor retargeted at its ID.
	Expense *models.Expense

	// Link is the new pending link whose current frame is Expense.
	Link *models.RecurrenceLink

	// DocumentIDs were moved from the frame to Expense.
	DocumentIDs []string
}

// Materializer turns a due link into the next expense of its series.
type Materializer struct {
	store storage.RecurrenceStore
	newID func() string
}

// NewMaterializer creates a Materializer writing to store.
func NewMaterializer(store storage.RecurrenceStore, newID func() string) *Materializer {
	return &Materializer{store: store, newID: newID}
}

// Materialize clones frame into a new expense dated target and moves the
// chain forward, in one transaction.
//
// The old link is closed first with a conditional update. If that update
// changes no row the transaction is abandoned and ErrLinkClosed returned,
// so two concurrent callers never both insert a successor.
func (m *Materializer) Materialize(ctx context.Context, link models.RecurrenceLink, frame *models.Frame, target, now time.Time) (*Occurrence, error) {
	expense := frame.Expense
	expense.ID = m.newID()
	expense.ExpenseDate = target
	expense.CreatedAt = now
	expense.Documents = nil
	expense.DocumentCount = 0
	expense.Link = nil
	expense.PaidFor = make([]models.ExpenseSplit, len(frame.PaidFor))
	for i, s := range frame.PaidFor {
		expense.PaidFor[i] = models.ExpenseSplit{
			ExpenseID:     expense.ID,
			ParticipantID: s.ParticipantID,
			Shares:        s.Shares,
		}
	}

	next := &models.RecurrenceLink{
		ID:                    m.newID(),
		GroupID:               link.GroupID,
		CurrentFrameExpenseID: expense.ID,
		NextExpenseDate:       Advance(frame.RecurrenceRule, target),
	}

	err := m.store.InTx(ctx, func(tx storage.RecurrenceTx) error {
		n, err := tx.CloseLink(ctx, link.ID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLinkClosed
		}

		if err := tx.InsertExpense(ctx, &expense); err != nil {
			return err
		}
		if len(expense.PaidFor) > 0 {
			if err := tx.InsertSplits(ctx, expense.ID, expense.PaidFor); err != nil {
				return err
			}
		}
		if len(frame.DocumentIDs) > 0 {
			if err := tx.ReparentDocuments(ctx, frame.DocumentIDs, expense.ID); err != nil {
				return err
			}
		}
		return tx.InsertLink(ctx, next)
	})
	if errors.Is(err, ErrLinkClosed) {
		return nil, fmt.Errorf("link %s: %w", link.ID, ErrLinkClosed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to materialize link %s: %w", link.ID, err)
	}

	return &Occurrence{
		Expense:     &expense,
		Link:        next,
		DocumentIDs: frame.DocumentIDs,
	}, nil
}
