package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedGroup(t *testing.T, store *Store, names ...string) *models.Group {
	t.Helper()

	group := &models.Group{Name: "Flat"}
	for _, n := range names {
		group.Participants = append(group.Participants, models.Participant{Name: n})
	}
	if err := store.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return group
}

func newExpense(group *models.Group, title string, date time.Time, rule models.RecurrenceRule) *models.Expense {
	e := &models.Expense{
		GroupID:        group.ID,
		ExpenseDate:    date,
		Title:          title,
		Amount:         1200,
		PaidByID:       group.Participants[0].ID,
		SplitMode:      models.SplitEvenly,
		RecurrenceRule: rule,
	}
	for _, p := range group.Participants {
		e.PaidFor = append(e.PaidFor, models.ExpenseSplit{ParticipantID: p.ID, Shares: 1})
	}
	return e
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateGroup fills defaults", func(t *testing.T) {
		group := seedGroup(t, store, "Alice", "Bob")

		if group.ID == "" {
			t.Error("Expected group ID to be generated")
		}
		if group.Currency != "$" {
			t.Errorf("Expected default currency $, got %q", group.Currency)
		}
		for _, p := range group.Participants {
			if p.ID == "" || p.GroupID != group.ID {
				t.Errorf("Participant not assigned: %+v", p)
			}
		}
	})

	t.Run("GetGroup returns participants", func(t *testing.T) {
		group := seedGroup(t, store, "Bob", "Alice")

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.Name != "Flat" {
			t.Errorf("Expected name Flat, got %q", got.Name)
		}
		if len(got.Participants) != 2 || got.Participants[0].Name != "Alice" {
			t.Errorf("Expected participants ordered by name, got %+v", got.Participants)
		}
	})

	t.Run("GetGroup not found", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group := seedGroup(t, store, "Alice", "Bob")
	date := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	t.Run("CreateExpense without recurrence has no link", func(t *testing.T) {
		e := newExpense(group, "Groceries", date, models.RuleNone)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		if e.Link != nil {
			t.Errorf("Expected no link, got %+v", e.Link)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.Link != nil {
			t.Errorf("Expected no stored link, got %+v", got.Link)
		}
		if len(got.PaidFor) != 2 {
			t.Errorf("Expected 2 splits, got %d", len(got.PaidFor))
		}
	})

	t.Run("CreateExpense with recurrence opens a pending link", func(t *testing.T) {
		e := newExpense(group, "Rent", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), models.RuleMonthly)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.Link == nil {
			t.Fatal("Expected a link")
		}
		if !got.Link.Pending() {
			t.Error("Expected link to be pending")
		}
		want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
		if !got.Link.NextExpenseDate.Equal(want) {
			t.Errorf("Expected next date %v, got %v", want, got.Link.NextExpenseDate)
		}
	})

	t.Run("round trips optional fields", func(t *testing.T) {
		original := int64(5000)
		e := newExpense(group, "Hotel", date, models.RuleNone)
		e.OriginalAmount = &original
		e.OriginalCurrency = "EUR"
		e.ConversionRate = decimal.NewNullDecimal(decimal.RequireFromString("1.0825"))
		e.IsReimbursement = true
		e.Notes = "two nights"
		e.Documents = []models.Document{{URL: "https://img/1.png", Width: 10, Height: 20}}

		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.OriginalAmount == nil || *got.OriginalAmount != 5000 {
			t.Errorf("Expected original amount 5000, got %v", got.OriginalAmount)
		}
		if !got.ConversionRate.Valid || !got.ConversionRate.Decimal.Equal(decimal.RequireFromString("1.0825")) {
			t.Errorf("Expected conversion rate 1.0825, got %v", got.ConversionRate)
		}
		if !got.IsReimbursement || got.Notes != "two nights" || got.OriginalCurrency != "EUR" {
			t.Errorf("Optional fields not preserved: %+v", got)
		}
		if len(got.Documents) != 1 || got.Documents[0].ExpenseID != e.ID {
			t.Errorf("Expected one owned document, got %+v", got.Documents)
		}
		if !got.ExpenseDate.Equal(date) {
			t.Errorf("Expected date %v, got %v", date, got.ExpenseDate)
		}
	})

	t.Run("CreateExpense rejects outside participant", func(t *testing.T) {
		other := seedGroup(t, store, "Mallory")
		e := newExpense(group, "Sneaky", date, models.RuleNone)
		e.PaidFor = append(e.PaidFor, models.ExpenseSplit{ParticipantID: other.Participants[0].ID, Shares: 1})

		err := store.CreateExpense(ctx, e)
		if !errors.Is(err, storage.ErrInvalidParticipant) {
			t.Errorf("Expected ErrInvalidParticipant, got %v", err)
		}
	})

	t.Run("GetExpense from another group is not found", func(t *testing.T) {
		e := newExpense(group, "Coffee", date, models.RuleNone)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		_, err := store.GetExpense(ctx, "other-group", e.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteExpense", func(t *testing.T) {
		e := newExpense(group, "Taxi", date, models.RuleWeekly)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		if err := store.DeleteExpense(ctx, group.ID, e.ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}

		if _, err := store.GetExpense(ctx, group.ID, e.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteExpense(ctx, group.ID, e.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound on second delete, got %v", err)
		}

		links, err := store.ListDueLinks(ctx, group.ID, date.AddDate(1, 0, 0))
		if err != nil {
			t.Fatalf("ListDueLinks failed: %v", err)
		}
		for _, l := range links {
			if l.CurrentFrameExpenseID == e.ID {
				t.Error("Expected link to be removed with its expense")
			}
		}
	})
}

func TestUpdateExpenseLinkLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group := seedGroup(t, store, "Alice", "Bob")
	date := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("turning recurrence off deletes the pending link", func(t *testing.T) {
		e := newExpense(group, "Gym", date, models.RuleMonthly)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		e.RecurrenceRule = models.RuleNone
		if err := store.UpdateExpense(ctx, e); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.Link != nil {
			t.Errorf("Expected link to be deleted, got %+v", got.Link)
		}
	})

	t.Run("changing the rule moves the due date", func(t *testing.T) {
		e := newExpense(group, "Cleaning", date, models.RuleMonthly)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		e.RecurrenceRule = models.RuleWeekly
		if err := store.UpdateExpense(ctx, e); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		want := date.AddDate(0, 0, 7)
		if got.Link == nil || !got.Link.NextExpenseDate.Equal(want) {
			t.Errorf("Expected next date %v, got %+v", want, got.Link)
		}
	})

	t.Run("changing the date moves the due date", func(t *testing.T) {
		e := newExpense(group, "Internet", date, models.RuleDaily)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		e.ExpenseDate = date.AddDate(0, 0, 3)
		if err := store.UpdateExpense(ctx, e); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		want := date.AddDate(0, 0, 4)
		if got.Link == nil || !got.Link.NextExpenseDate.Equal(want) {
			t.Errorf("Expected next date %v, got %+v", want, got.Link)
		}
	})

	t.Run("turning recurrence on creates a link", func(t *testing.T) {
		e := newExpense(group, "Netflix", date, models.RuleNone)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		e.RecurrenceRule = models.RuleMonthly
		if err := store.UpdateExpense(ctx, e); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}
		if e.Link == nil || !e.Link.NextExpenseDate.Equal(date.AddDate(0, 1, 0)) {
			t.Errorf("Expected new link due %v, got %+v", date.AddDate(0, 1, 0), e.Link)
		}
	})

	t.Run("closed link is left alone", func(t *testing.T) {
		e := newExpense(group, "Parking", date, models.RuleMonthly)
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		closedAt := date.AddDate(0, 1, 0)
		err := store.InTx(ctx, func(tx storage.RecurrenceTx) error {
			_, err := tx.CloseLink(ctx, e.Link.ID, closedAt)
			return err
		})
		if err != nil {
			t.Fatalf("CloseLink failed: %v", err)
		}

		e.RecurrenceRule = models.RuleNone
		if err := store.UpdateExpense(ctx, e); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.Link == nil || got.Link.Pending() {
			t.Errorf("Expected closed link to survive, got %+v", got.Link)
		}
	})

	t.Run("splits and documents are replaced", func(t *testing.T) {
		e := newExpense(group, "Dinner", date, models.RuleNone)
		e.Documents = []models.Document{
			{ID: "doc-keep", URL: "https://img/keep.png", Width: 1, Height: 1},
			{ID: "doc-drop", URL: "https://img/drop.png", Width: 1, Height: 1},
		}
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		e.PaidFor = []models.ExpenseSplit{{ParticipantID: group.Participants[1].ID, Shares: 3}}
		e.Documents = []models.Document{{ID: "doc-keep", URL: "https://img/keep2.png", Width: 2, Height: 2}}
		if err := store.UpdateExpense(ctx, e); err != nil {
			t.Fatalf("UpdateExpense failed: %v", err)
		}

		got, err := store.GetExpense(ctx, group.ID, e.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if len(got.PaidFor) != 1 || got.PaidFor[0].Shares != 3 {
			t.Errorf("Expected one split with 3 shares, got %+v", got.PaidFor)
		}
		if len(got.Documents) != 1 || got.Documents[0].URL != "https://img/keep2.png" {
			t.Errorf("Expected one updated document, got %+v", got.Documents)
		}
	})

	t.Run("unknown expense", func(t *testing.T) {
		e := newExpense(group, "Ghost", date, models.RuleNone)
		e.ID = "missing"
		if err := store.UpdateExpense(ctx, e); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestListGroupExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group := seedGroup(t, store, "Alice", "Bob")
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	titles := []string{"Coffee", "Lunch", "coffee beans", "Dinner"}
	for i, title := range titles {
		e := newExpense(group, title, base.AddDate(0, 0, i), models.RuleNone)
		if i == 0 {
			e.Documents = []models.Document{{URL: "https://img/a.png"}, {URL: "https://img/b.png"}}
		}
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := store.ListGroupExpenses(ctx, group.ID, storage.ListOptions{})
		if err != nil {
			t.Fatalf("ListGroupExpenses failed: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("Expected 4 expenses, got %d", len(got))
		}
		if got[0].Title != "Dinner" || got[3].Title != "Coffee" {
			t.Errorf("Unexpected order: %s ... %s", got[0].Title, got[3].Title)
		}
		if got[3].DocumentCount != 2 {
			t.Errorf("Expected 2 documents, got %d", got[3].DocumentCount)
		}
		if len(got[0].PaidFor) != 2 {
			t.Errorf("Expected splits to be loaded, got %+v", got[0].PaidFor)
		}
	})

	t.Run("filter is case-insensitive", func(t *testing.T) {
		got, err := store.ListGroupExpenses(ctx, group.ID, storage.ListOptions{Filter: "COFFEE"})
		if err != nil {
			t.Fatalf("ListGroupExpenses failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Expected 2 matches, got %d", len(got))
		}
	})

	t.Run("offset and limit", func(t *testing.T) {
		got, err := store.ListGroupExpenses(ctx, group.ID, storage.ListOptions{Offset: 1, Limit: 2})
		if err != nil {
			t.Fatalf("ListGroupExpenses failed: %v", err)
		}
		if len(got) != 2 || got[0].Title != "coffee beans" {
			t.Errorf("Unexpected page: %+v", got)
		}

		got, err = store.ListGroupExpenses(ctx, group.ID, storage.ListOptions{Offset: 3})
		if err != nil {
			t.Fatalf("ListGroupExpenses failed: %v", err)
		}
		if len(got) != 1 || got[0].Title != "Coffee" {
			t.Errorf("Unexpected tail: %+v", got)
		}
	})
}
