package calculator

import (
	"testing"

	"github.com/mmynk/sharedledger/internal/models"
)

func TestGroupBalances(t *testing.T) {
	t.Run("single expense paid by one", func(t *testing.T) {
		expenses := []models.Expense{
			{ID: "e1", Amount: 3000, PaidByID: "Alice", SplitMode: models.SplitEvenly, PaidFor: splits(1, 1, 1)},
		}

		balances, debts, err := GroupBalances(expenses)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}

		want := map[string]int64{"Alice": 2000, "Bob": -1000, "Charlie": -1000}
		if len(balances) != 3 {
			t.Fatalf("Expected 3 balances, got %d", len(balances))
		}
		for _, b := range balances {
			if b.Net != want[b.ParticipantID] {
				t.Errorf("%s net = %d, want %d", b.ParticipantID, b.Net, want[b.ParticipantID])
			}
		}
		if balances[0].ParticipantID != "Alice" || balances[0].Paid != 3000 || balances[0].Owed != 1000 {
			t.Errorf("Unexpected Alice balance: %+v", balances[0])
		}

		if len(debts) != 2 {
			t.Fatalf("Expected 2 debts, got %+v", debts)
		}
		for _, d := range debts {
			if d.To != "Alice" || d.Amount != 1000 {
				t.Errorf("Unexpected debt: %+v", d)
			}
		}
	})

	t.Run("expenses cancel out", func(t *testing.T) {
		expenses := []models.Expense{
			{ID: "e1", Amount: 1000, PaidByID: "Alice", SplitMode: models.SplitEvenly, PaidFor: splits(1, 1)},
			{ID: "e2", Amount: 1000, PaidByID: "Bob", SplitMode: models.SplitEvenly, PaidFor: splits(1, 1)},
		}

		balances, debts, err := GroupBalances(expenses)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		for _, b := range balances {
			if b.Net != 0 {
				t.Errorf("%s net = %d, want 0", b.ParticipantID, b.Net)
			}
		}
		if len(debts) != 0 {
			t.Errorf("Expected no debts, got %+v", debts)
		}
	})

	t.Run("reimbursement settles a debt", func(t *testing.T) {
		expenses := []models.Expense{
			{ID: "e1", Amount: 2000, PaidByID: "Alice", SplitMode: models.SplitEvenly, PaidFor: splits(1, 1)},
			{
				ID: "e2", Amount: 1000, PaidByID: "Bob", SplitMode: models.SplitEvenly, IsReimbursement: true,
				PaidFor: []models.ExpenseSplit{{ParticipantID: "Alice", Shares: 1}},
			},
		}

		_, debts, err := GroupBalances(expenses)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if len(debts) != 0 {
			t.Errorf("Expected debts to be settled, got %+v", debts)
		}
	})

	t.Run("debts match largest first", func(t *testing.T) {
		expenses := []models.Expense{
			{ID: "e1", Amount: 9000, PaidByID: "Alice", SplitMode: models.SplitByShares, PaidFor: splits(1, 2, 1, 2)},
		}

		_, debts, err := GroupBalances(expenses)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}

		var total int64
		for _, d := range debts {
			if d.To != "Alice" {
				t.Errorf("Unexpected creditor in %+v", d)
			}
			total += d.Amount
		}
		if total != 7500 {
			t.Errorf("Expected 7500 owed to Alice, got %d", total)
		}
		if debts[0].From != "Bob" && debts[0].From != "Diana" {
			t.Errorf("Expected largest debtor first, got %+v", debts[0])
		}
	})

	t.Run("expense without payer is skipped", func(t *testing.T) {
		balances, _, err := GroupBalances([]models.Expense{{ID: "e1", Amount: 100, PaidFor: splits(1)}})
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if len(balances) != 0 {
			t.Errorf("Expected no balances, got %+v", balances)
		}
	})

	t.Run("invalid split mode errors", func(t *testing.T) {
		_, _, err := GroupBalances([]models.Expense{{ID: "e1", Amount: 100, PaidByID: "Alice", SplitMode: "BY_MOOD", PaidFor: splits(1)}})
		if err == nil {
			t.Error("Expected error for invalid split mode")
		}
	})
}
