package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/sharedledger/internal/models"
)

// ParticipantBalance is the balance of one group participant, in minor units.
type ParticipantBalance struct {
	ParticipantID string
	Paid          int64 // Total amount paid across all expenses
	Owed          int64 // Total amount this participant's shares add up to
	Net           int64 // Positive = is owed money, Negative = owes money
}

// DebtEdge is a suggested transfer settling part of the balances.
type DebtEdge struct {
	From   string // Participant who owes
	To     string // Participant who is owed
	Amount int64
}

// GroupBalances aggregates who paid what and who owes what across expenses.
//
// Algorithm:
// - For each expense: payer contributed +amount, each participant owes their share
// - Aggregate: net = paid - owed
// - Debts: greedy matching of the largest debtor with the largest creditor
//
// Balances are ordered by participant ID.
func GroupBalances(expenses []models.Expense) ([]ParticipantBalance, []DebtEdge, error) {
	balances := make(map[string]*ParticipantBalance)
	get := func(id string) *ParticipantBalance {
		b, ok := balances[id]
		if !ok {
			b = &ParticipantBalance{ParticipantID: id}
			balances[id] = b
		}
		return b
	}

	for _, e := range expenses {
		// Skip expenses without payer (can't calculate balances)
		if e.PaidByID == "" {
			continue
		}

		owed, err := Shares(e.Amount, e.SplitMode, e.PaidFor)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to split expense %s: %w", e.ID, err)
		}

		get(e.PaidByID).Paid += e.Amount
		for participant, amount := range owed {
			get(participant).Owed += amount
		}
	}

	result := make([]ParticipantBalance, 0, len(balances))
	for _, b := range balances {
		b.Net = b.Paid - b.Owed
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ParticipantID < result[j].ParticipantID })

	return result, simplifyDebts(result), nil
}

// simplifyDebts matches debtors with creditors, largest first, to keep the
// number of transfers small.
func simplifyDebts(balances []ParticipantBalance) []DebtEdge {
	type side struct {
		id     string
		amount int64
	}

	var creditors, debtors []side
	for _, b := range balances {
		switch {
		case b.Net > 0:
			creditors = append(creditors, side{b.ParticipantID, b.Net})
		case b.Net < 0:
			debtors = append(debtors, side{b.ParticipantID, -b.Net})
		}
	}

	byAmount := func(s []side) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].amount != s[j].amount {
				return s[i].amount > s[j].amount
			}
			return s[i].id < s[j].id
		}
	}
	sort.Slice(creditors, byAmount(creditors))
	sort.Slice(debtors, byAmount(debtors))

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		if amount > 0 {
			edges = append(edges, DebtEdge{From: debtors[i].id, To: creditors[j].id, Amount: amount})
		}

		debtors[i].amount -= amount
		creditors[j].amount -= amount

		// Move to next debtor/creditor if fully settled
		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return edges
}
