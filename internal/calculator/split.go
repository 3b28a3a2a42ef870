package calculator

import (
	"fmt"

	"github.com/mmynk/sharedledger/internal/models"
)

// PercentageBase is what BY_PERCENTAGE shares add up to (basis points).
const PercentageBase = 10000

// Shares computes how many minor units each participant owes for one expense.
//
// EVENLY and BY_SHARES split amount in proportion to the weights, handing
// the rounding remainder one unit at a time to the first participants.
// BY_PERCENTAGE reads shares as basis points of PercentageBase. BY_AMOUNT
// reads shares as the owed amounts themselves.
func Shares(amount int64, mode models.SplitMode, paidFor []models.ExpenseSplit) (map[string]int64, error) {
	if len(paidFor) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}

	owed := make(map[string]int64, len(paidFor))

	switch mode {
	case models.SplitByAmount:
		for _, s := range paidFor {
			owed[s.ParticipantID] += s.Shares
		}
		return owed, nil

	case models.SplitEvenly:
		weights := make([]int64, len(paidFor))
		for i := range weights {
			weights[i] = 1
		}
		distribute(owed, paidFor, amount, weights, int64(len(paidFor)))

	case models.SplitByShares:
		weights := make([]int64, len(paidFor))
		var total int64
		for i, s := range paidFor {
			weights[i] = s.Shares
			total += s.Shares
		}
		if total <= 0 {
			return nil, fmt.Errorf("total shares must be positive")
		}
		distribute(owed, paidFor, amount, weights, total)

	case models.SplitByPercentage:
		weights := make([]int64, len(paidFor))
		for i, s := range paidFor {
			weights[i] = s.Shares
		}
		distribute(owed, paidFor, amount, weights, PercentageBase)

	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidSplitMode, mode)
	}

	return owed, nil
}

// distribute splits amount by weights/total, flooring each part and handing
// the remainder to the first participants so the parts add up exactly.
func distribute(owed map[string]int64, paidFor []models.ExpenseSplit, amount int64, weights []int64, total int64) {
	sign := int64(1)
	if amount < 0 {
		sign, amount = -1, -amount
	}

	var sumWeights, assigned int64
	parts := make([]int64, len(paidFor))
	for i, w := range weights {
		parts[i] = amount * w / total
		assigned += parts[i]
		sumWeights += w
	}

	remainder := amount*sumWeights/total - assigned
	for i := 0; remainder > 0; i = (i + 1) % len(parts) {
		parts[i]++
		remainder--
	}

	for i, s := range paidFor {
		owed[s.ParticipantID] += sign * parts[i]
	}
}
