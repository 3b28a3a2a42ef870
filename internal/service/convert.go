package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/sharedledger/internal/calculator"
	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/storage"
	"github.com/mmynk/sharedledger/pkg/api"
)

// validationErrors are reported to clients as InvalidArgument.
var validationErrors = []error{
	models.ErrInvalidAmount,
	models.ErrEmptyTitle,
	models.ErrMissingDate,
	models.ErrMissingPayer,
	models.ErrNoSplits,
	models.ErrInvalidShares,
	models.ErrInvalidSplitMode,
	models.ErrInvalidRecurrenceRule,
	storage.ErrInvalidParticipant,
}

// toConnectError maps storage and validation errors to Connect codes.
func toConnectError(err error) *connect.Error {
	if errors.Is(err, storage.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return connect.NewError(connect.CodeInvalidArgument, err)
		}
	}
	return connect.NewError(connect.CodeInternal, err)
}

func toAPIGroup(g *models.Group) *api.Group {
	out := &api.Group{
		ID:           g.ID,
		Name:         g.Name,
		Information:  g.Information,
		Currency:     g.Currency,
		CurrencyCode: g.CurrencyCode,
		CreatedAt:    g.CreatedAt,
		Participants: make([]api.Participant, len(g.Participants)),
	}
	for i, p := range g.Participants {
		out.Participants[i] = api.Participant{ID: p.ID, Name: p.Name}
	}
	return out
}

// toModelExpense builds an expense from client input, filling the default
// split mode and recurrence rule.
func toModelExpense(groupID string, in api.ExpenseInput) *models.Expense {
	e := &models.Expense{
		GroupID:          groupID,
		ExpenseDate:      in.ExpenseDate,
		Title:            in.Title,
		CategoryID:       in.CategoryID,
		Amount:           in.Amount,
		OriginalAmount:   in.OriginalAmount,
		OriginalCurrency: in.OriginalCurrency,
		ConversionRate:   in.ConversionRate,
		PaidByID:         in.PaidByID,
		IsReimbursement:  in.IsReimbursement,
		SplitMode:        models.SplitMode(in.SplitMode),
		RecurrenceRule:   models.RecurrenceRule(in.RecurrenceRule),
		Notes:            in.Notes,
	}
	if e.SplitMode == "" {
		e.SplitMode = models.SplitEvenly
	}
	if e.RecurrenceRule == "" {
		e.RecurrenceRule = models.RuleNone
	}

	for _, s := range in.PaidFor {
		e.PaidFor = append(e.PaidFor, models.ExpenseSplit{ParticipantID: s.ParticipantID, Shares: s.Shares})
	}
	for _, d := range in.Documents {
		e.Documents = append(e.Documents, models.Document{ID: d.ID, URL: d.URL, Width: d.Width, Height: d.Height})
	}
	return e
}

func toAPIExpense(e *models.Expense) api.Expense {
	out := api.Expense{
		ID:      e.ID,
		GroupID: e.GroupID,
		ExpenseInput: api.ExpenseInput{
			ExpenseDate:      e.ExpenseDate,
			Title:            e.Title,
			CategoryID:       e.CategoryID,
			Amount:           e.Amount,
			OriginalAmount:   e.OriginalAmount,
			OriginalCurrency: e.OriginalCurrency,
			ConversionRate:   e.ConversionRate,
			PaidByID:         e.PaidByID,
			IsReimbursement:  e.IsReimbursement,
			SplitMode:        string(e.SplitMode),
			RecurrenceRule:   string(e.RecurrenceRule),
			Notes:            e.Notes,
			PaidFor:          make([]api.ExpenseSplit, len(e.PaidFor)),
		},
		CreatedAt:     e.CreatedAt,
		DocumentCount: e.DocumentCount,
	}
	for i, s := range e.PaidFor {
		out.PaidFor[i] = api.ExpenseSplit{ParticipantID: s.ParticipantID, Shares: s.Shares}
	}
	for _, d := range e.Documents {
		out.Documents = append(out.Documents, api.Document{ID: d.ID, URL: d.URL, Width: d.Width, Height: d.Height})
	}
	if len(e.Documents) > out.DocumentCount {
		out.DocumentCount = len(e.Documents)
	}
	if e.Link != nil {
		out.RecurrenceLink = &api.RecurrenceLink{
			ID:                   e.Link.ID,
			NextExpenseDate:      e.Link.NextExpenseDate,
			NextExpenseCreatedAt: e.Link.NextExpenseCreatedAt,
		}
	}
	return out
}

func toAPIBalances(balances []calculator.ParticipantBalance, debts []calculator.DebtEdge) *api.GetGroupBalancesResponse {
	out := &api.GetGroupBalancesResponse{
		Balances: make([]api.ParticipantBalance, len(balances)),
		Debts:    make([]api.DebtEdge, len(debts)),
	}
	for i, b := range balances {
		out.Balances[i] = api.ParticipantBalance{ParticipantID: b.ParticipantID, Paid: b.Paid, Owed: b.Owed, Net: b.Net}
	}
	for i, d := range debts {
		out.Debts[i] = api.DebtEdge{From: d.From, To: d.To, Amount: d.Amount}
	}
	return out
}
