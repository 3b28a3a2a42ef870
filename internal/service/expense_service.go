package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/sharedledger/internal/storage"
	"github.com/mmynk/sharedledger/pkg/api"
	"github.com/mmynk/sharedledger/pkg/api/apiconnect"
)

// ExpenseService implements the Connect ExpenseService
type ExpenseService struct {
	store   storage.Store
	catchUp CatchUpper
}

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store, catchUp CatchUpper) *ExpenseService {
	return &ExpenseService{store: store, catchUp: catchUp}
}

// CreateExpense saves a new expense. A recurring expense becomes the
// template of its series.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"title", req.Msg.Expense.Title,
		"recurrence_rule", req.Msg.Expense.RecurrenceRule,
	)

	if req.Msg.GroupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group_id required"))
	}

	expense := toModelExpense(req.Msg.GroupID, req.Msg.Expense)
	if err := expense.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("CreateExpense failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense created", "expense_id", expense.ID, "recurring", expense.Link != nil)

	out := toAPIExpense(expense)
	return connect.NewResponse(&api.CreateExpenseResponse{Expense: &out}), nil
}

// UpdateExpense replaces an expense and adjusts its pending recurrence link.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	slog.Info("UpdateExpense request received",
		"group_id", req.Msg.GroupID,
		"expense_id", req.Msg.ExpenseID,
	)

	if req.Msg.GroupID == "" || req.Msg.ExpenseID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group_id and expense_id required"))
	}

	expense := toModelExpense(req.Msg.GroupID, req.Msg.Expense)
	expense.ID = req.Msg.ExpenseID
	if err := expense.Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		slog.Error("UpdateExpense failed", "expense_id", expense.ID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense updated", "expense_id", expense.ID)

	out := toAPIExpense(expense)
	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: &out}), nil
}

// DeleteExpense removes an expense by ID.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received",
		"group_id", req.Msg.GroupID,
		"expense_id", req.Msg.ExpenseID,
	)

	if err := s.store.DeleteExpense(ctx, req.Msg.GroupID, req.Msg.ExpenseID); err != nil {
		slog.Error("DeleteExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense deleted", "expense_id", req.Msg.ExpenseID)

	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// GetExpense retrieves an expense with its documents and recurrence link.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	slog.Info("GetExpense request received",
		"group_id", req.Msg.GroupID,
		"expense_id", req.Msg.ExpenseID,
	)

	if req.Msg.GroupID == "" || req.Msg.ExpenseID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group_id and expense_id required"))
	}

	s.catchUp.EnsureCaughtUp(ctx, req.Msg.GroupID)

	expense, err := s.store.GetExpense(ctx, req.Msg.GroupID, req.Msg.ExpenseID)
	if err != nil {
		slog.Error("GetExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, toConnectError(err)
	}

	out := toAPIExpense(expense)
	return connect.NewResponse(&api.GetExpenseResponse{Expense: &out}), nil
}

// ListGroupExpenses lists a group's expenses, newest first.
func (s *ExpenseService) ListGroupExpenses(ctx context.Context, req *connect.Request[api.ListGroupExpensesRequest]) (*connect.Response[api.ListGroupExpensesResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("ListGroupExpenses request received",
		"group_id", groupID,
		"offset", req.Msg.Offset,
		"limit", req.Msg.Limit,
		"filter", req.Msg.Filter,
	)

	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group_id required"))
	}
	if req.Msg.Offset < 0 || req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("offset and limit must not be negative"))
	}

	// Verify group exists
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		slog.Error("ListGroupExpenses failed - group not found", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	s.catchUp.EnsureCaughtUp(ctx, groupID)

	expenses, err := s.store.ListGroupExpenses(ctx, groupID, storage.ListOptions{
		Offset: req.Msg.Offset,
		Limit:  req.Msg.Limit,
		Filter: req.Msg.Filter,
	})
	if err != nil {
		slog.Error("ListGroupExpenses failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]api.Expense, len(expenses))
	for i := range expenses {
		out[i] = toAPIExpense(&expenses[i])
	}

	slog.Info("ListGroupExpenses successful", "group_id", groupID, "count", len(out))

	return connect.NewResponse(&api.ListGroupExpensesResponse{Expenses: out}), nil
}
