package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/sharedledger/internal/calculator"
	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/storage"
	"github.com/mmynk/sharedledger/pkg/api"
	"github.com/mmynk/sharedledger/pkg/api/apiconnect"
)

// CatchUpper brings a group's recurring expenses up to date. Services call
// it before every read that lists or shows expenses.
type CatchUpper interface {
	EnsureCaughtUp(ctx context.Context, groupID string)
}

// GroupService implements the Connect GroupService
type GroupService struct {
	store   storage.Store
	catchUp CatchUpper
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, catchUp CatchUpper) *GroupService {
	return &GroupService{store: store, catchUp: catchUp}
}

// CreateGroup creates a new group with its participants.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"participants_count", len(req.Msg.Participants),
	)

	if strings.TrimSpace(req.Msg.Name) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name required"))
	}
	if len(req.Msg.Participants) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("at least one participant required"))
	}

	group := &models.Group{
		Name:         req.Msg.Name,
		Information:  req.Msg.Information,
		Currency:     req.Msg.Currency,
		CurrencyCode: req.Msg.CurrencyCode,
	}
	for _, name := range req.Msg.Participants {
		if strings.TrimSpace(name) == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("participant name required"))
		}
		group.Participants = append(group.Participants, models.Participant{Name: name})
	}

	// Save to storage (generates IDs and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group created", "group_id", group.ID)

	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	if req.Msg.GroupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group_id required"))
	}

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("GetGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)

	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroupBalances calculates balances across all expenses in a group,
// including recurring occurrences that became due.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("GetGroupBalances request received", "group_id", groupID)

	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group_id required"))
	}

	// Verify group exists
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		slog.Error("GetGroupBalances failed - group not found", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	s.catchUp.EnsureCaughtUp(ctx, groupID)

	expenses, err := s.store.ListGroupExpenses(ctx, groupID, storage.ListOptions{})
	if err != nil {
		slog.Error("GetGroupBalances failed - could not list expenses", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}

	balances, debts, err := calculator.GroupBalances(expenses)
	if err != nil {
		slog.Error("GetGroupBalances failed - calculation error", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("GetGroupBalances successful",
		"group_id", groupID,
		"expenses_count", len(expenses),
		"participants_count", len(balances),
		"debts_count", len(debts),
	)

	return connect.NewResponse(toAPIBalances(balances, debts)), nil
}
