package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/sharedledger/internal/storage"
	"github.com/mmynk/sharedledger/pkg/api"
)

// ExportHandler serves a group's full expense history as a JSON download.
type ExportHandler struct {
	store   storage.Store
	catchUp CatchUpper
	clock   func() time.Time
}

// NewExportHandler creates an ExportHandler. A nil clock means time.Now.
func NewExportHandler(store storage.Store, catchUp CatchUpper, clock func() time.Time) *ExportHandler {
	if clock == nil {
		clock = time.Now
	}
	return &ExportHandler{store: store, catchUp: catchUp, clock: clock}
}

// ServeHTTP handles GET /groups/{groupID}/expenses/export.json.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID := chi.URLParam(r, "groupID")
	slog.InfoContext(ctx, "Export request received", "group_id", groupID)

	group, err := h.store.GetGroup(ctx, groupID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "Invalid group ID")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Export failed - could not load group", "group_id", groupID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.catchUp.EnsureCaughtUp(ctx, groupID)

	expenses, err := h.store.ListGroupExpenses(ctx, groupID, storage.ListOptions{})
	if err != nil {
		slog.ErrorContext(ctx, "Export failed - could not list expenses", "group_id", groupID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sort.SliceStable(expenses, func(i, j int) bool {
		a, b := expenses[i], expenses[j]
		if !a.ExpenseDate.Equal(b.ExpenseDate) {
			return a.ExpenseDate.Before(b.ExpenseDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	apiGroup := toAPIGroup(group)
	payload := api.GroupExport{
		ID:           apiGroup.ID,
		Name:         apiGroup.Name,
		Currency:     apiGroup.Currency,
		CurrencyCode: apiGroup.CurrencyCode,
		Participants: apiGroup.Participants,
		Expenses:     make([]api.Expense, len(expenses)),
	}
	for i := range expenses {
		payload.Expenses[i] = toAPIExpense(&expenses[i])
	}

	filename := fmt.Sprintf("Ledger Export - %s.json", h.clock().UTC().Format(time.DateOnly))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(ctx, "Export failed - could not write response", "group_id", groupID, "error", err)
		return
	}

	slog.InfoContext(ctx, "Export successful", "group_id", groupID, "expenses_count", len(expenses))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
