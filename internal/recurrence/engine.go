package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mmynk/sharedledger/internal/events"
	"github.com/mmynk/sharedledger/internal/models"
	"github.com/mmynk/sharedledger/internal/storage"
)

const defaultConcurrency = 4

// Options configure an Engine. Zero values select the defaults.
type Options struct {
	// Clock returns the current instant. Defaults to time.Now.
	Clock func() time.Time

	// NewID generates identities for new rows. Defaults to uuid.NewString.
	NewID func() string

	// Publisher is told about every new occurrence. Defaults to events.Nop.
	Publisher events.Publisher

	// Metrics defaults to unregistered collectors.
	Metrics *Metrics

	// Concurrency bounds how many groups CatchUpAll processes at once.
	Concurrency int
}

// Result counts what a catch-up pass did.
type Result struct {
	Created   int
	Conflicts int
	Failures  int
}

func (r *Result) add(o Result) {
	r.Created += o.Created
	r.Conflicts += o.Conflicts
	r.Failures += o.Failures
}

// Engine materializes due occurrences of recurring expenses. It has no
// timer of its own: callers run it before reading a group's expenses.
type Engine struct {
	store        storage.RecurrenceStore
	materializer *Materializer
	clock        func() time.Time
	publisher    events.Publisher
	metrics      *Metrics
	concurrency  int

	inflight singleflight.Group
}

// NewEngine creates an Engine over store.
func NewEngine(store storage.RecurrenceStore, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	return &Engine{
		store:        store,
		materializer: NewMaterializer(store, opts.NewID),
		clock:        opts.Clock,
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		concurrency:  opts.Concurrency,
	}
}

// EnsureCaughtUp brings groupID's recurring expenses up to date. Failures
// are logged and never returned, so a read that calls it always proceeds.
//
// Concurrent calls for the same group share one pass. The pass is not
// cancelled when ctx is; a caller whose ctx ends stops waiting for it.
func (e *Engine) EnsureCaughtUp(ctx context.Context, groupID string) {
	ch := e.inflight.DoChan(groupID, func() (any, error) {
		return e.CatchUp(context.WithoutCancel(ctx), groupID)
	})

	select {
	case <-ctx.Done():
		slog.DebugContext(ctx, "Stopped waiting for catch-up", "group_id", groupID, "reason", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			slog.WarnContext(ctx, "Catch-up failed", "group_id", groupID, "error", r.Err)
		}
	}
}

// CatchUp materializes every occurrence of groupID that is due now. An
// empty groupID covers every group.
//
// Only failing to list due links is returned as an error. A failure on one
// series is logged and counted in the Result; the other series proceed.
func (e *Engine) CatchUp(ctx context.Context, groupID string) (Result, error) {
	start := time.Now()
	defer func() { e.metrics.PassDuration.Observe(time.Since(start).Seconds()) }()

	now := e.clock().UTC().Truncate(time.Minute)

	links, err := e.store.ListDueLinks(ctx, groupID, now)
	if err != nil {
		e.metrics.Failures.WithLabelValues(reasonList).Inc()
		return Result{}, fmt.Errorf("failed to list due links: %w", err)
	}

	var res Result
	for _, link := range links {
		res.add(e.catchUpSeries(ctx, link, now))
	}

	if res.Created > 0 || res.Failures > 0 {
		slog.InfoContext(ctx, "Catch-up finished",
			"group_id", groupID,
			"due_links", len(links),
			"created", res.Created,
			"conflicts", res.Conflicts,
			"failures", res.Failures,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res, nil
}

// CatchUpAll runs CatchUp for every group that has a due link, several
// groups at a time.
func (e *Engine) CatchUpAll(ctx context.Context) (Result, error) {
	now := e.clock().UTC().Truncate(time.Minute)

	links, err := e.store.ListDueLinks(ctx, "", now)
	if err != nil {
		e.metrics.Failures.WithLabelValues(reasonList).Inc()
		return Result{}, fmt.Errorf("failed to list due links: %w", err)
	}

	seen := make(map[string]bool)
	var groups []string
	for _, l := range links {
		if !seen[l.GroupID] {
			seen[l.GroupID] = true
			groups = append(groups, l.GroupID)
		}
	}

	var (
		mu    sync.Mutex
		total Result
		g     errgroup.Group
	)
	g.SetLimit(e.concurrency)

	for _, groupID := range groups {
		groupID := groupID
		g.Go(func() error {
			res, err := e.CatchUp(ctx, groupID)
			mu.Lock()
			total.add(res)
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("group %s: %w", groupID, err)
			}
			return nil
		})
	}

	err = g.Wait()
	slog.InfoContext(ctx, "Catch-up of all groups finished",
		"groups", len(groups),
		"created", total.Created,
		"conflicts", total.Conflicts,
		"failures", total.Failures,
	)
	return total, err
}

// catchUpSeries walks one chain forward until its next date passes now.
func (e *Engine) catchUpSeries(ctx context.Context, link models.RecurrenceLink, now time.Time) Result {
	var res Result

	frame, err := e.store.LoadFrame(ctx, link.CurrentFrameExpenseID)
	if errors.Is(err, storage.ErrNotFound) {
		res.Failures++
		e.metrics.Failures.WithLabelValues(reasonFrameMissing).Inc()
		slog.WarnContext(ctx, "Skipping link without frame",
			"link_id", link.ID,
			"expense_id", link.CurrentFrameExpenseID,
		)
		return res
	}
	if err != nil {
		res.Failures++
		e.metrics.Failures.WithLabelValues(reasonLoadFrame).Inc()
		slog.ErrorContext(ctx, "Failed to load frame", "link_id", link.ID, "error", err)
		return res
	}

	for link.Due(now) {
		if !frame.RecurrenceRule.Recurring() {
			slog.DebugContext(ctx, "Frame is no longer recurring", "link_id", link.ID, "expense_id", frame.ID)
			return res
		}

		occ, err := e.materializer.Materialize(ctx, link, frame, link.NextExpenseDate, now)
		if errors.Is(err, ErrLinkClosed) {
			res.Conflicts++
			e.metrics.Conflicts.Inc()
			slog.InfoContext(ctx, "Link closed by another writer", "link_id", link.ID)
			return res
		}
		if err != nil {
			res.Failures++
			e.metrics.Failures.WithLabelValues(reasonMaterialize).Inc()
			slog.ErrorContext(ctx, "Failed to materialize occurrence", "link_id", link.ID, "error", err)
			return res
		}

		res.Created++
		e.metrics.Occurrences.Inc()
		slog.DebugContext(ctx, "Materialized occurrence",
			"link_id", link.ID,
			"expense_id", occ.Expense.ID,
			"expense_date", occ.Expense.ExpenseDate,
		)
		e.publish(ctx, link, occ, now)

		if frame, err = e.store.LoadFrame(ctx, occ.Expense.ID); err != nil {
			res.Failures++
			e.metrics.Failures.WithLabelValues(reasonLoadFrame).Inc()
			slog.ErrorContext(ctx, "Failed to reload frame", "expense_id", occ.Expense.ID, "error", err)
			return res
		}
		link = *occ.Link
	}
	return res
}

func (e *Engine) publish(ctx context.Context, link models.RecurrenceLink, occ *Occurrence, now time.Time) {
	err := e.publisher.PublishOccurrence(ctx, events.OccurrenceEvent{
		Type:            events.OccurrenceMaterialized,
		GroupID:         link.GroupID,
		LinkID:          link.ID,
		SourceExpenseID: link.CurrentFrameExpenseID,
		ExpenseID:       occ.Expense.ID,
		ExpenseDate:     occ.Expense.ExpenseDate,
		NextExpenseDate: occ.Link.NextExpenseDate,
		MaterializedAt:  now,
	})
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish occurrence", "expense_id", occ.Expense.ID, "error", err)
	}
}
