// Package worker keeps a secondary ledger backend in step with the primary
// one by replaying the events the web process publishes.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
)

// MirrorWorker applies ledger events to a mirror store and periodically
// reconciles the mirror against the source store. Events and
// reconciliations are applied one at a time.
type MirrorWorker struct {
	source ledger.ExpenseLister
	mirror ledger.Store

	mu sync.Mutex
	// syncedAt is when the last successful reconciliation read the source.
	syncedAt time.Time
}

// ReconcileResult counts the rows a reconciliation changed in the mirror.
type ReconcileResult struct {
	Added   int
	Removed int
}

// NewMirrorWorker returns a worker writing to mirror. source may be nil, in
// which case Reconcile is a no-op.
func NewMirrorWorker(source ledger.ExpenseLister, mirror ledger.Store) *MirrorWorker {
	return &MirrorWorker{
		source: source,
		mirror: mirror,
	}
}

// HandleEvent applies one ledger event to the mirror. Mirror IDs differ from
// source IDs, so removals are matched on description, amount and date.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Events are published after the source write, so one stamped before the
	// last reconciliation read is already part of the mirror.
	if !ev.Timestamp.IsZero() && ev.Timestamp.Before(w.syncedAt) {
		slog.DebugContext(ctx, "Skipping event covered by reconciliation",
			"event", ev.Event,
			"expense_id", ev.ID,
			"published_at", ev.Timestamp)
		return nil
	}

	e, err := expenseFromEvent(ev)
	if err != nil {
		// Retrying cannot fix a malformed event.
		slog.WarnContext(ctx, "Skipping malformed ledger event",
			"event", ev.Event,
			"expense_id", ev.ID,
			"error", err)
		return nil
	}

	switch ev.Event {
	case amqp.EventExpenseAdded:
		stored, err := w.mirror.Append(ctx, e)
		if err != nil {
			return fmt.Errorf("append to mirror: %w", err)
		}
		slog.InfoContext(ctx, "Mirrored added expense",
			"expense_id", ev.ID,
			"mirror_id", stored.ID,
			"description", e.Description)

	case amqp.EventExpenseRemoved:
		removed, err := w.removeMatching(ctx, e)
		if err != nil {
			return err
		}
		if !removed {
			slog.WarnContext(ctx, "Removed expense not present in mirror",
				"expense_id", ev.ID,
				"description", e.Description)
			return nil
		}
		slog.InfoContext(ctx, "Mirrored removed expense",
			"expense_id", ev.ID,
			"description", e.Description)

	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", "event", ev.Event)
	}
	return nil
}

// Reconcile makes the mirror hold the same records as the source. Records
// already present are left in place; extra mirror rows are removed and
// missing ones appended in source order. It recovers from lost or
// redelivered events.
func (w *MirrorWorker) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	if w.source == nil {
		return res, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	readAt := time.Now()
	src, err := w.source.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load source ledger: %w", err)
	}
	dst, err := w.mirror.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load mirror ledger: %w", err)
	}

	// Count mirror rows per content key, then consume one per source row.
	pool := make(map[string]int, len(dst))
	for _, e := range dst {
		pool[contentKey(e)]++
	}
	var missing []core.Expense
	for _, e := range src {
		k := contentKey(e)
		if pool[k] > 0 {
			pool[k]--
			continue
		}
		missing = append(missing, e)
	}

	// Leftovers exist in the mirror only.
	for _, e := range dst {
		k := contentKey(e)
		if pool[k] == 0 {
			continue
		}
		pool[k]--
		if _, err := w.removeMatching(ctx, e); err != nil {
			return res, err
		}
		res.Removed++
	}

	for _, e := range missing {
		e.ID = ""
		if _, err := w.mirror.Append(ctx, e); err != nil {
			return res, fmt.Errorf("append to mirror: %w", err)
		}
		res.Added++
	}

	w.syncedAt = readAt

	if res.Added > 0 || res.Removed > 0 {
		slog.InfoContext(ctx, "Mirror reconciled",
			"added", res.Added,
			"removed", res.Removed,
			"total", len(src))
	} else {
		slog.DebugContext(ctx, "Mirror already in sync", "total", len(src))
	}
	return res, nil
}

// removeMatching deletes the last mirror row whose content equals e. The
// mirror is reloaded first because row-derived IDs shift after removals.
func (w *MirrorWorker) removeMatching(ctx context.Context, e core.Expense) (bool, error) {
	rows, err := w.mirror.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load mirror ledger: %w", err)
	}
	key := contentKey(e)
	for i := len(rows) - 1; i >= 0; i-- {
		if contentKey(rows[i]) != key {
			continue
		}
		if err := w.mirror.Remove(ctx, rows[i].ID); err != nil {
			return false, fmt.Errorf("remove from mirror: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// expenseFromEvent rebuilds the record an event describes. Records loaded
// with missing values travel with an empty date or the missing-amount flag.
func expenseFromEvent(ev *amqp.ExpenseEvent) (core.Expense, error) {
	var date core.Date
	if ev.Date != "" {
		d, err := core.ParseDate(ev.Date)
		if err != nil {
			return core.Expense{}, err
		}
		date = d
	}
	return core.Expense{
		Description: ev.Description,
		Amount:      core.Money{Cents: ev.AmountCents, Missing: ev.AmountMissing},
		Date:        date,
	}, nil
}

func contentKey(e core.Expense) string {
	return e.Description + "\x1f" + e.Amount.String() + "\x1f" + e.Date.String()
}
