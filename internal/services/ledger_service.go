package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
)

// EventPublisher announces ledger changes. *amqp.Client satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// LedgerService orchestrates expense operations across the store and the
// optional event publisher.
type LedgerService struct {
	// mu serialises mutations so each one sees the previous one's result.
	mu        sync.Mutex
	store     ledger.Store
	publisher EventPublisher
}

// NewLedgerService wires a store with an optional publisher (nil disables events).
func NewLedgerService(store ledger.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// List returns every expense in storage order.
func (s *LedgerService) List(ctx context.Context) ([]core.Expense, error) {
	expenses, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return expenses, nil
}

// Add validates and stores a new expense. Invalid input returns one of the
// core validation errors and nothing is written.
func (s *LedgerService) Add(ctx context.Context, description string, amount core.Money, date core.Date) (core.Expense, error) {
	e := core.Expense{
		Description: core.NormalizeDescription(description),
		Amount:      amount,
		Date:        date,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.Append(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense added",
		"expense_id", stored.ID,
		"description", stored.Description,
		"amount_cents", stored.Amount.Cents,
		"date", stored.Date.String())

	s.publish(ctx, amqp.EventExpenseAdded, stored)
	return stored, nil
}

// Remove deletes the expense with the given ID and returns it. A record
// that no longer exists yields ledger.ErrNotFound.
func (s *LedgerService) Remove(ctx context.Context, id string) (core.Expense, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Expense{}, fmt.Errorf("remove expense: %w", ledger.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Load(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("load ledger: %w", err)
	}
	pos := ledger.IndexOf(current, id)
	if pos == -1 {
		return core.Expense{}, fmt.Errorf("remove %s: %w", id, ledger.ErrNotFound)
	}
	removed := current[pos]

	if err := s.store.Remove(ctx, id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("remove expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense removed",
		"expense_id", removed.ID,
		"position", pos,
		"description", removed.Description)

	s.publish(ctx, amqp.EventExpenseRemoved, removed)
	return removed, nil
}

// Filter returns the expenses matching f without writing anything.
func (s *LedgerService) Filter(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	expenses, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if f.IsZero() {
		return expenses, nil
	}
	return f.Apply(expenses), nil
}

// Ready reports whether the store can be read. Stores with a connection
// are pinged first.
func (s *LedgerService) Ready(ctx context.Context) error {
	if p, ok := s.store.(ledger.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping store: %w", err)
		}
	}
	_, err := s.List(ctx)
	return err
}

func (s *LedgerService) publish(ctx context.Context, event string, e core.Expense) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewExpenseEvent(event, e)); err != nil {
		// The ledger is already updated; events are best effort.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", event,
			"expense_id", e.ID,
			"error", err)
	}
}

// Close releases the store and publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
