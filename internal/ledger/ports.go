// Package ledger defines the storage ports for expense records.
package ledger

import (
	"context"
	"errors"

	"ledger/internal/core"
)

// ErrNotFound is returned when a removal targets a record that no longer exists.
var ErrNotFound = errors.New("expense not found")

// Ports for storage adapters.
type (
	ExpenseLister interface {
		// Load returns every record in storage order.
		Load(ctx context.Context) ([]core.Expense, error)
	}

	ExpenseWriter interface {
		// Append stores e after all existing records and returns it with its ID set.
		Append(ctx context.Context, e core.Expense) (core.Expense, error)
	}

	ExpenseRemover interface {
		// Remove deletes the record with the given ID.
		Remove(ctx context.Context, id string) error
	}

	// Pinger is implemented by stores holding a connection worth checking
	// before a full read.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full ledger backend.
	Store interface {
		ExpenseLister
		ExpenseWriter
		ExpenseRemover
	}
)
