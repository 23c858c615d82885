package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection. It implements ledger.Pinger.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements ledger.ExpenseLister
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = toDomain(row)
	}
	return expenses, nil
}

// Append implements ledger.ExpenseWriter
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) (core.Expense, error) {
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		ID:          uuid.NewString(),
		Description: e.Description,
		AmountCents: sql.NullInt64{Int64: e.Amount.Cents, Valid: !e.Amount.Missing},
		Date:        e.Date.String(),
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", row.ID,
		"seq", row.Seq,
		"description", row.Description,
		"amount_cents", row.AmountCents.Int64,
		"date", row.Date)

	return toDomain(row), nil
}

// Remove implements ledger.ExpenseRemover
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	n, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("remove %s: %w", id, ledger.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return nil
}

func toDomain(row Expense) core.Expense {
	amount := core.MissingMoney()
	if row.AmountCents.Valid && row.AmountCents.Int64 >= 0 {
		amount = core.Money{Cents: row.AmountCents.Int64}
	}
	return core.Expense{
		ID:          row.ID,
		Description: row.Description,
		Amount:      amount,
		Date:        ledger.ParseStoredDate(row.Date),
	}
}
