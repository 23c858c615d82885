package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// Expense is a row of the expenses table. A NULL amount marks a value
// that could not be read when the row was imported.
type Expense struct {
	Seq         int64
	ID          string
	Description string
	AmountCents sql.NullInt64
	Date        string
}

const createExpense = `-- name: CreateExpense :one
INSERT INTO expenses (id, description, amount_cents, date)
VALUES (?, ?, ?, ?)
RETURNING seq, id, description, amount_cents, date
`

type CreateExpenseParams struct {
	ID          string
	Description string
	AmountCents sql.NullInt64
	Date        string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.ID,
		arg.Description,
		arg.AmountCents,
		arg.Date,
	)
	var i Expense
	err := row.Scan(
		&i.Seq,
		&i.ID,
		&i.Description,
		&i.AmountCents,
		&i.Date,
	)
	return i, err
}

const listExpenses = `-- name: ListExpenses :many
SELECT seq, id, description, amount_cents, date
FROM expenses
ORDER BY seq
`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(
			&i.Seq,
			&i.ID,
			&i.Description,
			&i.AmountCents,
			&i.Date,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteExpense = `-- name: DeleteExpense :execrows
DELETE FROM expenses WHERE id = ?
`

func (q *Queries) DeleteExpense(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
