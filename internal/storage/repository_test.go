package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteAppendLoadRemove(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	got, err := repo.Load(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty ledger, got %v (err=%v)", got, err)
	}

	in := []core.Expense{
		{Description: "Coffee", Amount: core.Money{Cents: 350}, Date: core.NewDate(2024, 1, 1)},
		{Description: "Rent", Amount: core.Money{Cents: 120000}, Date: core.NewDate(2024, 1, 5)},
		{Description: "Coffee", Amount: core.Money{Cents: 350}, Date: core.NewDate(2024, 1, 1)},
	}
	var stored []core.Expense
	for _, e := range in {
		s, err := repo.Append(ctx, e)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if s.ID == "" || s.Description != e.Description || s.Amount != e.Amount || s.Date != e.Date {
			t.Fatalf("append returned %+v for %+v", s, e)
		}
		stored = append(stored, s)
	}

	got, err = repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i := range got {
		if got[i] != stored[i] {
			t.Fatalf("row %d = %+v, want %+v", i, got[i], stored[i])
		}
	}

	if err := repo.Remove(ctx, stored[0].ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ = repo.Load(ctx)
	if len(got) != 2 || got[0].ID != stored[1].ID || got[1].ID != stored[2].ID {
		t.Fatalf("unexpected ledger after removal: %+v", got)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if err := repo.Remove(ctx, stored[0].ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteMissingValuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	s, err := repo.Append(ctx, core.Expense{Description: "Imported", Amount: core.MissingMoney()})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !s.Amount.Missing || !s.Date.IsEmpty() {
		t.Fatalf("missing markers lost: %+v", s)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}
