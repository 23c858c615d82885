// Package memory provides an in-process ledger.Store used for development
// and tests.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// SeedFile is the file NewFromFiles reads initial records from.
const SeedFile = "seed_expenses.csv"

type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

var _ ledger.Store = (*Store)(nil)

// New returns a store holding a copy of seed. Records without an ID get one.
func New(seed ...core.Expense) *Store {
	items := make([]core.Expense, 0, len(seed))
	for _, e := range seed {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		items = append(items, e)
	}
	return &Store{items: items}
}

// NewFromFiles seeds the store from base/seed_expenses.csv when present.
// A missing or unreadable seed file yields an empty store.
func NewFromFiles(base string) *Store {
	return New(readSeed(filepath.Join(base, SeedFile))...)
}

func (s *Store) Load(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense{}, s.items...), nil
}

// Append stores the expense under a fresh random ID.
func (s *Store) Append(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.NewString()
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := ledger.IndexOf(s.items, id)
	if pos == -1 {
		return fmt.Errorf("remove %s: %w", id, ledger.ErrNotFound)
	}
	s.items = append(s.items[:pos:pos], s.items[pos+1:]...)
	return nil
}

func readSeed(path string) []core.Expense {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil || len(records) == 0 {
		return nil
	}
	cols, err := ledger.LocateColumns(records[0])
	if err != nil {
		return nil
	}
	out := make([]core.Expense, 0, len(records)-1)
	for _, rec := range records[1:] {
		out = append(out, cols.ParseRow(rec))
	}
	return out
}
