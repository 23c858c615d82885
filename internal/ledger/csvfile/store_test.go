package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expenses.csv")
	return New(path), path
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func expense(desc string, cents int64, y, m, d int) core.Expense {
	return core.Expense{Description: desc, Amount: core.Money{Cents: cents}, Date: core.NewDate(y, m, d)}
}

func sameData(a, b core.Expense) bool {
	return a.Description == b.Description && a.Amount == b.Amount && a.Date == b.Date
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil ledger, got %#v", got)
	}
}

func TestLoadEmptyAndHeaderOnlyFiles(t *testing.T) {
	for name, content := range map[string]string{
		"zero bytes":  "",
		"header only": "Description,Amount,Date\n",
	} {
		t.Run(name, func(t *testing.T) {
			s, path := newTestStore(t)
			mustWrite(t, path, content)
			got, err := s.Load(context.Background())
			if err != nil || len(got) != 0 {
				t.Fatalf("expected empty ledger, got %v (err=%v)", got, err)
			}
		})
	}
}

func TestAppendCreatesFileWithHeaderOnce(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Append(ctx, expense("Coffee", 350, 2024, 1, 1)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if got, want := mustRead(t, path), "Description,Amount,Date\nCoffee,3.50,2024-01-01\n"; got != want {
		t.Fatalf("after first append file = %q, want %q", got, want)
	}

	if _, err := s.Append(ctx, expense("Rent", 120000, 2024, 1, 5)); err != nil {
		t.Fatalf("second append: %v", err)
	}
	want := "Description,Amount,Date\nCoffee,3.50,2024-01-01\nRent,1200.00,2024-01-05\n"
	if got := mustRead(t, path); got != want {
		t.Fatalf("after second append file = %q, want %q", got, want)
	}
}

func TestAppendThenLoadReturnsInputAsLastRow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	inputs := []core.Expense{
		expense("Coffee", 350, 2024, 1, 1),
		expense(`Dinner, "fancy"`, 4599, 2024, 2, 29),
		expense("Coffee", 350, 2024, 1, 1),
	}
	for i, in := range inputs {
		stored, err := s.Append(ctx, in)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		all, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if len(all) != i+1 {
			t.Fatalf("expected %d rows, got %d", i+1, len(all))
		}
		last := all[len(all)-1]
		if !sameData(last, in) {
			t.Fatalf("last row = %+v, want %+v", last, in)
		}
		if last.ID == "" || last.ID != stored.ID {
			t.Fatalf("returned ID %q does not match loaded ID %q", stored.ID, last.ID)
		}
	}
}

func TestAppendCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "expenses.csv")
	s := New(path)
	if _, err := s.Append(context.Background(), expense("Coffee", 350, 2024, 1, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not created: %v", err)
	}
}

func TestAppendToFileWithoutTrailingNewline(t *testing.T) {
	s, path := newTestStore(t)
	mustWrite(t, path, "Description,Amount,Date\nCoffee,3.5,2024-01-01")
	if _, err := s.Append(context.Background(), expense("Rent", 120000, 2024, 1, 5)); err != nil {
		t.Fatalf("append: %v", err)
	}
	want := "Description,Amount,Date\nCoffee,3.5,2024-01-01\nRent,1200.00,2024-01-05\n"
	if got := mustRead(t, path); got != want {
		t.Fatalf("file = %q, want %q", got, want)
	}
}

func TestLoadCoercesUnparseableValues(t *testing.T) {
	s, path := newTestStore(t)
	mustWrite(t, path, "Description,Amount,Date\n"+
		"Coffee,3.5,2024-01-01 00:00:00\n"+
		"Mystery,abc,not-a-date\n")

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if !sameData(got[0], expense("Coffee", 350, 2024, 1, 1)) {
		t.Fatalf("row 0 = %+v", got[0])
	}
	if !got[1].Amount.Missing || !got[1].Date.IsEmpty() {
		t.Fatalf("row 1 should carry missing markers: %+v", got[1])
	}
}

func TestLoadRejectsForeignHeader(t *testing.T) {
	s, path := newTestStore(t)
	mustWrite(t, path, "Payee,Memo\nx,y\n")
	if _, err := s.Load(context.Background()); !errors.Is(err, ledger.ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
}

func seed(t *testing.T, s *Store, es ...core.Expense) []core.Expense {
	t.Helper()
	for _, e := range es {
		if _, err := s.Append(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	all, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("seed load: %v", err)
	}
	return all
}

func TestRemoveAtKeepsOrder(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()
	all := seed(t, s,
		expense("A", 100, 2024, 1, 1),
		expense("B", 200, 2024, 1, 2),
		expense("C", 300, 2024, 1, 3),
		expense("D", 400, 2024, 1, 4),
	)

	if err := s.RemoveAt(ctx, 1); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	rest, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rest) != len(all)-1 {
		t.Fatalf("expected %d rows, got %d", len(all)-1, len(rest))
	}
	for i, want := range []string{"A", "C", "D"} {
		if rest[i].Description != want {
			t.Fatalf("row %d = %q, want %q", i, rest[i].Description, want)
		}
		if rest[i].ID != all[map[int]int{0: 0, 1: 2, 2: 3}[i]].ID {
			t.Fatalf("row %d changed ID across removal", i)
		}
	}
	want := "Description,Amount,Date\nA,1.00,2024-01-01\nC,3.00,2024-01-03\nD,4.00,2024-01-04\n"
	if got := mustRead(t, path); got != want {
		t.Fatalf("file = %q, want %q", got, want)
	}
}

func TestRemoveAtOutOfRange(t *testing.T) {
	s, path := newTestStore(t)
	seed(t, s, expense("A", 100, 2024, 1, 1))
	before := mustRead(t, path)

	for _, pos := range []int{-1, 1, 10} {
		if err := s.RemoveAt(context.Background(), pos); !errors.Is(err, ledger.ErrNotFound) {
			t.Fatalf("pos %d: expected ErrNotFound, got %v", pos, err)
		}
	}
	if mustRead(t, path) != before {
		t.Fatalf("file changed after failed removal")
	}
}

func TestRemoveByID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	all := seed(t, s,
		expense("Coffee", 350, 2024, 1, 1),
		expense("Rent", 120000, 2024, 1, 5),
	)

	if err := s.Remove(ctx, all[0].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	rest, _ := s.Load(ctx)
	if len(rest) != 1 || rest[0].ID != all[1].ID {
		t.Fatalf("unexpected ledger after removal: %+v", rest)
	}

	// A stale ID no longer matches anything and must not remove another row.
	if err := s.Remove(ctx, all[0].ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale ID, got %v", err)
	}
	rest, _ = s.Load(ctx)
	if len(rest) != 1 {
		t.Fatalf("stale removal changed the ledger: %+v", rest)
	}
}

func TestRemoveLastRowLeavesHeader(t *testing.T) {
	s, path := newTestStore(t)
	all := seed(t, s, expense("Coffee", 350, 2024, 1, 1))
	if err := s.Remove(context.Background(), all[0].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := mustRead(t, path); got != "Description,Amount,Date\n" {
		t.Fatalf("file = %q", got)
	}
	if _, err := s.Append(context.Background(), expense("Tea", 250, 2024, 1, 2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := mustRead(t, path); got != "Description,Amount,Date\nTea,2.50,2024-01-02\n" {
		t.Fatalf("header repeated or lost: %q", got)
	}
}

func TestCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := s.Append(ctx, expense("A", 1, 2024, 1, 1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
