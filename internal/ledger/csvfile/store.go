// Package csvfile keeps the ledger in a single comma-separated file with
// the header Description,Amount,Date.
//
// Appends add one line without touching the existing content; removals
// rewrite the whole file. Every write happens under the store mutex, which
// serialises writers within one process only.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// Store is a ledger.Store backed by one CSV file.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ ledger.Store = (*Store)(nil)

// New returns a store for path. The file is created on the first append.
func New(path string) *Store {
	return &Store{path: path}
}

// Load returns all records in file order. A missing or empty file is an
// empty ledger.
func (s *Store) Load(ctx context.Context) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Append writes e as the last row and returns it with its ID.
func (s *Store) Append(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return core.Expense{}, err
	}
	if err := s.appendRow(e, !s.hasContent()); err != nil {
		return core.Expense{}, err
	}

	rows := append(existing, e)
	ledger.AssignRowIDs(rows)
	stored := rows[len(rows)-1]

	slog.DebugContext(ctx, "Expense row appended",
		"path", s.path,
		"expense_id", stored.ID,
		"rows", len(rows))
	return stored, nil
}

// Remove deletes the record with the given ID and rewrites the file.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	pos := ledger.IndexOf(rows, id)
	if pos == -1 {
		return fmt.Errorf("remove %s: %w", id, ledger.ErrNotFound)
	}
	return s.removeAt(ctx, rows, pos)
}

// RemoveAt deletes the record at row position pos (0-based, as returned by
// Load) and rewrites the file.
func (s *Store) RemoveAt(ctx context.Context, pos int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	if pos < 0 || pos >= len(rows) {
		return fmt.Errorf("remove row %d of %d: %w", pos, len(rows), ledger.ErrNotFound)
	}
	return s.removeAt(ctx, rows, pos)
}

func (s *Store) removeAt(ctx context.Context, rows []core.Expense, pos int) error {
	rest := make([]core.Expense, 0, len(rows)-1)
	rest = append(rest, rows[:pos]...)
	rest = append(rest, rows[pos+1:]...)
	if err := s.rewrite(rest); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Expense row removed",
		"path", s.path,
		"position", pos,
		"expense_id", rows[pos].ID,
		"rows", len(rest))
	return nil
}

func (s *Store) load() ([]core.Expense, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []core.Expense{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []core.Expense{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	cols, err := ledger.LocateColumns(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	out := []core.Expense{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger row %d: %w", len(out)+1, err)
		}
		out = append(out, cols.ParseRow(rec))
	}
	ledger.AssignRowIDs(out)
	return out, nil
}

// hasContent reports whether the backing file exists and is non-empty.
func (s *Store) hasContent() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Size() > 0
}

func (s *Store) appendRow(e core.Expense, withHeader bool) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_APPEND | os.O_CREATE
	if withHeader {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file for append: %w", err)
	}

	if !withHeader {
		if err := terminateLastLine(f, s.path); err != nil {
			f.Close()
			return err
		}
	}

	w := csv.NewWriter(f)
	if withHeader {
		_ = w.Write(ledger.Header)
	}
	_ = w.Write(ledger.FormatRow(e))
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write ledger row: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger file: %w", err)
	}
	return nil
}

// terminateLastLine writes a newline when the file does not already end
// with one, so the appended row starts on its own line.
func terminateLastLine(f *os.File, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil
	}
	r, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer r.Close()

	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("read ledger tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte("\n")); err != nil {
		return fmt.Errorf("terminate last ledger line: %w", err)
	}
	return nil
}

// rewrite replaces the file with header plus rows. The content is written
// to a temporary file in the same directory and renamed into place.
func (s *Store) rewrite(rows []core.Expense) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	w := csv.NewWriter(tmp)
	_ = w.Write(ledger.Header)
	for _, e := range rows {
		_ = w.Write(ledger.FormatRow(e))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
