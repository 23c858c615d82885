package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger/internal/core"
)

// Header is the column shape of row-oriented backends.
var Header = []string{"Description", "Amount", "Date"}

// ErrBadHeader is returned when stored rows lack one of the Header columns.
var ErrBadHeader = errors.New("unexpected ledger header")

// storedDateLayouts are tried in order when reading a stored date.
var storedDateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Columns maps Header names to their positions in a stored header row.
type Columns struct {
	Description, Amount, Date int
}

// LocateColumns finds the Header columns in header, ignoring case and
// surrounding spaces.
func LocateColumns(header []string) (Columns, error) {
	cols := Columns{Description: -1, Amount: -1, Date: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "description":
			cols.Description = i
		case "amount":
			cols.Amount = i
		case "date":
			cols.Date = i
		}
	}
	var missing []string
	if cols.Description == -1 {
		missing = append(missing, "Description")
	}
	if cols.Amount == -1 {
		missing = append(missing, "Amount")
	}
	if cols.Date == -1 {
		missing = append(missing, "Date")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: missing %s; got headers=%v", ErrBadHeader, strings.Join(missing, ","), header)
	}
	return cols, nil
}

// ParseRow coerces one stored row. Values that cannot be read become the
// missing marker instead of failing the load.
func (c Columns) ParseRow(fields []string) core.Expense {
	return core.Expense{
		Description: safeGet(fields, c.Description),
		Amount:      ParseStoredAmount(safeGet(fields, c.Amount)),
		Date:        ParseStoredDate(safeGet(fields, c.Date)),
	}
}

// FormatRow renders e in Header order.
func FormatRow(e core.Expense) []string {
	return []string{e.Description, e.Amount.String(), e.Date.String()}
}

// ParseStoredAmount reads a stored amount; negative or non-numeric values
// yield core.MissingMoney.
func ParseStoredAmount(s string) core.Money {
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.MissingMoney()
	}
	return m
}

// ParseStoredDate reads a stored date; unreadable values yield the zero Date.
func ParseStoredDate(s string) core.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}
	}
	for _, layout := range storedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t)
		}
	}
	return core.Date{}
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
