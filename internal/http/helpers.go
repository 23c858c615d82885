package http

import (
	"net/http"
	"strings"

	"ledger/internal/core"
)

// missingValue is shown in place of amounts and dates that could not be read.
const missingValue = "—"

// descriptionInputLimit is the form's maxlength. Stored descriptions are
// not bounded.
const descriptionInputLimit = 200

// formatAmount formats a stored amount with two decimals.
func formatAmount(m core.Money) string {
	if m.Missing {
		return missingValue
	}
	return m.String()
}

func formatDate(d core.Date) string {
	if d.IsEmpty() {
		return missingValue
	}
	return d.String()
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// expenseRow is one table line as rendered by the templates.
type expenseRow struct {
	Position    int
	ID          string
	Description string
	Amount      string
	Date        string
}

type ledgerView struct {
	Rows    []expenseRow
	Message string
	Error   string
}

type filteredView struct {
	Rows []expenseRow
}

type indexView struct {
	Ledger         ledgerView
	Today          string
	MaxDescription int
}

func toRows(expenses []core.Expense) []expenseRow {
	rows := make([]expenseRow, len(expenses))
	for i, e := range expenses {
		rows[i] = expenseRow{
			Position:    i,
			ID:          e.ID,
			Description: e.Description,
			Amount:      formatAmount(e.Amount),
			Date:        formatDate(e.Date),
		}
	}
	return rows
}
