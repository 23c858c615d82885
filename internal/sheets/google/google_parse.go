package google

import (
	"fmt"
	"strings"

	"ledger/internal/core"
	"ledger/internal/ledger"
)

// table is the parsed content of the ledger tab.
type table struct {
	// empty is set when the tab has no header row yet.
	empty    bool
	cols     columns
	expenses []core.Expense
	// rowIndex holds the 0-based sheet row of each expense.
	rowIndex []int
}

type columns struct {
	ledger.Columns
}

// parseValues converts a values matrix (as returned by the Sheets API) into
// ledger records. The first row must carry the Description, Amount and Date
// headers; blank rows are skipped.
func parseValues(values [][]interface{}) (table, error) {
	if len(values) == 0 || isBlank(values[0]) {
		return table{
			empty:    true,
			cols:     columns{ledger.Columns{Description: 0, Amount: 1, Date: 2}},
			expenses: []core.Expense{},
		}, nil
	}
	cols, err := ledger.LocateColumns(toStrings(values[0]))
	if err != nil {
		return table{}, err
	}

	t := table{cols: columns{cols}, expenses: []core.Expense{}}
	for i := 1; i < len(values); i++ {
		if isBlank(values[i]) {
			continue
		}
		t.expenses = append(t.expenses, cols.ParseRow(toStrings(values[i])))
		t.rowIndex = append(t.rowIndex, i)
	}
	ledger.AssignRowIDs(t.expenses)
	return t, nil
}

// layoutRow places e's fields under the located header columns.
func (c columns) layoutRow(e core.Expense) []interface{} {
	width := max(c.Description, c.Amount, c.Date) + 1
	row := make([]interface{}, width)
	for i := range row {
		row[i] = ""
	}
	row[c.Description] = e.Description
	row[c.Amount] = e.Amount.String()
	row[c.Date] = e.Date.String()
	return row
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toRow(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func isBlank(row []interface{}) bool {
	for _, v := range row {
		if strings.TrimSpace(fmt.Sprint(v)) != "" {
			return false
		}
	}
	return true
}
