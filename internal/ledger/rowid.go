package ledger

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ledger/internal/core"
)

// rowNamespace scopes the name-based UUIDs of row-oriented backends.
var rowNamespace = uuid.MustParse("6f1c3c4e-8a55-4f4e-9c57-2f0d7a2b9e10")

// AssignRowIDs gives every record an ID derived from its content and the
// number of identical records before it. Appending rows or removing a
// different row leaves existing IDs unchanged, so backends that only
// persist the three data columns still get stable identifiers.
func AssignRowIDs(expenses []core.Expense) {
	seen := make(map[string]int, len(expenses))
	for i := range expenses {
		key := rowKey(expenses[i])
		n := seen[key]
		seen[key] = n + 1
		expenses[i].ID = uuid.NewSHA1(rowNamespace, []byte(key+"\x1f"+strconv.Itoa(n))).String()
	}
}

// IndexOf returns the position of the record with the given ID, or -1.
func IndexOf(expenses []core.Expense, id string) int {
	for i, e := range expenses {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func rowKey(e core.Expense) string {
	return strings.Join([]string{e.Description, e.Amount.String(), e.Date.String()}, "\x1f")
}
