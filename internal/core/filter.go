package core

import "strings"

// Filter narrows a list of expenses. Every criterion is optional and the
// supplied ones are combined with AND.
type Filter struct {
	// Description matches as a case-insensitive substring; empty disables it.
	Description string
	// MaxAmount is an inclusive upper bound, active only when above zero.
	MaxAmount Money
	// From and To bound the date inclusively; the range is active only
	// when both are set.
	From Date
	To   Date
}

// IsZero reports whether no criterion is active.
func (f Filter) IsZero() bool {
	return f.Description == "" && !f.amountActive() && !f.dateActive()
}

func (f Filter) amountActive() bool {
	return !f.MaxAmount.Missing && f.MaxAmount.Cents > 0
}

func (f Filter) dateActive() bool {
	return !f.From.IsEmpty() && !f.To.IsEmpty()
}

// Match reports whether e satisfies every active criterion. A missing
// amount or date never satisfies a criterion on that field.
func (f Filter) Match(e Expense) bool {
	if f.Description != "" &&
		!strings.Contains(strings.ToLower(e.Description), strings.ToLower(f.Description)) {
		return false
	}
	if f.amountActive() {
		if e.Amount.Missing || e.Amount.Cents > f.MaxAmount.Cents {
			return false
		}
	}
	if f.dateActive() {
		if e.Date.IsEmpty() || e.Date.Before(f.From) || e.Date.After(f.To) {
			return false
		}
	}
	return true
}

// Apply returns the expenses that match, in their original order.
// The input slice is not modified.
func (f Filter) Apply(expenses []Expense) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
