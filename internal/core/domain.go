package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on disk and in forms.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day. The zero value marks a missing date.
	Date struct {
		time.Time
	}

	// Money is an amount in cents. Missing is set when a stored value
	// could not be read as a non-negative number.
	Money struct {
		Cents   int64
		Missing bool
	}

	// Expense is one spending event.
	Expense struct {
		ID          string
		Description string
		Amount      Money
		Date        Date
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
)

// NormalizeDescription trims s and turns CRLF and lone CR line breaks into
// LF, the form a CSV reader hands back for a quoted multi-line field.
func NormalizeDescription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// IsEmpty returns true if the date is zero (missing or not supplied)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when missing.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d is strictly before o at day precision.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly after o at day precision.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Missing || m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks an expense before it is written.
func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	return nil
}
