// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between cents and their two-decimal representation.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney converts a decimal string to Money with half-up rounding to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero is
// accepted; negative values, exponents and anything non-numeric are not.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,34")  -> 1234
//	ParseMoney("12.345") -> 1235 (half-up)
//	ParseMoney("0")      -> 0
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") || strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

const maxCents = 1<<63 - 1

// MissingMoney returns the marker for an amount that could not be read.
func MissingMoney() Money {
	return Money{Missing: true}
}

// Decimal returns the amount as a decimal number of currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals ("3.50"), or "" when missing.
func (m Money) String() string {
	if m.Missing {
		return ""
	}
	return m.Decimal().StringFixed(2)
}
