// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// the add-expense body, the filter query and method checks.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ledger/internal/core"
)

// ExpenseInput is the decoded add-expense form.
type ExpenseInput struct {
	Description string
	Amount      core.Money
	Date        core.Date
}

// ParseExpenseInput reads description, amount and date from the parsed
// body. An empty date means today. The description is returned as typed;
// the service decides whether it is acceptable.
func ParseExpenseInput(p *RequestBodyParser) (ExpenseInput, error) {
	in := ExpenseInput{Description: p.Get("description")}

	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		return ExpenseInput{}, err
	}
	in.Amount = amount

	in.Date = core.Today()
	if v := p.Get("date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return ExpenseInput{}, err
		}
		in.Date = d
	}
	return in, nil
}

// ParseFilterQuery decodes the q, max, from and to query parameters. Empty
// values leave the matching criterion inactive.
func ParseFilterQuery(query url.Values) (core.Filter, error) {
	f := core.Filter{Description: sanitizeInput(query.Get("q"))}

	if v := strings.TrimSpace(query.Get("max")); v != "" {
		m, err := core.ParseMoney(v)
		if err != nil {
			return core.Filter{}, err
		}
		f.MaxAmount = m
	}
	for _, field := range []struct {
		key string
		dst *core.Date
	}{{"from", &f.From}, {"to", &f.To}} {
		v := strings.TrimSpace(query.Get(field.key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Filter{}, err
		}
		*field.dst = d
	}
	return f, nil
}

// maxBodyBytes caps what a form post may send.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]interface{}
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireDeleteOrPOST is a convenience function for DELETE/POST handlers.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}
