package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ledger/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": "test", "amount": 42.5}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}

	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}

	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&value=100"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}

	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"DELETE allowed with multiple", http.MethodDelete, []string{http.MethodDelete, http.MethodPost}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequirePOST(t *testing.T) {
	postReq := httptest.NewRequest(http.MethodPost, "/test", nil)
	if result := RequirePOST(postReq); result != nil {
		t.Error("RequirePOST should allow POST requests")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/test", nil)
	if result := RequirePOST(getReq); result == nil {
		t.Error("RequirePOST should reject GET requests")
	}
}

func TestRequireDeleteOrPOST(t *testing.T) {
	tests := []struct {
		method  string
		wantErr bool
	}{
		{http.MethodPost, false},
		{http.MethodDelete, false},
		{http.MethodGet, true},
		{http.MethodPut, true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireDeleteOrPOST(req)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func newBodyParser(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestParseExpenseInput(t *testing.T) {
	in, err := ParseExpenseInput(newBodyParser(t, "description=+Coffee+&amount=3,5&date=2024-01-01"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Description != "Coffee" || in.Amount.Cents != 350 || in.Date != core.NewDate(2024, 1, 1) {
		t.Fatalf("unexpected input: %+v", in)
	}

	in, err = ParseExpenseInput(newBodyParser(t, "description=Tea&amount=2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Date.IsEmpty() {
		t.Fatal("missing date should default to today")
	}

	tests := []struct {
		body string
		want error
	}{
		{"description=x&amount=abc&date=2024-01-01", core.ErrInvalidAmount},
		{"description=x&amount=&date=2024-01-01", core.ErrInvalidAmount},
		{"description=x&amount=-1&date=2024-01-01", core.ErrInvalidAmount},
		{"description=x&amount=1&date=01/02/2024", core.ErrInvalidDate},
	}
	for _, tt := range tests {
		if _, err := ParseExpenseInput(newBodyParser(t, tt.body)); !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.body, err, tt.want)
		}
	}
}

func TestParseExpenseInputZeroAmountIsLeftToValidation(t *testing.T) {
	in, err := ParseExpenseInput(newBodyParser(t, "description=x&amount=0&date=2024-01-01"))
	if err != nil {
		t.Fatalf("zero parses; the service rejects it: %v", err)
	}
	if in.Amount.Cents != 0 {
		t.Fatalf("amount = %d", in.Amount.Cents)
	}
}

func TestParseFilterQuery(t *testing.T) {
	f, err := ParseFilterQuery(url.Values{
		"q":    {" coffee "},
		"max":  {"10.00"},
		"from": {"2024-01-01"},
		"to":   {"2024-01-31"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := core.Filter{
		Description: "coffee",
		MaxAmount:   core.Money{Cents: 1000},
		From:        core.NewDate(2024, 1, 1),
		To:          core.NewDate(2024, 1, 31),
	}
	if f != want {
		t.Fatalf("filter = %+v, want %+v", f, want)
	}

	f, err = ParseFilterQuery(url.Values{"max": {""}, "from": {""}})
	if err != nil || !f.IsZero() {
		t.Fatalf("empty query should be a zero filter, got %+v (err=%v)", f, err)
	}

	if _, err := ParseFilterQuery(url.Values{"max": {"lots"}}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("max: error = %v", err)
	}
	if _, err := ParseFilterQuery(url.Values{"to": {"yesterday"}}); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("to: error = %v", err)
	}
}
