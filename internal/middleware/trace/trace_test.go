package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "ledger/internal/log"
)

func newTraced(t *testing.T, h http.HandlerFunc) (http.Handler, *Middleware, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Component: applog.ComponentHTTP, Output: &buf})
	m := NewMiddleware(applog.NewStructuredLogger(logger), func(*http.Request) string { return "192.0.2.1" })
	return applog.Middleware(logger)(m.Middleware(h)), m, &buf
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h, m, buf := newTraced(t, func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		applog.FromContext(r.Context()).InfoContext(r.Context(), "handler ran")
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected generated request id %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q does not match %q", rr.Header().Get(HeaderRequestID), seen)
	}
	out := buf.String()
	if strings.Count(out, "request_id="+seen) < 2 {
		t.Fatalf("handler and completion logs should carry the request id:\n%s", out)
	}
	if !strings.Contains(out, "status_code=404") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("completion log missing status:\n%s", out)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Fatalf("TotalRequests = %d", got)
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	var seen string
	h, _, _ := newTraced(t, func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Fatalf("request id = %q, want abc-123", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "bad id with spaces")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad id with spaces" {
		t.Fatal("malformed incoming id must be replaced")
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusUnprocessableEntity)
	rw.WriteHeader(http.StatusOK)
	if rw.statusCode != http.StatusUnprocessableEntity {
		t.Fatalf("statusCode = %d", rw.statusCode)
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}
