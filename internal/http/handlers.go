package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	applog "ledger/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady checks templates and that the ledger can be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.ledger.Ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentLedger)
		checks["ledger"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["ledger"] = "ok"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.WriteHeader(http.StatusOK)
	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("expenses_added_total", "Expenses added since start", "counter", atomic.LoadInt64(&s.appMetrics.expensesAdded))
	metric("expenses_removed_total", "Expenses removed since start", "counter", atomic.LoadInt64(&s.appMetrics.expensesRemoved))
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", limitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	expenses, err := s.ledger.List(r.Context())
	if err != nil {
		s.structured.LogError(r.Context(), "Failed to load ledger", err, applog.ComponentLedger, applog.OpList, nil)
		InternalServerError("Could not load expenses").Write(w)
		return
	}

	body, err := s.execute("index.html", indexView{
		Ledger:         ledgerView{Rows: toRows(expenses)},
		Today:          core.Today().String(),
		MaxDescription: descriptionInputLimit,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err,
			"template", "index.html",
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleLedger renders the table and remove control, freshly read from storage.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	s.writeLedger(w, r, ledgerView{}, NewHTMXResponse())
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.logger.WarnContext(r.Context(), "Parse form error", applog.FieldError, err, applog.FieldPath, r.URL.Path)
		s.writeError(w, r, BadRequestError("Invalid request format"))
		return
	}

	in, err := ParseExpenseInput(p)
	var e core.Expense
	if err == nil {
		e, err = s.ledger.Add(r.Context(), in.Description, in.Amount, in.Date)
	}
	if err != nil {
		if isValidationError(err) {
			s.logger.WarnContext(r.Context(), "Rejected invalid expense",
				applog.FieldError, err,
				applog.FieldErrorType, applog.ErrorTypeValidation,
				applog.FieldOperation, applog.OpAdd)
			s.writeError(w, r, UnprocessableEntityError("Please enter a valid description and amount: "+err.Error()))
			return
		}
		s.structured.LogError(r.Context(), "Failed to save expense", err, applog.ComponentLedger, applog.OpAdd,
			applog.NewFields().WithExpense("", in.Description, in.Amount.Cents, in.Date.String()))
		s.writeError(w, r, InternalServerError("Error saving expense").TriggerErrorNotification("Error saving expense"))
		return
	}

	atomic.AddInt64(&s.appMetrics.expensesAdded, 1)
	s.structured.LogExpenseAdded(r.Context(), e.ID, e.Description, e.Amount.Cents, e.Date.String())

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	msg := fmt.Sprintf("Added: %s - %s on %s", e.Description, e.Amount.String(), e.Date.String())
	s.writeLedger(w, r, ledgerView{Message: msg}, NewHTMXResponse().
		TriggerExpenseAdded(e.ID).
		TriggerFormReset().
		TriggerSuccessNotification(msg))
}

func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, BadRequestError("Invalid request format"))
		return
	}
	id := p.Get("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}

	removed, err := s.ledger.Remove(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		s.logger.WarnContext(r.Context(), "Expense to remove not found",
			applog.FieldExpenseID, id,
			applog.FieldErrorType, applog.ErrorTypeNotFound,
			applog.FieldOperation, applog.OpRemove)
		const msg = "That expense no longer exists. The list has been refreshed."
		if !isHTMX(r) {
			NotFoundError(msg).Write(w)
			return
		}
		s.writeLedger(w, r, ledgerView{Error: msg}, NewHTMXResponse().Status(http.StatusNotFound))
		return
	}
	if err != nil {
		s.structured.LogError(r.Context(), "Failed to remove expense", err, applog.ComponentLedger, applog.OpRemove,
			applog.NewFields().WithExpense(id, "", 0, ""))
		s.writeError(w, r, InternalServerError("Error removing expense").TriggerErrorNotification("Error removing expense"))
		return
	}

	atomic.AddInt64(&s.appMetrics.expensesRemoved, 1)
	s.logger.InfoContext(r.Context(), "Expense removed",
		applog.FieldExpenseID, removed.ID,
		applog.FieldExpenseDesc, removed.Description,
		applog.FieldOperation, applog.OpRemove)

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	const msg = "Expense removed successfully!"
	s.writeLedger(w, r, ledgerView{Message: msg}, NewHTMXResponse().
		TriggerExpenseRemoved(removed.ID).
		TriggerSuccessNotification(msg))
}

// handleFilter renders the filtered table. It never writes.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}
	f, err := ParseFilterQuery(r.URL.Query())
	if err != nil {
		UnprocessableEntityError("Invalid filter: " + err.Error()).Write(w)
		return
	}

	expenses, err := s.ledger.Filter(r.Context(), f)
	if err != nil {
		s.structured.LogError(r.Context(), "Failed to filter ledger", err, applog.ComponentLedger, applog.OpFilter, nil)
		InternalServerError("Could not load expenses").Write(w)
		return
	}
	s.logger.DebugContext(r.Context(), "Ledger filtered",
		applog.FieldOperation, applog.OpFilter,
		applog.FieldRows, len(expenses))

	body, err := s.execute("filtered.html", filteredView{Rows: toRows(expenses)})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error", applog.FieldError, err, "template", "filtered.html")
		InternalServerError("Error rendering expenses").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// writeLedger re-reads the ledger and writes the ledger partial through resp.
func (s *Server) writeLedger(w http.ResponseWriter, r *http.Request, view ledgerView, resp *HTMXResponseBuilder) {
	expenses, err := s.ledger.List(r.Context())
	if err != nil {
		s.structured.LogError(r.Context(), "Failed to load ledger", err, applog.ComponentLedger, applog.OpList, nil)
		InternalServerError("Could not load expenses").Write(w)
		return
	}
	view.Rows = toRows(expenses)
	body, err := s.execute("ledger.html", view)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution error", applog.FieldError, err, "template", "ledger.html")
		InternalServerError("Error rendering expenses").Write(w)
		return
	}
	resp.BodyHTML(body).Write(w)
}

// writeError sends resp, moving htmx swaps into the form's message area so
// the table stays in place.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder) {
	if isHTMX(r) {
		resp.Retarget(resultTarget(r.URL.Path), "innerHTML")
	}
	resp.Write(w)
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyDescription) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidDate)
}
