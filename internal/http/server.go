package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	appweb "ledger/web"
)

// Ledger is the service surface the handlers need.
// *services.LedgerService satisfies it.
type Ledger interface {
	List(ctx context.Context) ([]core.Expense, error)
	Add(ctx context.Context, description string, amount core.Money, date core.Date) (core.Expense, error)
	Remove(ctx context.Context, id string) (core.Expense, error)
	Filter(ctx context.Context, f core.Filter) ([]core.Expense, error)
	Ready(ctx context.Context) error
}

// Options tunes the server. The zero value is usable.
type Options struct {
	// RateLimitPerMinute bounds POST and DELETE requests per client.
	RateLimitPerMinute int

	// TrustedProxies adds CIDRs to the detector's private-network defaults.
	TrustedProxies []string
	Logger         *applog.Logger
}

var errTemplatesNotLoaded = errors.New("templates not loaded")

type Server struct {
	http.Server
	templates  *template.Template
	ledger     Ledger
	logger     *applog.Logger
	structured *applog.StructuredLogger

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	appMetrics  *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime          time.Time
	expensesAdded   int64
	expensesRemoved int64
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:      ledger,
		logger:      logger,
		structured:  applog.NewStructuredLogger(logger),
		rateLimiter: ratelimit.NewLimiter(limitCfg),
		detector:    security.NewDetector(),
		appMetrics:  &appMetrics{uptime: time.Now()},
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(s.structured, s.detector.ExtractClientIP)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/expenses", s.handleCreateExpense)
	mux.HandleFunc("/expenses/remove", s.handleRemoveExpense)
	// UI partials
	mux.HandleFunc("/ui/ledger", s.handleLedger)
	mux.HandleFunc("/ui/filter", s.handleFilter)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(logger)(h)
	s.Handler = h

	return s
}

// Shutdown stops the rate limiter sweep and gracefully shuts down the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldComponent, applog.ComponentRateLimit)

	resp := ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", "60")
	if isHTMX(r) {
		resp.Retarget(resultTarget(r.URL.Path), "innerHTML")
	}
	resp.Write(w)
}

// resultTarget is the message area next to the form that posts to path.
func resultTarget(path string) string {
	if path == "/expenses/remove" {
		return "#remove-result"
	}
	return "#add-result"
}

// execute renders a template into memory so a failure can still produce a
// clean error response.
func (s *Server) execute(name string, data any) (string, error) {
	if s.templates == nil {
		return "", errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
