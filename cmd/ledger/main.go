package main

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"ledger/internal/backend"
	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	applog "ledger/internal/log"
)

func main() {
	// Bootstrap logger until LOG_LEVEL is known.
	logger := cli.SetupLogger("info")

	if err := cli.LoadEnvFile(); err != nil {
		cli.Fatal(logger, "Failed to load .env file", err)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}
	logger = cli.SetupLogger(cfg.LogLevel)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	factory := backend.NewFactory(logger.With(applog.FieldComponent, applog.ComponentBackend).Logger)
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.ErrorContext(context.Background(), "Backend cleanup error", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(cfg.Addr(), res.Service, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "Starting ledger server",
			"addr", cfg.Addr(),
			applog.FieldBackend, cfg.DataBackend,
			"events", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(context.Background(), "Shutdown signal received", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.ErrorContext(context.Background(), "Server error", applog.FieldError, err)
		stop()
		if cerr := res.Cleanup(); cerr != nil {
			logger.ErrorContext(context.Background(), "Backend cleanup error", applog.FieldError, cerr)
		}
		cli.Fatal(logger, "Ledger server stopped with error", err)
	}
	logger.InfoContext(context.Background(), "Server stopped gracefully")
}
