package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/ledger"
	applog "ledger/internal/log"
	"ledger/internal/worker"
)

func main() {
	logger := cli.SetupLogger("info")

	if err := cli.LoadEnvFile(); err != nil {
		cli.Fatal(logger, "Failed to load .env file", err)
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		cli.Fatal(logger, "Worker configuration validation failed", err)
	}
	logger = cli.SetupLogger(cfg.LogLevel)
	logger.InfoContext(context.Background(), "Starting ledger-worker",
		"mirror", cfg.MirrorBackend,
		"queue", cfg.AMQPQueue)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	factory := backend.NewFactory(logger.With(applog.FieldComponent, applog.ComponentBackend).Logger)

	mirrorCfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid mirror configuration", err)
	}
	mirror, err := factory.CreateStore(ctx, mirrorCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize mirror store", err)
	}
	defer closeStore(logger, "mirror", mirror)

	source, err := openSource(ctx, factory, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize source store", err)
	}
	if source != nil {
		defer closeStore(logger, "source", source)
	}

	consumer, err := amqp.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP consumer", err)
	}
	defer consumer.Close()

	mirrorWorker := worker.NewMirrorWorker(source, mirror)

	// Catch up with whatever changed while the worker was down.
	if _, err := mirrorWorker.Reconcile(ctx); err != nil {
		logger.ErrorContext(ctx, "Startup reconciliation failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Consume(gctx, mirrorWorker.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.MirrorSyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := mirrorWorker.Reconcile(gctx); err != nil {
					logger.ErrorContext(gctx, "Periodic reconciliation failed",
						applog.FieldOperation, applog.OpSync,
						applog.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.ErrorContext(context.Background(), "Worker stopped with error", applog.FieldError, err)
		stop()
		cli.Fatal(logger, "Event consumption failed", err)
	}
	logger.InfoContext(context.Background(), "Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}

// openSource opens the primary ledger for reconciliation. A memory backend
// lives inside the web process, so there is nothing to read from here.
func openSource(ctx context.Context, factory backend.Factory, cfg *config.Config, logger *applog.Logger) (ledger.Store, error) {
	if cfg.DataBackend == config.BackendMemory {
		logger.InfoContext(ctx, "Memory data backend, reconciliation disabled")
		return nil, nil
	}
	sourceCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	sourceCfg.AMQPURL = ""
	return factory.CreateStore(ctx, sourceCfg)
}

func closeStore(logger *applog.Logger, name string, store ledger.Store) {
	if err := backend.CloseStore(store); err != nil {
		logger.ErrorContext(context.Background(), "Store cleanup error", "store", name, applog.FieldError, err)
	}
}
