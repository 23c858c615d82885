package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/ledger"
	"ledger/internal/ledger/csvfile"
	"ledger/internal/ledger/memory"
	"ledger/internal/services"
	gsheet "ledger/internal/sheets/google"
	"ledger/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := f.CreateStore(ctx, config)
	if err != nil {
		return nil, err
	}

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.EventPublisher
	if client := f.createPublisher(config); client != nil {
		publisher = client
	}

	svc := services.NewLedgerService(store, publisher)
	return &BackendResult{
		Store:   store,
		Service: svc,
		Cleanup: svc.Close,
	}, nil
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (ledger.Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		return f.createCSVBackend(config), nil
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CloseStore releases store when it holds resources.
func CloseStore(store ledger.Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (f *DefaultFactory) createCSVBackend(config Config) ledger.Store {
	f.logger.Info("Initialized CSV backend", "path", config.CSVPath)
	return csvfile.New(config.CSVPath)
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (ledger.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (ledger.Store, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenJSON:     config.GoogleOAuthTokenJSON,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return cli, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) ledger.Store {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return memory.NewFromFiles(dataDir)
}

// createPublisher connects to the broker when configured. A broker that
// cannot be reached disables events instead of failing startup.
func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange)
	return client
}
