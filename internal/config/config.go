package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Supported DATA_BACKEND values.
const (
	BackendCSV    = "csv"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

var validBackends = []string{BackendCSV, BackendMemory, BackendSQLite, BackendSheets}

var validLogLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration

	// Extra proxy networks whose X-Forwarded-For is believed.
	TrustedProxies []string

	// Logging
	LogLevel string

	// Backend selection
	DataBackend string

	// Flat file
	LedgerCSVPath string

	// In-memory seed directory
	MemorySeedDir string

	// Database
	SQLiteDBPath string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Mirror worker
	MirrorBackend      string
	MirrorCSVPath      string
	MirrorSQLiteDBPath string
	MirrorSyncInterval time.Duration

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenJSON     string
	GoogleOAuthTokenFile     string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		DataBackend: strings.ToLower(getEnv("DATA_BACKEND", BackendCSV)),

		LedgerCSVPath: getEnv("LEDGER_CSV_PATH", "expenses.csv"),
		MemorySeedDir: getEnv("MEMORY_SEED_DIR", "data"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/ledger.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger-mirror"),

		MirrorBackend:      strings.ToLower(getEnv("MIRROR_BACKEND", BackendSheets)),
		MirrorCSVPath:      getEnv("MIRROR_CSV_PATH", "mirror.csv"),
		MirrorSQLiteDBPath: getEnv("MIRROR_SQLITE_DB_PATH", "./data/mirror.db"),
		MirrorSyncInterval: getEnvDuration("MIRROR_SYNC_INTERVAL", 5*time.Minute),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR such as 203.0.113.0/24", cidr))
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	} else if c.RateLimitPerMinute > 10000 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at most 10000 requests per minute", c.RateLimitPerMinute))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	} else if c.ShutdownTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at most 5 minutes", c.ShutdownTimeout))
	}

	// Validate data backend
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendCSV:
		if strings.TrimSpace(c.LedgerCSVPath) == "" {
			errors = append(errors, "ledger CSV path cannot be empty when using csv backend")
		} else if info, err := os.Stat(c.LedgerCSVPath); err == nil && info.IsDir() {
			errors = append(errors, fmt.Sprintf("ledger CSV path '%s' is a directory", c.LedgerCSVPath))
		}

	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}

	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		errors = append(errors, c.googleCredentialErrors()...)
	}

	// AMQP is optional; validate only when configured
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the mirror worker needs on top of
// Validate.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the mirror worker")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty")
	}

	switch c.MirrorBackend {
	case BackendCSV:
		if strings.TrimSpace(c.MirrorCSVPath) == "" {
			errors = append(errors, "mirror CSV path cannot be empty when using csv mirror")
		} else if c.DataBackend == BackendCSV && filepath.Clean(c.MirrorCSVPath) == filepath.Clean(c.LedgerCSVPath) {
			errors = append(errors, "mirror CSV path must differ from the ledger CSV path")
		}
	case BackendSQLite:
		if c.MirrorSQLiteDBPath == "" {
			errors = append(errors, "mirror SQLite database path cannot be empty when using sqlite mirror")
		} else if c.DataBackend == BackendSQLite && filepath.Clean(c.MirrorSQLiteDBPath) == filepath.Clean(c.SQLiteDBPath) {
			errors = append(errors, "mirror SQLite database path must differ from the ledger database path")
		}
	case BackendSheets:
		if c.DataBackend == BackendSheets {
			errors = append(errors, "sheets cannot be both the data backend and the mirror")
		}
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets mirror")
		}
		errors = append(errors, c.googleCredentialErrors()...)
	default:
		errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of [csv sqlite sheets]", c.MirrorBackend))
	}

	if c.MirrorSyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid mirror sync interval %v: must be at least 1 second", c.MirrorSyncInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// googleCredentialErrors accepts a service account (inline, file or
// GOOGLE_APPLICATION_CREDENTIALS) or an OAuth client together with a token.
func (c *Config) googleCredentialErrors() []string {
	var errors []string

	hasJSON := c.GoogleServiceAccountJSON != ""
	hasFile := c.GoogleServiceAccountFile != ""
	hasClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
	hasToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""

	switch {
	case hasJSON || hasFile:
	case hasClient && !hasToken:
		errors = append(errors, "GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE is required with an OAuth client (run oauth-init)")
	case hasClient && hasToken:
	case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "":
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or an OAuth client and token must be provided for sheets")
	}

	for _, f := range []struct{ what, path string }{
		{"service account", c.GoogleServiceAccountFile},
		{"OAuth client", c.GoogleOAuthClientFile},
		{"OAuth token", c.GoogleOAuthTokenFile},
	} {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google %s file does not exist: %s", f.what, f.path))
		}
	}
	return errors
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
