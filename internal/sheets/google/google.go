package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"ledger/internal/core"
	"ledger/internal/ledger"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet tab and the credentials used to reach it:
// a service account, or an OAuth client plus a token from oauth-init.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// Client keeps the ledger in one tab of a Google spreadsheet, with the same
// Description, Amount, Date columns as the flat file.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serialises read-modify-write sequences issued by this process.
	mu      sync.Mutex
	sheetID *int64
}

var _ ledger.Store = (*Client)(nil)

// New creates a Sheets client. Without extra options the service account
// from cfg is used; tests pass endpoint and HTTP client options instead.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Expenses"
	}

	if len(opts) == 0 {
		creds, err := credentialsOption(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{creds, goption.WithScopes(gsheet.SpreadsheetsScope)}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets ledger ready",
		"spreadsheet_id", spreadsheetID,
		"sheet", sheetName)

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// credentialsOption resolves credentials from an inline service account,
// a service account file, an OAuth client and token, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func credentialsOption(ctx context.Context, cfg Config) (goption.ClientOption, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials", "json_length", len(inline))
		return goption.WithCredentialsJSON([]byte(inline)), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return goption.WithCredentialsJSON(data), nil
	}

	opt, ok, err := oauthOption(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if ok {
		slog.InfoContext(ctx, "Using OAuth user credentials")
		return opt, nil
	}

	if file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); file != "" {
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return goption.WithCredentialsJSON(data), nil
	}
	return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// Load implements ledger.ExpenseLister
func (c *Client) Load(ctx context.Context) ([]core.Expense, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	return t.expenses, nil
}

// Append implements ledger.ExpenseWriter
func (c *Client) Append(ctx context.Context, e core.Expense) (core.Expense, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.read(ctx)
	if err != nil {
		return core.Expense{}, err
	}

	var values [][]interface{}
	if t.empty {
		values = append(values, toRow(ledger.Header))
	}
	values = append(values, t.cols.layoutRow(e))

	rng := fmt.Sprintf("%s!A1", c.sheetName)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return core.Expense{}, fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	rows := append(t.expenses, e)
	ledger.AssignRowIDs(rows)
	stored := rows[len(rows)-1]

	slog.InfoContext(ctx, "Expense appended to Google Sheets",
		"sheet", c.sheetName,
		"expense_id", stored.ID,
		"rows", len(rows))
	return stored, nil
}

// Remove implements ledger.ExpenseRemover by deleting the sheet row that
// holds the record.
func (c *Client) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.read(ctx)
	if err != nil {
		return err
	}
	pos := ledger.IndexOf(t.expenses, id)
	if pos == -1 {
		return fmt.Errorf("remove %s: %w", id, ledger.ErrNotFound)
	}

	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	row := int64(t.rowIndex[pos])
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: row,
					EndIndex:   row + 1,
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", row+1, c.sheetName, err)
	}

	slog.InfoContext(ctx, "Expense removed from Google Sheets",
		"sheet", c.sheetName,
		"expense_id", id,
		"sheet_row", row+1)
	return nil
}

func (c *Client) read(ctx context.Context) (table, error) {
	if c.svc == nil {
		return table{}, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName).Context(ctx).Do()
	if err != nil {
		return table{}, fmt.Errorf("read %s: %w", c.sheetName, err)
	}
	t, err := parseValues(resp.Values)
	if err != nil {
		return table{}, fmt.Errorf("sheet %s: %w", c.sheetName, err)
	}
	return t, nil
}

// lookupSheetID resolves the numeric tab ID needed for row deletion.
func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
