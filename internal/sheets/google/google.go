package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"budget/internal/core"
	ports "budget/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultPrefix = "Budget"

// Client exports yearly overviews to one spreadsheet, one tab per user and
// year.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string

	// Tabs known to exist, so the spreadsheet is only inspected once per tab.
	mu    sync.Mutex
	known map[string]bool
}

var (
	_ ports.OverviewExporter = (*Client)(nil)
	_ ports.OverviewReader   = (*Client)(nil)
)

type Options struct {
	SpreadsheetID string
	SheetPrefix   string // default "Budget"
}

// NewFromEnv creates a client from GOOGLE_SPREADSHEET_ID and
// GOOGLE_SHEET_PREFIX using service account credentials.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetPrefix:   os.Getenv("GOOGLE_SHEET_PREFIX"),
	})
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts)
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, opts Options) (*Client, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	prefix := strings.TrimSpace(opts.SheetPrefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Client{svc: svc, spreadsheetID: id, prefix: prefix, known: make(map[string]bool)}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// SheetName is the tab holding userID's overview for year.
func (c *Client) SheetName(userID int64, year int) string {
	return fmt.Sprintf("%s %d %d", c.prefix, userID, year)
}

// quoteSheet quotes a tab name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// ExportOverview replaces the content of the user's tab with the overview.
func (c *Client) ExportOverview(ctx context.Context, e ports.OverviewExport) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if e.UserID <= 0 {
		return "", fmt.Errorf("invalid user id: %d", e.UserID)
	}

	title := c.SheetName(e.UserID, e.Year)
	if err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	tab := quoteSheet(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, tab, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", title, err)
	}

	values := toValues(ports.Rows(e.Overview))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, tab+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", title, err)
	}

	ref := fmt.Sprintf("%s!A1:N%d", tab, len(values))
	slog.InfoContext(ctx, "Exported yearly overview to Google Sheets",
		"user_id", e.UserID,
		"year", e.Year,
		"sheets_ref", ref)
	return ref, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	c.mu.Lock()
	ok := c.known[title]
	c.mu.Unlock()
	if ok {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}

	c.mu.Lock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.known[sh.Properties.Title] = true
		}
	}
	ok = c.known[title]
	c.mu.Unlock()
	if ok {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created sheet", "title", title)

	c.mu.Lock()
	c.known[title] = true
	c.mu.Unlock()
	return nil
}

// ReadOverview reads a previously exported tab back.
func (c *Client) ReadOverview(ctx context.Context, userID int64, year int) (core.YearlyOverview, error) {
	if c.svc == nil {
		return core.YearlyOverview{}, errors.New("sheets service not initialized")
	}
	rng := quoteSheet(c.SheetName(userID, year)) + "!A1:N"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == 400 || gerr.Code == 404) {
			return core.YearlyOverview{}, ports.ErrNoExport
		}
		return core.YearlyOverview{}, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseOverview(resp.Values)
}

func toValues(rows [][]ports.Cell) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row))
		for j, cell := range row {
			if j == 0 || i == 0 {
				vals[j] = cell.Text
				continue
			}
			vals[j] = cell.Amount.Float()
		}
		out[i] = vals
	}
	return out
}
