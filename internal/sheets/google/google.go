package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"dailyledger/internal/core"
	"dailyledger/internal/records"
	ports "dailyledger/internal/sheets"

	"golang.org/x/sync/singleflight"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the worksheet used when none is configured.
const DefaultSheetName = "Ledger"

const defaultRowCacheTTL = 30 * time.Second

// lastColumn is the spreadsheet column of the final ledger field.
const lastColumn = "O"

// Options configures a Client.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	RowCacheTTL        time.Duration
}

// valuesAPI is the subset of the Sheets values service the client needs.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, values [][]any) error
	Clear(ctx context.Context, rng string) error
}

// Client stores one ledger record per row of a worksheet, keyed by the ISO
// date in column A. Row 1 holds the column headers.
type Client struct {
	values valuesAPI
	sheet  string

	// writeMu serializes row allocation and writes.
	writeMu sync.Mutex

	// Row index cache: date key -> 1-based row number.
	mu                 sync.Mutex
	rowIndex           map[string]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	group              singleflight.Group
}

// Ensure interface conformance
var _ ports.Backend = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&sheetsValues{svc: svc, spreadsheetID: opts.SpreadsheetID}, opts), nil
}

func newClient(values valuesAPI, opts Options) *Client {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	ttl := opts.RowCacheTTL
	if ttl <= 0 {
		ttl = defaultRowCacheTTL
	}
	return &Client{values: values, sheet: sheet, cacheValidDuration: ttl}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither option is set.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(opts.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ListRecords reads every row below the header and re-derives the metrics.
func (c *Client) ListRecords(ctx context.Context) ([]core.LedgerRecord, error) {
	rng := fmt.Sprintf("%s!A:%s", c.sheet, lastColumn)
	values, err := c.values.Get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, toStrings(v))
	}
	recs, err := records.DecodeRows(toStrings(values[0]), rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rng, err)
	}
	return recs, nil
}

// Upsert overwrites the row holding rec's date, or appends a new row.
func (c *Client) Upsert(ctx context.Context, rec core.LedgerRecord) error {
	if err := rec.Date.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	index, rowCount, err := c.index(ctx)
	if err != nil {
		return err
	}

	if rowCount == 0 {
		if err := c.writeRow(ctx, 1, headerRow()); err != nil {
			c.InvalidateRowCache()
			return fmt.Errorf("write header in sheet %s: %w", c.sheet, err)
		}
		rowCount = 1
	}

	row, ok := index[rec.Key()]
	if !ok {
		row = rowCount + 1
	}
	if err := c.writeRow(ctx, row, recordRow(rec)); err != nil {
		c.InvalidateRowCache()
		return fmt.Errorf("write %s in sheet %s: %w", rec.Key(), c.sheet, err)
	}

	c.mu.Lock()
	if c.rowIndex != nil {
		c.rowIndex[rec.Key()] = row
		if row > c.cachedRowCount {
			c.cachedRowCount = row
		}
	}
	c.mu.Unlock()
	return nil
}

// ClearRecords blanks every row below the header.
func (c *Client) ClearRecords(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	defer c.InvalidateRowCache()
	rng := fmt.Sprintf("%s!A2:%s", c.sheet, lastColumn)
	if err := c.values.Clear(ctx, rng); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

// InvalidateRowCache forces the next write to re-read column A.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	c.rowIndex = nil
	c.cachedRowCount = 0
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// index returns a copy of the date -> row map and the number of used rows.
// Concurrent misses share one read of column A.
func (c *Client) index(ctx context.Context) (map[string]int, int, error) {
	c.mu.Lock()
	if c.rowIndex != nil && time.Now().Before(c.cacheExpiresAt) {
		idx, n := copyIndex(c.rowIndex), c.cachedRowCount
		c.mu.Unlock()
		return idx, n, nil
	}
	c.mu.Unlock()

	_, err, _ := c.group.Do("row-index", func() (any, error) {
		rng := fmt.Sprintf("%s!A:A", c.sheet)
		values, err := c.values.Get(ctx, rng)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rng, err)
		}
		idx := make(map[string]int, len(values))
		for i, v := range values {
			if i == 0 || len(v) == 0 {
				continue
			}
			if d, ok := dateKey(cellString(v[0])); ok {
				idx[d] = i + 1
			}
		}
		c.mu.Lock()
		c.rowIndex = idx
		c.cachedRowCount = len(values)
		c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return copyIndex(c.rowIndex), c.cachedRowCount, nil
}

func (c *Client) writeRow(ctx context.Context, row int, values []any) error {
	rng := fmt.Sprintf("%s!A%d:%s%d", c.sheet, row, lastColumn, row)
	return c.values.Update(ctx, rng, [][]any{values})
}

func copyIndex(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// sheetsValues adapts the generated Sheets client to valuesAPI.
type sheetsValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *sheetsValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *sheetsValues) Update(ctx context.Context, rng string, values [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *sheetsValues) Clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}
