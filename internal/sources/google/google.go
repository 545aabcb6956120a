// Package google reads and appends transactions in a Google Sheets tab laid
// out as Date | Type | Amount | Account | Description | Category.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"andamento/internal/core"
	"andamento/internal/sources"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
}

var _ sources.TransactionSource = (*Client)(nil)

// Options configures New.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
	// Location anchors zone-less dates; nil means UTC.
	Location *time.Location
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var credentialsJSON []byte
	switch {
	case opts.CredentialsJSON != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case opts.CredentialsFile != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "component", "sheets", "sheet", opts.SheetName)
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an already-configured service.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		sheetName:     sheet,
		loc:           loc,
	}
}

func (c *Client) dataRange() string {
	return fmt.Sprintf("%s!A:F", c.sheetName)
}

// ListTransactions reads the whole tab and keeps rows for accountID.
func (c *Client) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := c.dataRange()
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	txs, rowErrs := parseTransactionRows(resp.Values, accountID, c.loc)
	for _, re := range rowErrs {
		slog.WarnContext(ctx, "Skipping sheet row", "component", "sheets", "range", rng, "line", re.Line, "error", re.Err)
	}
	return txs, nil
}

// Append writes the transaction as a new row and returns the updated range.
func (c *Client) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row := sources.FormatRow(tx)
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	// RAW keeps the cells as written so ParseRow reads them back unchanged
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.dataRange(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append %s: %w", c.dataRange(), err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return c.dataRange(), nil
}
