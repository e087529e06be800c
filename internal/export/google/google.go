// Package google appends committed allocations to a Google Sheets
// statement, the household's external audit trail.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"contas/internal/core"
)

// Client writes allocation rows to one sheet of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Config for the statement spreadsheet.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
}

// NewFromEnv builds a client from environment configuration:
// STATEMENT_SPREADSHEET_ID, STATEMENT_SHEET_NAME and
// GOOGLE_CREDENTIALS_FILE (service account JSON; omitted means
// application default credentials).
func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg := Config{
		SpreadsheetID:   os.Getenv("STATEMENT_SPREADSHEET_ID"),
		SheetName:       os.Getenv("STATEMENT_SHEET_NAME"),
		CredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Allocations"
	}
	return New(ctx, cfg)
}

// New builds a client for the configured spreadsheet.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("statement spreadsheet id is required")
	}

	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, goption.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

// AppendAllocation implements ledger.StatementWriter: one row per
// committed allocation, signed amount as recorded on the wire.
func (c *Client) AppendAllocation(ctx context.Context, t core.Transaction) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{{
		t.Date.Format("2006-01-02"),
		t.AccountID,
		t.RelatedEntityID,
		t.Amount.String(),
		t.Description,
	}}}

	rng := fmt.Sprintf("%s!A:E", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append allocation row: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}

	slog.InfoContext(ctx, "Allocation exported to statement",
		"transaction_id", t.ID,
		"statement_ref", ref)

	return ref, nil
}
