package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"caja/internal/core"
	"caja/internal/log"
)

// SheetsConfig selects the spreadsheet and service-account credentials.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Sheets appends each closed session to a per-year tab, e.g. "2024 Caja".
type Sheets struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger
}

var _ Exporter = (*Sheets)(nil)

// NewSheets authenticates with the configured service account. Extra client
// options are appended after the credentials.
func NewSheets(ctx context.Context, cfg SheetsConfig, logger *log.Logger, opts ...option.ClientOption) (*Sheets, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentExport)

	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "Creating Google Sheets service with service account",
			"credentials_size", len(creds),
			"scope", gsheet.SpreadsheetsScope)
		opts = []option.ClientOption{
			option.WithCredentialsJSON(creds),
			option.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Caja"
	}
	return &Sheets{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheetBase: base, logger: logger}, nil
}

func credentials(cfg SheetsConfig) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// ExportSession appends the session rows plus a closing line. An empty tab
// gets the header first.
func (s *Sheets) ExportSession(ctx context.Context, summary core.SessionSummary, txs []core.Transaction) (string, error) {
	year := summary.Session.OpenedAt.Year()
	if summary.Session.ClosedAt != nil {
		year = summary.Session.ClosedAt.Year()
	}
	sheet := yearPrefixedName(s.sheetBase, year)

	existing, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheet+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", sheet, err)
	}

	var values [][]any
	if len(existing.Values) == 0 {
		values = append(values, Header)
	}
	values = append(values, Rows(summary.Session.ID, txs)...)
	values = append(values, ClosingRow(summary))

	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, sheet+"!A:H", &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}

	ref := sheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	s.logger.InfoContext(ctx, "Exported session",
		log.FieldSessionID, summary.Session.ID,
		"rows", len(values),
		"range", ref)
	return ref, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
