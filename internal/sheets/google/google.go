package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"wastewise/internal/core"
	wlog "wastewise/internal/log"
	"wastewise/internal/ports"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and credentials. Sheet names are bases; the
// log sheet is prefixed with the entry's year ("2024 WasteLog").
type Config struct {
	SpreadsheetID       string
	LogSheetName        string
	ChallengesSheetName string
	CredentialsJSON     string
	CredentialsFile     string
}

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	logSheetBase    string
	challengesSheet string
}

// Ensure interface conformance
var (
	_ ports.LogExporter     = (*Client)(nil)
	_ ports.ChallengeSource = (*Client)(nil)
)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	logSheet := strings.TrimSpace(cfg.LogSheetName)
	if logSheet == "" {
		logSheet = "WasteLog"
	}
	challengesSheet := strings.TrimSpace(cfg.ChallengesSheetName)
	if challengesSheet == "" {
		challengesSheet = "Challenges"
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := newSheetsService(ctx, credentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:             svc,
		spreadsheetID:   spreadsheetID,
		logSheetBase:    logSheet,
		challengesSheet: challengesSheet,
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, credentialsJSON []byte) (*gsheet.Service, error) {
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		wlog.FieldComponent, wlog.ComponentSheets,
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

// ExportEntry appends one row to the log sheet for the entry's year and
// returns the updated range.
func (c *Client) ExportEntry(ctx context.Context, e core.WasteLogEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.logSheetBase, e.Date.Year())
	rng := fmt.Sprintf("%s!A:F", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{logRow(e)}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// FetchChallenges reads the challenge catalogue sheet. Rows that cannot be
// parsed are skipped and logged.
func (c *Client) FetchChallenges(ctx context.Context) ([]core.Challenge, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:G", c.challengesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	challenges, rowErrs, err := parseChallenges(resp.Values)
	if err != nil {
		return nil, err
	}
	for _, rowErr := range rowErrs {
		slog.WarnContext(ctx, "Skipping challenge row",
			wlog.FieldComponent, wlog.ComponentSheets,
			wlog.FieldOperation, wlog.OpRefresh,
			wlog.FieldError, rowErr,
			"sheet", c.challengesSheet)
	}
	return challenges, nil
}

// logRow is the column layout of the log sheet: Date, User, Category,
// Item, Quantity (kg), Entry ID.
func logRow(e core.WasteLogEntry) []any {
	return []any{
		e.Date.String(),
		e.UserID,
		e.Category.String(),
		e.ItemName,
		e.Quantity,
		e.ID,
	}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
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

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func parseKilograms(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Normalize decimal comma
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
