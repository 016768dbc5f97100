//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"wastewise/internal/core"
)

// Integration tests require a real spreadsheet and service account.
// Run with: go test -tags=integration ./internal/sheets/google

func integrationClient(t *testing.T) *Client {
	t.Helper()
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := Config{
		SpreadsheetID:       spreadsheetID,
		LogSheetName:        os.Getenv("GOOGLE_LOG_SHEET_NAME"),
		ChallengesSheetName: os.Getenv("GOOGLE_CHALLENGES_SHEET_NAME"),
		CredentialsJSON:     os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile:     os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}
	c, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestIntegration_FetchChallenges(t *testing.T) {
	c := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	challenges, err := c.FetchChallenges(ctx)
	if err != nil {
		t.Fatalf("FetchChallenges: %v", err)
	}
	t.Logf("Found %d challenges", len(challenges))
	for _, ch := range challenges {
		if ch.ID == "" || !ch.Category.Valid() {
			t.Errorf("malformed challenge: %+v", ch)
		}
	}
}

func TestIntegration_ExportEntry(t *testing.T) {
	c := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ref, err := c.ExportEntry(ctx, core.WasteLogEntry{
		ID:       "integration-" + time.Now().Format("20060102150405"),
		UserID:   "integration-test",
		Date:     core.DateOf(time.Now()),
		Category: core.Recyclable,
		ItemName: "integration test bottle",
		Quantity: 0.1,
	})
	if err != nil {
		t.Fatalf("ExportEntry: %v", err)
	}
	t.Logf("Appended at %s", ref)
}
