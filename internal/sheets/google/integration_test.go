//go:build integration

package google

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"giftregistry/internal/core"
)

// Integration tests require a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ExportRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	cfg := ConfigFromEnv(spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"))
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	price := 12.34
	records := []core.GiftRecord{{
		ID: "it-1", Name: "Integration Test Gift", Recipient: "Tester",
		Priority: core.PriorityHigh, Type: core.TypeIndividual, Price: &price,
		Added: core.FormatTimestamp(time.Now()), AddedBy: "integration",
	}}
	groups := core.ProjectGroupedView(records, core.GroupByRecipient)

	ref, err := client.Export(ctx, groups, core.ProjectStats(records))
	if err != nil {
		t.Fatalf("Failed to export registry: %v", err)
	}
	if !strings.HasPrefix(ref, client.sheetName+"!A1:") {
		t.Errorf("unexpected range reference: %s", ref)
	}
}
