package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"giftregistry/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"inline json wins", Config{CredentialsJSON: `{"inline":true}`, CredentialsFile: file}, `{"inline":true}`, false},
		{"file", Config{CredentialsFile: file}, `{"type":"service_account"}`, false},
		{"unreadable file", Config{CredentialsFile: filepath.Join(dir, "nope.json")}, "", true},
		{"nothing configured", Config{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadCredentials(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("loadCredentials() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadCredentials_ApplicationDefault(t *testing.T) {
	file := filepath.Join(t.TempDir(), "adc.json")
	if err := os.WriteFile(file, []byte(`{"adc":true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)

	got, err := loadCredentials(Config{})
	if err != nil || string(got) != `{"adc":true}` {
		t.Fatalf("loadCredentials() = %s, %v", got, err)
	}
}

func TestClient_ExportWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Registry"}
	_, err := c.Export(context.Background(), nil, core.StatsView{})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got: %v", err)
	}
}

func TestColumnName(t *testing.T) {
	tests := map[int]string{0: "A", 1: "A", 12: "L", 26: "Z", 27: "AA", 52: "AZ", 53: "BA"}
	for n, want := range tests {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestDataRange(t *testing.T) {
	if got := dataRange("Registry", 7, 12); got != "Registry!A1:L7" {
		t.Errorf("dataRange = %s", got)
	}
	if got := dataRange("Registry", 0, 12); got != "Registry!A1:L1" {
		t.Errorf("dataRange for empty rows = %s", got)
	}
}
