package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
)

func TestEncodeRow(t *testing.T) {
	tx := core.Transaction{
		ID:          "abc",
		Description: "Rent",
		Amount:      decimal.RequireFromString("1200.50"),
		Type:        core.Expense,
		Date:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600)),
	}
	row := encodeRow(tx)
	want := []any{"abc", "2024-03-01T08:00:00Z", "Rent", "expense", "1200.5"}
	if len(row) != len(want) || len(row) != len(header) {
		t.Fatalf("row has %d cells, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestEncodeSheet(t *testing.T) {
	rows := encodeSheet([]core.Transaction{{ID: "a"}, {ID: "b"}})
	if len(rows) != 3 || rows[0][0] != "ID" || rows[2][0] != "b" {
		t.Fatalf("unexpected sheet %v", rows)
	}
	if empty := encodeSheet(nil); len(empty) != 1 {
		t.Fatalf("empty set should still write the header, got %v", empty)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"ID"}, {"a"}, {}, {" b "}, {"c"}}
	tests := []struct {
		id   string
		want int
	}{
		{"a", 2},
		{"b", 4},
		{"c", 5},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
	if got := findRow(nil, "a"); got != 0 {
		t.Errorf("findRow on empty sheet = %d", got)
	}
}

func TestA1Quoting(t *testing.T) {
	if got := a1("My Sheet", "A:A"); got != "'My Sheet'!A:A" {
		t.Errorf("a1 = %s", got)
	}
	if got := a1("Bob's", "A1"); got != "'Bob''s'!A1" {
		t.Errorf("a1 = %s", got)
	}
	if got := rowRange("Transactions", 7); got != "'Transactions'!A7:E7" {
		t.Errorf("rowRange = %s", got)
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Options{}, nil); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("expected spreadsheet error, got %v", err)
	}
	if _, err := New(ctx, Options{SpreadsheetID: "x"}, nil); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "nope.json")
	if _, err := New(ctx, Options{SpreadsheetID: "x", CredentialsFile: missing}, nil); err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestCredentials(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(file, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := credentials(Options{CredentialsJSON: `{"from":"env"}`, CredentialsFile: file})
	if err != nil || string(got) != `{"from":"env"}` {
		t.Fatalf("inline JSON should win: %s %v", got, err)
	}
	got, err = credentials(Options{CredentialsFile: file})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Fatalf("file credentials: %s %v", got, err)
	}
}

func TestMethodsRequireService(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetName: "Transactions"}
	ctx := context.Background()
	if err := c.Upsert(ctx, core.Transaction{ID: "a"}); err == nil {
		t.Error("Upsert without service should fail")
	}
	if err := c.Remove(ctx, "a"); err == nil {
		t.Error("Remove without service should fail")
	}
	if err := c.Replace(ctx, nil); err == nil {
		t.Error("Replace without service should fail")
	}
}
