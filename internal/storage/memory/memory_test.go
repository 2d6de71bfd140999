package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
)

func strp(s string) *string { return &s }

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	amount := decimal.NewFromInt(5)
	typ := core.Expense
	a, err := s.Create(ctx, core.Draft{Description: strp("Coffee"), Amount: &amount, Type: &typ})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := s.Create(ctx, core.Draft{Description: strp("Lunch"), Amount: &amount, Type: &typ})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c, err := s.Create(ctx, core.Draft{Description: strp("Dinner"), Amount: &amount, Type: &typ})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != c.ID {
		t.Fatalf("unexpected list after delete: %+v", list)
	}

	// Index must follow the shifted slice.
	upd, err := s.Update(ctx, c.ID, core.Patch{Description: strp("Supper")})
	if err != nil || upd.Description != "Supper" {
		t.Fatalf("Update after delete: %+v %v", upd, err)
	}
	got, err := s.Get(ctx, c.ID)
	if err != nil || got.Description != "Supper" {
		t.Fatalf("Get: %+v %v", got, err)
	}

	if err := s.Delete(ctx, b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	amount := decimal.NewFromInt(1)
	typ := core.Income
	if _, err := s.Create(ctx, core.Draft{Description: strp("Gift"), Amount: &amount, Type: &typ}); err != nil {
		t.Fatal(err)
	}
	list, _ := s.List(ctx)
	list[0].Description = "mutated"
	again, _ := s.List(ctx)
	if again[0].Description != "Gift" {
		t.Fatal("List must not expose internal state")
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file should be empty store: %v", err)
	}
	if list, _ := s.List(context.Background()); len(list) != 0 {
		t.Fatalf("expected empty store, got %d", len(list))
	}

	mustWrite := func(name, content string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	seed := mustWrite("seed.json", `[
		{"description": "Salary", "amount": 3000, "type": "income", "date": "2024-01-01T00:00:00Z"},
		{"id": "6f1c2d3e-0000-4000-8000-000000000001", "description": "Rent", "amount": "1200.50", "type": "expense"}
	]`)
	s, err = NewFromFile(seed)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	list, _ := s.List(context.Background())
	if len(list) != 2 || list[0].Description != "Salary" || list[1].ID != "6f1c2d3e-0000-4000-8000-000000000001" {
		t.Fatalf("unexpected seed: %+v", list)
	}
	if list[0].ID == "" || list[1].Date.IsZero() {
		t.Fatalf("seed defaults not applied: %+v", list)
	}

	bad := mustWrite("bad.json", `[{"description": "x", "amount": 1, "type": "loan"}]`)
	if _, err := NewFromFile(bad); err == nil {
		t.Fatal("expected error for invalid type")
	}
	dup := mustWrite("dup.json", `[
		{"id": "6f1c2d3e-0000-4000-8000-00000000000a", "description": "x", "amount": 1, "type": "income"},
		{"id": "6F1C2D3E-0000-4000-8000-00000000000A", "description": "y", "amount": 1, "type": "income"}
	]`)
	if _, err := NewFromFile(dup); err == nil {
		t.Fatal("expected error for duplicate id")
	}
	badID := mustWrite("badid.json", `[{"id": "fixed", "description": "x", "amount": 1, "type": "income"}]`)
	if _, err := NewFromFile(badID); !errors.Is(err, core.ErrInvalidID) {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}
