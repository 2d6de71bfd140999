package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/ports"
)

func strp(s string) *string { return &s }

func typep(t core.Type) *core.Type { return &t }

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	exerciseStore(t, newSQLite(t))
}

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresRepository: %v", err)
	}
	defer repo.Close()
	if _, err := repo.pool.Exec(ctx, `TRUNCATE transactions`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseStore(t, repo)
}

func TestSQLiteRepositoryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	created, err := repo.Create(context.Background(), core.Draft{
		Description: strp("Salary"), Amount: decp("3000"), Type: typep(core.Income),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	got, err := repo.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !got.Date.Equal(created.Date) || !got.Amount.Equal(created.Amount) {
		t.Fatalf("record changed across reopen: %+v vs %+v", got, created)
	}
}

func TestSQLiteRepositoryPingAfterClose(t *testing.T) {
	repo := newSQLite(t)
	repo.Close()
	if err := repo.Ping(context.Background()); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

// exerciseStore runs the behaviour every TransactionStore must share.
func exerciseStore(t *testing.T, s ports.TransactionStore) {
	ctx := context.Background()

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List empty: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}

	date := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	salary, err := s.Create(ctx, core.Draft{
		Description: strp("Salary"), Amount: decp("3000.50"), Type: typep(core.Income), Date: &date,
	})
	if err != nil {
		t.Fatalf("Create salary: %v", err)
	}
	rent, err := s.Create(ctx, core.Draft{
		Description: strp("Rent"), Amount: decp("1200"), Type: typep(core.Expense),
	})
	if err != nil {
		t.Fatalf("Create rent: %v", err)
	}
	if salary.ID == "" || salary.ID == rent.ID {
		t.Fatalf("ids must be unique and non-empty: %q %q", salary.ID, rent.ID)
	}
	if !salary.Date.Equal(date) {
		t.Fatalf("supplied date not kept: %v", salary.Date)
	}
	if rent.Date.IsZero() {
		t.Fatal("date should default to creation time")
	}

	if _, err := s.Create(ctx, core.Draft{Amount: decp("1"), Type: typep(core.Expense)}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	list, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != salary.ID || list[1].ID != rent.ID {
		t.Fatalf("expected insertion order, got %+v", list)
	}
	if !list[0].Amount.Equal(decimal.RequireFromString("3000.5")) {
		t.Fatalf("amount changed: %s", list[0].Amount)
	}

	updated, err := s.Update(ctx, rent.ID, core.Patch{Amount: decp("1250")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != rent.ID || updated.Description != "Rent" || updated.Type != core.Expense || !updated.Date.Equal(rent.Date) {
		t.Fatalf("unpatched fields changed: %+v", updated)
	}
	if !updated.Amount.Equal(decimal.NewFromInt(1250)) {
		t.Fatalf("amount not patched: %s", updated.Amount)
	}

	same, err := s.Update(ctx, rent.ID, core.Patch{})
	if err != nil || !same.Amount.Equal(updated.Amount) {
		t.Fatalf("empty patch: %+v %v", same, err)
	}
	if _, err := s.Update(ctx, rent.ID, core.Patch{Type: typep("transfer")}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.Update(ctx, core.NewID(), core.Patch{Description: strp("x")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	got, err := s.Get(ctx, rent.ID)
	if err != nil || !got.Amount.Equal(decimal.NewFromInt(1250)) {
		t.Fatalf("Get after update: %+v %v", got, err)
	}

	if err := s.Delete(ctx, salary.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, salary.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
	if _, err := s.Get(ctx, salary.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Get deleted: expected not found, got %v", err)
	}
	list, err = s.List(ctx)
	if err != nil || len(list) != 1 || list[0].ID != rent.ID {
		t.Fatalf("after delete: %+v %v", list, err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
