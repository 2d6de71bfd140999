package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/ports"

	_ "modernc.org/sqlite"
)

var _ ports.TransactionStore = (*SQLiteRepository)(nil)

const (
	sqliteSelect = `SELECT id, description, amount, type, date FROM transactions`

	sqliteList   = sqliteSelect + ` ORDER BY seq`
	sqliteGet    = sqliteSelect + ` WHERE id = ?`
	sqliteInsert = `INSERT INTO transactions (id, description, amount, type, date) VALUES (?, ?, ?, ?, ?)`
	sqliteUpdate = `UPDATE transactions SET
    description = COALESCE(?, description),
    amount      = COALESCE(?, amount),
    type        = COALESCE(?, type),
    date        = COALESCE(?, date)
WHERE id = ?
RETURNING id, description, amount, type, date`
	sqliteDelete = `DELETE FROM transactions WHERE id = ?`
)

// SQLiteRepository stores transactions in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, sqliteList)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanSQLite(rows)
		if err != nil {
			return nil, wrap("scan transaction", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list transactions", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	t, err := d.Build(core.NewID(), core.Now())
	if err != nil {
		return core.Transaction{}, err
	}
	_, err = r.db.ExecContext(ctx, sqliteInsert,
		t.ID, t.Description, t.Amount.String(), string(t.Type), formatTime(t.Date))
	if err != nil {
		return core.Transaction{}, wrap("create transaction", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanSQLite(r.db.QueryRowContext(ctx, sqliteGet, id))
	if err != nil {
		return core.Transaction{}, wrap("get transaction", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var description, amount, typ, date sql.NullString
	if p.Description != nil {
		description = sql.NullString{String: *p.Description, Valid: true}
	}
	if p.Amount != nil {
		amount = sql.NullString{String: p.Amount.String(), Valid: true}
	}
	if p.Type != nil {
		typ = sql.NullString{String: string(*p.Type), Valid: true}
	}
	if p.Date != nil {
		date = sql.NullString{String: formatTime(*p.Date), Valid: true}
	}

	t, err := scanSQLite(r.db.QueryRowContext(ctx, sqliteUpdate, description, amount, typ, date, id))
	if err != nil {
		return core.Transaction{}, wrap("update transaction", err)
	}
	return t, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, sqliteDelete, id)
	if err != nil {
		return wrap("delete transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("delete transaction", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(s scanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		amount, date string
		typ          string
	)
	if err := s.Scan(&t.ID, &t.Description, &amount, &typ, &date); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	if t.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
		return core.Transaction{}, fmt.Errorf("decode date %q: %w", date, err)
	}
	t.Type = core.Type(typ)
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
