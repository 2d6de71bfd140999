package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"moneytrack/internal/core"
	"moneytrack/internal/ports"
)

var _ ports.TransactionStore = (*PostgresRepository)(nil)

// Amounts travel as text so NUMERIC precision survives without a pgx decimal plugin.
const (
	pgSelect = `SELECT id, description, amount::text, type, date FROM transactions`

	pgList   = pgSelect + ` ORDER BY seq`
	pgGet    = pgSelect + ` WHERE id = $1`
	pgInsert = `INSERT INTO transactions (id, description, amount, type, date) VALUES ($1, $2, $3::numeric, $4, $5)`
	pgUpdate = `UPDATE transactions SET
    description = COALESCE($2::text, description),
    amount      = COALESCE($3::numeric, amount),
    type        = COALESCE($4::text, type),
    date        = COALESCE($5::timestamptz, date)
WHERE id = $1
RETURNING id, description, amount::text, type, date`
	pgDelete = `DELETE FROM transactions WHERE id = $1`
)

// PostgresRepository stores transactions in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, url string) (*PostgresRepository, error) {
	if err := RunPostgresMigrations(url); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, pgList)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanPostgres(rows)
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

func (r *PostgresRepository) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	t, err := d.Build(core.NewID(), core.Now())
	if err != nil {
		return core.Transaction{}, err
	}
	_, err = r.pool.Exec(ctx, pgInsert, t.ID, t.Description, t.Amount.String(), string(t.Type), t.Date)
	if err != nil {
		return core.Transaction{}, wrap("create transaction", err)
	}
	return t, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanPostgres(r.pool.QueryRow(ctx, pgGet, id))
	if err != nil {
		return core.Transaction{}, wrap("get transaction", err)
	}
	return t, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, p core.Patch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var amount, typ *string
	if p.Amount != nil {
		s := p.Amount.String()
		amount = &s
	}
	if p.Type != nil {
		s := string(*p.Type)
		typ = &s
	}

	t, err := scanPostgres(r.pool.QueryRow(ctx, pgUpdate, id, p.Description, amount, typ, p.Date))
	if err != nil {
		return core.Transaction{}, wrap("update transaction", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, pgDelete, id)
	if err != nil {
		return wrap("delete transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanPostgres(row pgx.Row) (core.Transaction, error) {
	var (
		t           core.Transaction
		amount, typ string
	)
	if err := row.Scan(&t.ID, &t.Description, &amount, &typ, &t.Date); err != nil {
		return core.Transaction{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	t.Amount = d
	t.Type = core.Type(typ)
	t.Date = t.Date.UTC()
	return t, nil
}
