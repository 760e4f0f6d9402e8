package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/serpcache/internal/capture"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements capture.Backend
var _ capture.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	id TEXT PRIMARY KEY,
	engine TEXT NOT NULL,
	url TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS captures_engine_created ON captures (engine, created_at);
`

// New creates a new Postgres-backed capture.Backend.
func New(ctx context.Context, dsn string) (capture.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, c *capture.Capture) error {
	query := `INSERT INTO captures (id, engine, url, body, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := b.pool.Exec(ctx, query, c.ID, c.Engine, c.URL, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter capture.Filter) ([]*capture.Capture, error) {
	query := `SELECT id, engine, url, body, created_at FROM captures WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Engine != "" {
		query += fmt.Sprintf(` AND engine = $%d`, paramCount)
		args = append(args, filter.Engine)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
		paramCount++
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer rows.Close()

	var captures []*capture.Capture
	for rows.Next() {
		var c capture.Capture
		if err := rows.Scan(&c.ID, &c.Engine, &c.URL, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		captures = append(captures, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return captures, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
