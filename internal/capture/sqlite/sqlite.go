package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/serpcache/internal/capture"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements capture.Backend
var _ capture.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	id TEXT PRIMARY KEY,
	engine TEXT NOT NULL,
	url TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS captures_engine_created ON captures (engine, created_at);
`

// New creates a new SQLite-backed capture.Backend.
func New(dsn string) (capture.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, c *capture.Capture) error {
	query := `INSERT INTO captures (id, engine, url, body, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := b.db.ExecContext(ctx, query, c.ID, c.Engine, c.URL, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter capture.Filter) ([]*capture.Capture, error) {
	query := `SELECT id, engine, url, body, created_at FROM captures WHERE 1=1`
	args := []any{}

	if filter.Engine != "" {
		query += ` AND engine = ?`
		args = append(args, filter.Engine)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	var captures []*capture.Capture
	for rows.Next() {
		var c capture.Capture
		if err := rows.Scan(&c.ID, &c.Engine, &c.URL, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		captures = append(captures, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return captures, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
