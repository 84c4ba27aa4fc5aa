package reserved

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"meroku/pkg/platform/sentinel"
)

// PostgresStore persists the reserved set in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed reserved-name store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reserved_names (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		name,
	)
	if err != nil {
		return fmt.Errorf("add reserved name: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add reserved name: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) Contains(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM reserved_names WHERE name = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reserved name: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM reserved_names ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list reserved names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan reserved name: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reserved names: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM reserved_names`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reserved names: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Watermark(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT whitelisted FROM reserved_ingest_watermarks WHERE source = $1`,
		source,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ingest watermark: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SetWatermark(ctx context.Context, source string, index int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reserved_ingest_watermarks (source, whitelisted, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source) DO UPDATE SET whitelisted = $2, updated_at = now()`,
		source, index,
	)
	if err != nil {
		return fmt.Errorf("set ingest watermark: %w", err)
	}
	return nil
}
