package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"meroku/internal/market/models"
	"meroku/pkg/domain"
	"meroku/pkg/platform/sentinel"
)

// Postgres stores listings in the sale_listings table, shared by all
// namespaces.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Put(ctx context.Context, l models.Listing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_listings (namespace, token_id, price, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, token_id)
		DO UPDATE SET price = EXCLUDED.price, created_at = EXCLUDED.created_at`,
		string(l.Namespace), int64(l.TokenID), int64(l.Price), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, ns domain.Namespace, id domain.TokenID) (*models.Listing, error) {
	var (
		l     models.Listing
		price int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT price, created_at FROM sale_listings
		WHERE namespace = $1 AND token_id = $2`,
		string(ns), int64(id),
	).Scan(&price, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select listing: %w", err)
	}
	l.Namespace = ns
	l.TokenID = id
	l.Price = domain.Amount(price)
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func (s *Postgres) Delete(ctx context.Context, ns domain.Namespace, id domain.TokenID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sale_listings WHERE namespace = $1 AND token_id = $2`,
		string(ns), int64(id),
	)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

// Clear implements the registry's listing invalidation hook.
func (s *Postgres) Clear(ctx context.Context, ns domain.Namespace, id domain.TokenID) error {
	return s.Delete(ctx, ns, id)
}

func (s *Postgres) ListByNamespace(ctx context.Context, ns domain.Namespace) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token_id, price, created_at FROM sale_listings
		WHERE namespace = $1 ORDER BY token_id`,
		string(ns),
	)
	if err != nil {
		return nil, fmt.Errorf("select listings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Listing, 0)
	for rows.Next() {
		var (
			l     models.Listing
			id    int64
			price int64
		)
		if err := rows.Scan(&id, &price, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.Namespace = ns
		l.TokenID = domain.TokenID(id)
		l.Price = domain.Amount(price)
		l.CreatedAt = l.CreatedAt.UTC()
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}
