package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"meroku/internal/registry/models"
	"meroku/pkg/domain"
	"meroku/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres stores identities for one namespace. Every create locks the
// namespace row in token_counters, which both allocates sequential token ids
// and serializes concurrent mints so the holder cardinality check cannot race.
type Postgres struct {
	db *sql.DB
	ns domain.Namespace
}

func NewPostgres(db *sql.DB, ns domain.Namespace) *Postgres {
	return &Postgres{db: db, ns: ns}
}

// Create inserts a new identity inside one transaction. fn, when non-nil,
// runs after the uniqueness checks pass and before the transaction commits;
// its error rolls the insert back. Payment collection goes there.
func (s *Postgres) Create(ctx context.Context, ident *models.Identity, singleHolder bool, fn func() error) (domain.TokenID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO token_counters (namespace, next_id) VALUES ($1, 2)
		ON CONFLICT (namespace) DO UPDATE SET next_id = token_counters.next_id + 1
		RETURNING next_id`,
		string(s.ns),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate token id: %w", err)
	}
	id := domain.TokenID(next - 1)

	if singleHolder {
		var held int
		err = tx.QueryRowContext(ctx,
			`SELECT count(*) FROM identities WHERE namespace = $1 AND holder = $2`,
			string(s.ns), string(ident.Holder),
		).Scan(&held)
		if err != nil {
			return 0, fmt.Errorf("count holder identities: %w", err)
		}
		if held > 0 {
			return 0, sentinel.ErrConflict
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (namespace, token_id, name, holder, uri, minted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(s.ns), int64(id), ident.Name, string(ident.Holder), ident.URI, ident.MintedAt, ident.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, sentinel.ErrAlreadyUsed
		}
		return 0, fmt.Errorf("insert identity: %w", err)
	}

	if fn != nil {
		if err := fn(); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	ident.TokenID = id
	return id, nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.TokenID) (*models.Identity, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT token_id, name, holder, uri, minted_at, expires_at
		FROM identities WHERE namespace = $1 AND token_id = $2`,
		string(s.ns), int64(id),
	))
}

func (s *Postgres) FindByName(ctx context.Context, name string) (*models.Identity, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT token_id, name, holder, uri, minted_at, expires_at
		FROM identities WHERE namespace = $1 AND lower(name) = lower($2)`,
		string(s.ns), name,
	))
}

func (s *Postgres) CountByHolder(ctx context.Context, holder domain.Address) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM identities WHERE namespace = $1 AND holder = $2`,
		string(s.ns), string(holder),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count holder identities: %w", err)
	}
	return n, nil
}

func (s *Postgres) Execute(ctx context.Context, id domain.TokenID, fn func(*models.Identity) error) (*models.Identity, error) {
	var result *models.Identity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ident, err := s.lockRow(ctx, tx, id)
		if err != nil {
			return err
		}
		holder := ident.Holder
		if err := fn(ident); err != nil {
			return err
		}
		ident.Holder = holder
		if err := s.updateRow(ctx, tx, ident); err != nil {
			return err
		}
		result = ident
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Postgres) ExecuteHolderChange(ctx context.Context, id domain.TokenID, to domain.Address, singleHolder bool, fn func(*models.Identity) error) (*models.Identity, error) {
	var result *models.Identity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// Serialize with Create via the counter row so recipient counting
		// cannot race a concurrent mint to the same address.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO token_counters (namespace, next_id) VALUES ($1, 1)
			ON CONFLICT (namespace) DO UPDATE SET next_id = token_counters.next_id`,
			string(s.ns),
		); err != nil {
			return fmt.Errorf("lock namespace counter: %w", err)
		}

		ident, err := s.lockRow(ctx, tx, id)
		if err != nil {
			return err
		}
		if singleHolder && to != ident.Holder {
			var held int
			err := tx.QueryRowContext(ctx,
				`SELECT count(*) FROM identities WHERE namespace = $1 AND holder = $2`,
				string(s.ns), string(to),
			).Scan(&held)
			if err != nil {
				return fmt.Errorf("count recipient identities: %w", err)
			}
			if held > 0 {
				return sentinel.ErrConflict
			}
		}
		if err := fn(ident); err != nil {
			return err
		}
		ident.Holder = to
		if err := s.updateRow(ctx, tx, ident); err != nil {
			return err
		}
		result = ident
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Postgres) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Postgres) lockRow(ctx context.Context, tx *sql.Tx, id domain.TokenID) (*models.Identity, error) {
	return s.scanOne(tx.QueryRowContext(ctx, `
		SELECT token_id, name, holder, uri, minted_at, expires_at
		FROM identities WHERE namespace = $1 AND token_id = $2
		FOR UPDATE`,
		string(s.ns), int64(id),
	))
}

func (s *Postgres) updateRow(ctx context.Context, tx *sql.Tx, ident *models.Identity) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE identities SET holder = $3, uri = $4, expires_at = $5
		WHERE namespace = $1 AND token_id = $2`,
		string(s.ns), int64(ident.TokenID), string(ident.Holder), ident.URI, ident.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row rowScanner) (*models.Identity, error) {
	var (
		ident  models.Identity
		id     int64
		holder string
	)
	err := row.Scan(&id, &ident.Name, &holder, &ident.URI, &ident.MintedAt, &ident.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	ident.TokenID = domain.TokenID(id)
	ident.Holder = domain.Address(holder)
	ident.Label = strings.TrimSuffix(ident.Name, s.ns.Suffix())
	ident.MintedAt = ident.MintedAt.UTC()
	ident.ExpiresAt = ident.ExpiresAt.UTC()
	return &ident, nil
}
