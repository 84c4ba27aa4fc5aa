//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Schema is the registry schema applied to fresh test databases. Kept here so
// integration suites and local tooling create identical tables.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	namespace   text        NOT NULL,
	token_id    bigint      NOT NULL,
	name        text        NOT NULL,
	holder      text        NOT NULL,
	uri         text        NOT NULL DEFAULT '',
	minted_at   timestamptz NOT NULL,
	expires_at  timestamptz NOT NULL,
	PRIMARY KEY (namespace, token_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS identities_name_unique
	ON identities (namespace, lower(name));
CREATE INDEX IF NOT EXISTS identities_holder_idx
	ON identities (namespace, holder);

CREATE TABLE IF NOT EXISTS token_counters (
	namespace text PRIMARY KEY,
	next_id   bigint NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS reserved_names (
	name     text PRIMARY KEY,
	added_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reserved_ingest_watermarks (
	source      text PRIMARY KEY,
	whitelisted int  NOT NULL DEFAULT 0,
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sale_listings (
	namespace  text   NOT NULL,
	token_id   bigint NOT NULL,
	price      bigint NOT NULL CHECK (price > 0),
	created_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, token_id)
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// registry schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	DSN       string
}

// NewPostgresContainer starts a new PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("meroku"),
		tcpostgres.WithUsername("meroku"),
		tcpostgres.WithPassword("meroku"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db, DSN: dsn}
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

// Terminate stops the container and closes the connection.
func (p *PostgresContainer) Terminate(ctx context.Context) {
	if p.DB != nil {
		_ = p.DB.Close()
	}
	if p.Container != nil {
		_ = p.Container.Terminate(ctx)
	}
}
