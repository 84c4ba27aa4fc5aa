//go:build integration

package reserved

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"meroku/pkg/platform/sentinel"
	"meroku/pkg/testutil/containers"
)

type PostgresReservedSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	rd    *containers.RedisContainer
	store *PostgresStore
}

func TestPostgresReservedSuite(t *testing.T) {
	suite.Run(t, new(PostgresReservedSuite))
}

func (s *PostgresReservedSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.rd = containers.NewRedisContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresReservedSuite) TearDownSuite() {
	s.pg.Terminate(context.Background())
	s.rd.Terminate(context.Background())
}

func (s *PostgresReservedSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.T().Context(), "reserved_names", "reserved_ingest_watermarks"))
	s.Require().NoError(s.rd.FlushAll(s.T().Context()))
}

func (s *PostgresReservedSuite) TestAddAndContains() {
	ctx := s.T().Context()

	s.Require().NoError(s.store.Add(ctx, "vault.dev"))
	s.Require().ErrorIs(s.store.Add(ctx, "vault.dev"), sentinel.ErrAlreadyUsed)

	ok, err := s.store.Contains(ctx, "vault.dev")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Contains(ctx, "free.dev")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresReservedSuite) TestListAndCount() {
	ctx := s.T().Context()

	s.Require().NoError(s.store.Add(ctx, "vault.dev"))
	s.Require().NoError(s.store.Add(ctx, "dappstore.appStore"))

	names, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(names, 2)

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *PostgresReservedSuite) TestWatermarkRoundTrip() {
	ctx := s.T().Context()

	idx, err := s.store.Watermark(ctx, "airtable")
	s.Require().NoError(err)
	s.Zero(idx)

	s.Require().NoError(s.store.SetWatermark(ctx, "airtable", 42))

	idx, err = s.store.Watermark(ctx, "airtable")
	s.Require().NoError(err)
	s.Equal(42, idx)
}

func (s *PostgresReservedSuite) TestCachedStoreServesFromRedis() {
	ctx := s.T().Context()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cached := NewCachedStore(s.store, s.rd.Client, time.Minute, logger)

	s.Require().NoError(s.store.Add(ctx, "vault.dev"))

	ok, err := cached.Contains(ctx, "vault.dev")
	s.Require().NoError(err)
	s.True(ok)

	val, err := s.rd.Client.Get(ctx, "reserved:vault.dev").Result()
	s.Require().NoError(err)
	s.Equal("1", val)
}

func (s *PostgresReservedSuite) TestCachedStoreInvalidatesOnAdd() {
	ctx := s.T().Context()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cached := NewCachedStore(s.store, s.rd.Client, time.Minute, logger)

	ok, err := cached.Contains(ctx, "vault.dev")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(cached.Add(ctx, "vault.dev"))

	ok, err = cached.Contains(ctx, "vault.dev")
	s.Require().NoError(err)
	s.True(ok)
}
