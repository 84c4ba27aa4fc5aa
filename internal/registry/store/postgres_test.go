//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"meroku/internal/registry/models"
	"meroku/pkg/domain"
	"meroku/pkg/platform/sentinel"
	"meroku/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB, domain.NamespaceDev)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.pg.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.T().Context(), "identities", "token_counters"))
}

func (s *PostgresStoreSuite) identity(name string, holder domain.Address) *models.Identity {
	minted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Identity{
		Name:      name + ".dev",
		Label:     name,
		Holder:    holder,
		URI:       "ipfs://meta/" + name,
		MintedAt:  minted,
		ExpiresAt: minted.Add(365 * 24 * time.Hour),
	}
}

func (s *PostgresStoreSuite) TestCreateAssignsSequentialIDs() {
	ctx := s.T().Context()

	first, err := s.store.Create(ctx, s.identity("alpha", "0x1111111111111111111111111111111111111111"), true, nil)
	s.Require().NoError(err)
	s.Equal(domain.TokenID(1), first)

	second, err := s.store.Create(ctx, s.identity("beta", "0x2222222222222222222222222222222222222222"), true, nil)
	s.Require().NoError(err)
	s.Equal(domain.TokenID(2), second)
}

func (s *PostgresStoreSuite) TestCreateRejectsDuplicateNameCaseInsensitive() {
	ctx := s.T().Context()

	_, err := s.store.Create(ctx, s.identity("alpha", "0x1111111111111111111111111111111111111111"), true, nil)
	s.Require().NoError(err)

	dup := s.identity("alpha", "0x2222222222222222222222222222222222222222")
	dup.Name = "Alpha.dev"
	_, err = s.store.Create(ctx, dup, true, nil)
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestCreateEnforcesSingleHolder() {
	ctx := s.T().Context()
	holder := domain.Address("0x1111111111111111111111111111111111111111")

	_, err := s.store.Create(ctx, s.identity("alpha", holder), true, nil)
	s.Require().NoError(err)

	_, err = s.store.Create(ctx, s.identity("beta", holder), true, nil)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.Create(ctx, s.identity("beta", holder), false, nil)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestCreateCallbackFailureRollsBack() {
	ctx := s.T().Context()

	boom := errors.New("payment failed")
	_, err := s.store.Create(ctx, s.identity("alpha", "0x1111111111111111111111111111111111111111"), true, func() error {
		return boom
	})
	s.Require().ErrorIs(err, boom)

	_, err = s.store.FindByName(ctx, "alpha.dev")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// The rolled-back transaction releases its counter increment.
	id, err := s.store.Create(ctx, s.identity("alpha", "0x1111111111111111111111111111111111111111"), true, nil)
	s.Require().NoError(err)
	s.Equal(domain.TokenID(1), id)
}

func (s *PostgresStoreSuite) TestFindByNameFoldsCase() {
	ctx := s.T().Context()

	id, err := s.store.Create(ctx, s.identity("alpha", "0x1111111111111111111111111111111111111111"), true, nil)
	s.Require().NoError(err)

	found, err := s.store.FindByName(ctx, "ALPHA.DEV")
	s.Require().NoError(err)
	s.Equal(id, found.TokenID)
	s.Equal("alpha.dev", found.Name)
	s.Equal("alpha", found.Label)

	_, err = s.store.FindByName(ctx, "missing.dev")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecuteCommitsOnlyOnSuccess() {
	ctx := s.T().Context()

	id, err := s.store.Create(ctx, s.identity("alpha", "0x1111111111111111111111111111111111111111"), true, nil)
	s.Require().NoError(err)

	updated, err := s.store.Execute(ctx, id, func(i *models.Identity) error {
		i.URI = "ipfs://meta/v2"
		return nil
	})
	s.Require().NoError(err)
	s.Equal("ipfs://meta/v2", updated.URI)

	boom := sentinel.ErrConflict
	_, err = s.store.Execute(ctx, id, func(i *models.Identity) error {
		i.URI = "ipfs://meta/v3"
		return boom
	})
	s.Require().ErrorIs(err, boom)

	found, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal("ipfs://meta/v2", found.URI)
}

func (s *PostgresStoreSuite) TestExecuteHolderChange() {
	ctx := s.T().Context()
	from := domain.Address("0x1111111111111111111111111111111111111111")
	to := domain.Address("0x2222222222222222222222222222222222222222")

	id, err := s.store.Create(ctx, s.identity("alpha", from), true, nil)
	s.Require().NoError(err)

	moved, err := s.store.ExecuteHolderChange(ctx, id, to, true, func(i *models.Identity) error {
		s.Equal(from, i.Holder)
		return nil
	})
	s.Require().NoError(err)
	s.Equal(to, moved.Holder)

	count, err := s.store.CountByHolder(ctx, from)
	s.Require().NoError(err)
	s.Zero(count)

	count, err = s.store.CountByHolder(ctx, to)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestExecuteHolderChangeRejectsBusyRecipient() {
	ctx := s.T().Context()
	from := domain.Address("0x1111111111111111111111111111111111111111")
	to := domain.Address("0x2222222222222222222222222222222222222222")

	id, err := s.store.Create(ctx, s.identity("alpha", from), true, nil)
	s.Require().NoError(err)
	_, err = s.store.Create(ctx, s.identity("beta", to), true, nil)
	s.Require().NoError(err)

	_, err = s.store.ExecuteHolderChange(ctx, id, to, true, func(i *models.Identity) error {
		return nil
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	found, err := s.store.FindByID(ctx, id)
	s.Require().NoError(err)
	s.Equal(from, found.Holder)
}

func (s *PostgresStoreSuite) TestNamespacesCountIndependently() {
	ctx := s.T().Context()
	appStore := NewPostgres(s.pg.DB, domain.NamespaceApp)

	devID, err := s.store.Create(ctx, s.identity("alpha", "0x1111111111111111111111111111111111111111"), true, nil)
	s.Require().NoError(err)

	app := s.identity("alpha", "0x1111111111111111111111111111111111111111")
	app.Name = "alpha.app"
	appID, err := appStore.Create(ctx, app, true, nil)
	s.Require().NoError(err)

	s.Equal(domain.TokenID(1), devID)
	s.Equal(domain.TokenID(1), appID)
}
