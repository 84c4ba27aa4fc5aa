package reserved

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"meroku/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) TestAddAndContains() {
	s.Run("adds and finds a name", func() {
		s.Require().NoError(s.store.Add(s.ctx, "uniswap.app"))

		ok, err := s.store.Contains(s.ctx, "uniswap.app")
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("misses an absent name", func() {
		ok, err := s.store.Contains(s.ctx, "unknown.app")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("rejects duplicates with ErrAlreadyUsed", func() {
		s.Require().NoError(s.store.Add(s.ctx, "curve.app"))
		s.Require().ErrorIs(s.store.Add(s.ctx, "curve.app"), sentinel.ErrAlreadyUsed)
	})
}

func (s *MemoryStoreSuite) TestListAndCount() {
	s.Require().NoError(s.store.Add(s.ctx, "b.app"))
	s.Require().NoError(s.store.Add(s.ctx, "a.app"))

	list, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"a.app", "b.app"}, list)

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *MemoryStoreSuite) TestWatermarks() {
	n, err := s.store.Watermark(s.ctx, "dapp-names")
	s.Require().NoError(err)
	s.Equal(0, n)

	s.Require().NoError(s.store.SetWatermark(s.ctx, "dapp-names", 200))

	n, err = s.store.Watermark(s.ctx, "dapp-names")
	s.Require().NoError(err)
	s.Equal(200, n)
}
