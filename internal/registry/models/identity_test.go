package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meroku/pkg/domain"
)

const (
	holder   = domain.Address("0xaaaa000000000000000000000000000000000001")
	stranger = domain.Address("0xbbbb000000000000000000000000000000000002")
)

func newIdentity(mintedAt time.Time, life time.Duration) *Identity {
	return &Identity{
		TokenID:   1,
		Name:      "myname.app",
		Label:     "myname",
		Holder:    holder,
		MintedAt:  mintedAt,
		ExpiresAt: mintedAt.Add(life),
	}
}

func TestExpiryBoundaries(t *testing.T) {
	mintedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	life := 365 * 24 * time.Hour
	renewLife := 30 * 24 * time.Hour
	ident := newIdentity(mintedAt, life)

	t.Run("one tick before expiry is not expired", func(t *testing.T) {
		assert.False(t, ident.IsExpired(ident.ExpiresAt.Add(-time.Second)))
	})

	t.Run("exactly at expiry is already expired", func(t *testing.T) {
		assert.True(t, ident.IsExpired(ident.ExpiresAt))
	})

	t.Run("exactly at grace end is already claimable", func(t *testing.T) {
		graceEnd := ident.GraceEndsAt(renewLife)
		assert.False(t, ident.IsClaimable(graceEnd.Add(-time.Second), renewLife))
		assert.True(t, ident.IsClaimable(graceEnd, renewLife))
	})
}

func TestCanRenew(t *testing.T) {
	mintedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	life := 100 * time.Hour
	fee := domain.Amount(1000)
	ident := newIdentity(mintedAt, life)

	t.Run("rejects non-holder", func(t *testing.T) {
		err := ident.CanRenew(stranger, ident.ExpiresAt, fee, fee)
		assert.ErrorIs(t, err, ErrNotHolder)
	})

	t.Run("rejects before expiry", func(t *testing.T) {
		err := ident.CanRenew(holder, ident.ExpiresAt.Add(-time.Second), fee, fee)
		assert.ErrorIs(t, err, ErrNotExpired)
	})

	t.Run("rejects underpayment", func(t *testing.T) {
		err := ident.CanRenew(holder, ident.ExpiresAt, fee/2, fee)
		assert.ErrorIs(t, err, ErrInsufficientFee)
	})

	t.Run("renewal strictly extends expiry", func(t *testing.T) {
		now := ident.ExpiresAt
		assert.NoError(t, ident.CanRenew(holder, now, fee, fee))

		before := ident.ExpiresAt
		ident.ApplyRenewal(now, life)
		assert.True(t, ident.ExpiresAt.After(before))
		assert.Equal(t, now.Add(life), ident.ExpiresAt)
	})
}

func TestCanClaim(t *testing.T) {
	mintedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	life := 100 * time.Hour
	renewLife := 10 * time.Hour
	fee := domain.Amount(1000)

	t.Run("rejects during the grace period", func(t *testing.T) {
		ident := newIdentity(mintedAt, life)
		now := ident.ExpiresAt.Add(renewLife - time.Second)
		assert.ErrorIs(t, ident.CanClaim(now, renewLife, fee, fee), ErrNotClaimable)
	})

	t.Run("rejects underpayment after the grace period", func(t *testing.T) {
		ident := newIdentity(mintedAt, life)
		now := ident.GraceEndsAt(renewLife)
		assert.ErrorIs(t, ident.CanClaim(now, renewLife, fee/2, fee), ErrInsufficientFee)
	})

	t.Run("claim reassigns the holder and resets the window", func(t *testing.T) {
		ident := newIdentity(mintedAt, life)
		now := ident.GraceEndsAt(renewLife)
		assert.NoError(t, ident.CanClaim(now, renewLife, fee, fee))

		ident.ApplyClaim(stranger, now, life)
		assert.Equal(t, stranger, ident.Holder)
		assert.Equal(t, now.Add(life), ident.ExpiresAt)
		assert.Equal(t, domain.TokenID(1), ident.TokenID)
	})
}

func TestCanUpdateURI(t *testing.T) {
	mintedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	life := 100 * time.Hour
	ident := newIdentity(mintedAt, life)

	t.Run("holder may update while live", func(t *testing.T) {
		assert.NoError(t, ident.CanUpdateURI(holder, ident.ExpiresAt.Add(-time.Second)))
	})

	t.Run("frozen once expired", func(t *testing.T) {
		assert.ErrorIs(t, ident.CanUpdateURI(holder, ident.ExpiresAt), ErrTokenExpired)
	})

	t.Run("non-holder rejected", func(t *testing.T) {
		assert.ErrorIs(t, ident.CanUpdateURI(stranger, mintedAt), ErrNotHolder)
	})
}
