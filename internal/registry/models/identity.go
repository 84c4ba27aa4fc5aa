// Package models holds the identity aggregate and the per-namespace
// configuration read by ledger preconditions.
package models

import (
	"time"

	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
)

// Named failure conditions for ledger operations. Services return these
// directly (optionally wrapped) so callers can branch with errors.Is while
// handlers map the embedded code to an HTTP status.
var (
	ErrNameTaken              = dErrors.New(dErrors.CodeConflict, "this name already in use")
	ErrAlreadyHolder          = dErrors.New(dErrors.CodeConflict, "wallet already holds an identity in this namespace")
	ErrRecipientAlreadyHolder = dErrors.New(dErrors.CodeConflict, "recipient already holds an identity in this namespace")
	ErrNameReserved           = dErrors.New(dErrors.CodeForbidden, "name reserved")
	ErrNotExpired             = dErrors.New(dErrors.CodeConflict, "token is not expired yet")
	ErrNotClaimable           = dErrors.New(dErrors.CodeConflict, "token not available for claiming yet")
	ErrTokenExpired           = dErrors.New(dErrors.CodeConflict, "name token expired")
	ErrInsufficientFee        = dErrors.New(dErrors.CodePaymentRequired, "insufficient renew fees")
	ErrInsufficientMintFee    = dErrors.New(dErrors.CodePaymentRequired, "insufficient mint fees")
	ErrNotHolder              = dErrors.New(dErrors.CodeUnauthorized, "caller is not the token holder")
	ErrNotOwner               = dErrors.New(dErrors.CodeUnauthorized, "caller is not the namespace owner")
)

// Identity is one minted name record.
//
// Invariants:
//   - TokenID is sequential per namespace and never reused
//   - Name is normalized (lower label + canonical suffix) and unique within
//     its namespace for the lifetime of the record
//   - Holder is exactly one address at any time
//   - ExpiresAt never decreases across renewals
//
// Expiry and claimability are computed from (now, timestamps), never stored:
// a record can be logically expired while Holder still reflects pre-expiry
// state. Every dependent operation evaluates the predicates below against the
// request clock.
type Identity struct {
	TokenID   domain.TokenID `json:"token_id"`
	Name      string         `json:"name"`
	Label     string         `json:"label"`
	Holder    domain.Address `json:"holder"`
	URI       string         `json:"uri"`
	MintedAt  time.Time      `json:"minted_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// IsExpired reports whether the token's life is over. The boundary itself is
// already expired.
func (i *Identity) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// GraceEndsAt is the instant after which any outside party may claim.
func (i *Identity) GraceEndsAt(renewLife time.Duration) time.Time {
	return i.ExpiresAt.Add(renewLife)
}

// IsClaimable reports whether the grace period has elapsed. The boundary
// itself is already claimable.
func (i *Identity) IsClaimable(now time.Time, renewLife time.Duration) bool {
	return !now.Before(i.GraceEndsAt(renewLife))
}

// CanRenew checks the renewal preconditions for the current holder.
func (i *Identity) CanRenew(caller domain.Address, now time.Time, payment, fee domain.Amount) error {
	if caller != i.Holder {
		return ErrNotHolder
	}
	if !i.IsExpired(now) {
		return ErrNotExpired
	}
	if payment < fee {
		return ErrInsufficientFee
	}
	return nil
}

// ApplyRenewal restarts the token life. Renewal extends, never shortens: the
// new expiry is now + tokenLife with now >= the old expiry.
func (i *Identity) ApplyRenewal(now time.Time, tokenLife time.Duration) {
	i.ExpiresAt = now.Add(tokenLife)
}

// CanClaim checks the claim preconditions for an outside party.
func (i *Identity) CanClaim(now time.Time, renewLife time.Duration, payment, fee domain.Amount) error {
	if !i.IsClaimable(now, renewLife) {
		return ErrNotClaimable
	}
	if payment < fee {
		return ErrInsufficientFee
	}
	return nil
}

// ApplyClaim reassigns the abandoned record to a new holder and restarts the
// life window. The token keeps its id and name, so no duplicate record exists.
func (i *Identity) ApplyClaim(to domain.Address, now time.Time, tokenLife time.Duration) {
	i.Holder = to
	i.ExpiresAt = now.Add(tokenLife)
}

// CanUpdateURI checks that the holder may still mutate metadata. URI mutation
// is frozen for expired-but-unclaimed tokens.
func (i *Identity) CanUpdateURI(caller domain.Address, now time.Time) error {
	if caller != i.Holder {
		return ErrNotHolder
	}
	if i.IsExpired(now) {
		return ErrTokenExpired
	}
	return nil
}

// Params is the fee and duration schedule of one namespace ledger.
type Params struct {
	Namespace domain.Namespace
	TokenLife time.Duration
	RenewLife time.Duration
	RenewFees domain.Amount
	MintFees  domain.Amount
	// DependsOn records the prior-namespace link supplied at deployment
	// (.app and .appStore point at .dev). Informational: mint does not
	// require a prior identity there.
	DependsOn domain.Namespace
}

// Config holds the mutable administrative flags of a namespace ledger,
// mutated only through owner-authenticated setters and read as plain
// predicates inside operation preconditions.
type Config struct {
	PayForMint         bool
	MintMany           bool
	MintSpecial        bool
	CheckReservedNames bool
}

// DefaultConfig matches a freshly deployed namespace: public mints pay,
// one identity per wallet, short names restricted, reserved list checked.
func DefaultConfig() Config {
	return Config{
		PayForMint:         true,
		MintMany:           false,
		MintSpecial:        false,
		CheckReservedNames: true,
	}
}
