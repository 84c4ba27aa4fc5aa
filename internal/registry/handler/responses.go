package handler

import (
	"time"

	"meroku/internal/registry/models"
	"meroku/pkg/domain"
)

// IdentityResponse is the HTTP shape of one identity record. Expired and
// claimable are computed against the request clock, never stored.
type IdentityResponse struct {
	TokenID    domain.TokenID `json:"token_id"`
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Namespace  string         `json:"namespace"`
	Holder     string         `json:"holder"`
	URI        string         `json:"uri"`
	MintedAt   time.Time      `json:"minted_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	GraceEndAt time.Time      `json:"grace_end_at"`
	Expired    bool           `json:"expired"`
	Claimable  bool           `json:"claimable"`
}

// FromIdentity converts a domain identity to its HTTP shape, evaluating the
// lifecycle predicates at now.
func FromIdentity(ident *models.Identity, ns domain.Namespace, renewLife time.Duration, now time.Time) *IdentityResponse {
	return &IdentityResponse{
		TokenID:    ident.TokenID,
		Name:       ident.Name,
		Label:      ident.Label,
		Namespace:  ns.String(),
		Holder:     ident.Holder.String(),
		URI:        ident.URI,
		MintedAt:   ident.MintedAt,
		ExpiresAt:  ident.ExpiresAt,
		GraceEndAt: ident.GraceEndsAt(renewLife),
		Expired:    ident.IsExpired(now),
		Claimable:  ident.IsClaimable(now, renewLife),
	}
}

// ConfigResponse is the HTTP shape of a namespace's administrative state.
type ConfigResponse struct {
	Namespace          string `json:"namespace"`
	Owner              string `json:"owner"`
	PayForMint         bool   `json:"pay_for_mint"`
	MintMany           bool   `json:"mint_many"`
	MintSpecial        bool   `json:"mint_special"`
	CheckReservedNames bool   `json:"check_reserved_names"`
	MintFees           int64  `json:"mint_fees"`
	RenewFees          int64  `json:"renew_fees"`
	TokenLifeSeconds   int64  `json:"token_life_seconds"`
	RenewLifeSeconds   int64  `json:"renew_life_seconds"`
}

// FromConfig converts a ledger's params and flags to their HTTP shape.
func FromConfig(owner domain.Address, params models.Params, cfg models.Config) *ConfigResponse {
	return &ConfigResponse{
		Namespace:          params.Namespace.String(),
		Owner:              owner.String(),
		PayForMint:         cfg.PayForMint,
		MintMany:           cfg.MintMany,
		MintSpecial:        cfg.MintSpecial,
		CheckReservedNames: cfg.CheckReservedNames,
		MintFees:           int64(params.MintFees),
		RenewFees:          int64(params.RenewFees),
		TokenLifeSeconds:   int64(params.TokenLife / time.Second),
		RenewLifeSeconds:   int64(params.RenewLife / time.Second),
	}
}
