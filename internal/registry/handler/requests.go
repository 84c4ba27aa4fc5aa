package handler

import (
	"strings"
	"time"

	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
)

// MintRequest is the HTTP request body for POST /registries/{ns}/mints.
type MintRequest struct {
	Name    string `json:"name"`
	URI     string `json:"uri"`
	To      string `json:"to"`
	Payment int64  `json:"payment"`

	parsedTo domain.Address
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 253 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 253 characters")
	}
	if len(r.URI) > 2048 {
		return dErrors.New(dErrors.CodeValidation, "uri must be at most 2048 characters")
	}
	if r.Payment < 0 {
		return dErrors.New(dErrors.CodeValidation, "payment must not be negative")
	}
	if r.To != "" {
		to, err := domain.ParseAddress(r.To)
		if err != nil {
			return err
		}
		r.parsedTo = to
	}
	return nil
}

// ParsedTo is the parsed recipient, or the zero value when the caller mints
// to itself.
func (r *MintRequest) ParsedTo() domain.Address { return r.parsedTo }

// TransferRequest is the HTTP request body for
// POST /registries/{ns}/identities/{tokenID}/transfer.
type TransferRequest struct {
	To string `json:"to"`

	parsedTo domain.Address
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	to, err := domain.ParseAddress(r.To)
	if err != nil {
		return err
	}
	r.parsedTo = to
	return nil
}

func (r *TransferRequest) ParsedTo() domain.Address { return r.parsedTo }

// PaymentRequest carries the fee offered with a renew or claim.
type PaymentRequest struct {
	Payment int64 `json:"payment"`
}

func (r *PaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Payment < 0 {
		return dErrors.New(dErrors.CodeValidation, "payment must not be negative")
	}
	return nil
}

// URIRequest is the HTTP request body for
// PUT /registries/{ns}/identities/{tokenID}/uri.
type URIRequest struct {
	URI string `json:"uri"`
}

func (r *URIRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.URI) > 2048 {
		return dErrors.New(dErrors.CodeValidation, "uri must be at most 2048 characters")
	}
	return nil
}

// AdminMintRequest is the HTTP request body for
// POST /admin/registries/{ns}/mints.
type AdminMintRequest struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
	To   string `json:"to"`

	parsedTo domain.Address
}

func (r *AdminMintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	to, err := domain.ParseAddress(r.To)
	if err != nil {
		return err
	}
	r.parsedTo = to
	return nil
}

func (r *AdminMintRequest) ParsedTo() domain.Address { return r.parsedTo }

// ConfigRequest updates administrative flags. Absent fields keep their
// current value.
type ConfigRequest struct {
	PayForMint         *bool `json:"pay_for_mint"`
	MintMany           *bool `json:"mint_many"`
	MintSpecial        *bool `json:"mint_special"`
	CheckReservedNames *bool `json:"check_reserved_names"`
}

func (r *ConfigRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.PayForMint == nil && r.MintMany == nil && r.MintSpecial == nil && r.CheckReservedNames == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one flag is required")
	}
	return nil
}

// ParamsRequest updates the fee and duration schedule. Absent fields keep
// their current value. Durations are given in seconds.
type ParamsRequest struct {
	MintFees         *int64 `json:"mint_fees"`
	RenewFees        *int64 `json:"renew_fees"`
	TokenLifeSeconds *int64 `json:"token_life_seconds"`
	RenewLifeSeconds *int64 `json:"renew_life_seconds"`
}

func (r *ParamsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.MintFees == nil && r.RenewFees == nil && r.TokenLifeSeconds == nil && r.RenewLifeSeconds == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one parameter is required")
	}
	for _, v := range []*int64{r.MintFees, r.RenewFees} {
		if v != nil && *v < 0 {
			return dErrors.New(dErrors.CodeValidation, "fees must not be negative")
		}
	}
	for _, v := range []*int64{r.TokenLifeSeconds, r.RenewLifeSeconds} {
		if v != nil && *v <= 0 {
			return dErrors.New(dErrors.CodeValidation, "durations must be positive")
		}
	}
	return nil
}

// TokenLife returns the parsed token life, if set.
func (r *ParamsRequest) TokenLife() (time.Duration, bool) {
	if r.TokenLifeSeconds == nil {
		return 0, false
	}
	return time.Duration(*r.TokenLifeSeconds) * time.Second, true
}

// RenewLife returns the parsed renew life, if set.
func (r *ParamsRequest) RenewLife() (time.Duration, bool) {
	if r.RenewLifeSeconds == nil {
		return 0, false
	}
	return time.Duration(*r.RenewLifeSeconds) * time.Second, true
}
