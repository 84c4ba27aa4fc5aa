// Package models holds the sale listing record and the market's named
// failure conditions.
package models

import (
	"time"

	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
)

var (
	ErrNotOnSale           = dErrors.New(dErrors.CodeConflict, "this token is not on sale")
	ErrInsufficientPayment = dErrors.New(dErrors.CodePaymentRequired, "paid less than price")
	ErrInvalidPrice        = dErrors.New(dErrors.CodeValidation, "price must be a positive amount")
)

// Listing is a token offered for sale. At most one listing exists per token;
// creating a new one overwrites the previous price. A listing is destroyed on
// purchase, on explicit cancellation, and whenever the token changes hands
// through any other path.
type Listing struct {
	Namespace domain.Namespace `json:"namespace"`
	TokenID   domain.TokenID   `json:"token_id"`
	Price     domain.Amount    `json:"price"`
	CreatedAt time.Time        `json:"created_at"`
}
