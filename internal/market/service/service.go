// Package service implements the secondary-sale market: listing a held token
// at a price, buying it, and cancelling the listing.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"meroku/internal/market/models"
	"meroku/internal/payments"
	regmodels "meroku/internal/registry/models"
	regservice "meroku/internal/registry/service"
	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/platform/sentinel"
	"meroku/pkg/requestcontext"
)

// ListingStore persists sale listings.
type ListingStore interface {
	Put(ctx context.Context, l models.Listing) error
	Get(ctx context.Context, ns domain.Namespace, id domain.TokenID) (*models.Listing, error)
	Delete(ctx context.Context, ns domain.Namespace, id domain.TokenID) error
	ListByNamespace(ctx context.Context, ns domain.Namespace) ([]models.Listing, error)
}

// Ledgers resolves a namespace to its identity ledger.
type Ledgers interface {
	Ledger(ns domain.Namespace) (*regservice.Ledger, error)
}

// Service orchestrates listings against current registry ownership.
type Service struct {
	store    ListingStore
	registry Ledgers
	payments payments.Ledger
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store ListingStore, registry Ledgers, pay payments.Ledger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		payments: pay,
		logger:   slog.Default(),
		tracer:   otel.Tracer("meroku/market"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSale lists a token at a price. Holder-only; a prior listing for the
// same token is overwritten.
func (s *Service) CreateSale(ctx context.Context, caller domain.Address, ns domain.Namespace, id domain.TokenID, price domain.Amount) (*models.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "market.CreateSale")
	defer span.End()

	if price <= 0 {
		return nil, models.ErrInvalidPrice
	}
	if err := s.requireHolder(ctx, caller, ns, id); err != nil {
		return nil, err
	}

	listing := models.Listing{
		Namespace: ns,
		TokenID:   id,
		Price:     price,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Put(ctx, listing); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store listing")
	}
	s.logger.InfoContext(ctx, "token listed for sale",
		"namespace", ns, "token_id", id, "price", price)
	return &listing, nil
}

// Buy purchases a listed token. The full paid amount goes to the seller, even
// above the asking price, and the listing is destroyed so a second purchase
// attempt fails with not-on-sale.
//
// The listing is read and validated inside the ledger's holder-change critical
// section, so an ownership change that clears the listing (transfer, claim,
// cancelled sale) racing with the purchase makes it fail not-on-sale instead of
// buying at a stale price.
func (s *Service) Buy(ctx context.Context, buyer domain.Address, ns domain.Namespace, id domain.TokenID, paid domain.Amount) (*models.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "market.Buy")
	defer span.End()

	ledger, err := s.registry.Ledger(ns)
	if err != nil {
		return nil, err
	}

	var sold models.Listing
	_, err = ledger.SaleTransfer(ctx, buyer, id, func(seller domain.Address) error {
		listing, err := s.Listing(ctx, ns, id)
		if err != nil {
			return err
		}
		if paid < listing.Price {
			return models.ErrInsufficientPayment
		}
		sold = *listing
		if err := s.payments.Transfer(ctx, buyer, seller, paid); err != nil {
			if errors.Is(err, payments.ErrInsufficientFunds) {
				return dErrors.New(dErrors.CodePaymentRequired, "insufficient funds")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "payment transfer failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The registry's listing invalidation hook already cleared the listing;
	// delete again in case the market runs without the hook wired.
	if err := s.store.Delete(ctx, ns, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete listing after sale",
			"namespace", ns, "token_id", id, "error", err)
	}
	s.logger.InfoContext(ctx, "token sold",
		"namespace", ns, "token_id", id, "buyer", buyer, "paid", paid)
	return &sold, nil
}

// EndSale cancels a listing. Holder-only and idempotent: ending a token that
// is not on sale succeeds without effect.
func (s *Service) EndSale(ctx context.Context, caller domain.Address, ns domain.Namespace, id domain.TokenID) error {
	ctx, span := s.tracer.Start(ctx, "market.EndSale")
	defer span.End()

	if err := s.requireHolder(ctx, caller, ns, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, ns, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete listing")
	}
	return nil
}

// Listing fetches the active listing for a token, or ErrNotOnSale.
func (s *Service) Listing(ctx context.Context, ns domain.Namespace, id domain.TokenID) (*models.Listing, error) {
	listing, err := s.store.Get(ctx, ns, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, models.ErrNotOnSale
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load listing")
	}
	return listing, nil
}

// OnSale reports whether a token has an active listing.
func (s *Service) OnSale(ctx context.Context, ns domain.Namespace, id domain.TokenID) (bool, error) {
	_, err := s.Listing(ctx, ns, id)
	if errors.Is(err, models.ErrNotOnSale) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Listings returns all active listings in a namespace.
func (s *Service) Listings(ctx context.Context, ns domain.Namespace) ([]models.Listing, error) {
	out, err := s.store.ListByNamespace(ctx, ns)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list listings")
	}
	return out, nil
}

func (s *Service) requireHolder(ctx context.Context, caller domain.Address, ns domain.Namespace, id domain.TokenID) error {
	ledger, err := s.registry.Ledger(ns)
	if err != nil {
		return err
	}
	holder, err := ledger.HolderOf(ctx, id)
	if err != nil {
		return err
	}
	if caller != holder {
		return regmodels.ErrNotHolder
	}
	return nil
}
