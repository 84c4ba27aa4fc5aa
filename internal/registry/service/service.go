// Package service implements the per-namespace identity ledger: mint,
// transfer, renew, claim and the administrative knobs that shape them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"meroku/internal/events"
	"meroku/internal/names"
	"meroku/internal/payments"
	"meroku/internal/registry/metrics"
	"meroku/internal/registry/models"
	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/platform/sentinel"
	"meroku/pkg/requestcontext"
)

// Store persists identity records for one namespace. Mutations go through the
// Execute callbacks so validation, payment and commit share one critical
// section.
type Store interface {
	Create(ctx context.Context, ident *models.Identity, singleHolder bool, fn func() error) (domain.TokenID, error)
	FindByID(ctx context.Context, id domain.TokenID) (*models.Identity, error)
	FindByName(ctx context.Context, name string) (*models.Identity, error)
	CountByHolder(ctx context.Context, holder domain.Address) (int, error)
	Execute(ctx context.Context, id domain.TokenID, fn func(*models.Identity) error) (*models.Identity, error)
	ExecuteHolderChange(ctx context.Context, id domain.TokenID, to domain.Address, singleHolder bool, fn func(*models.Identity) error) (*models.Identity, error)
}

// ReservedList gates public mints against the curated deny-list.
type ReservedList interface {
	IsReserved(ctx context.Context, name string) (bool, error)
}

// ListingCloser invalidates sale listings when ownership changes outside the
// market's own purchase path.
type ListingCloser interface {
	Clear(ctx context.Context, ns domain.Namespace, id domain.TokenID) error
}

// Ledger is one namespace's identity registry.
type Ledger struct {
	mu     sync.RWMutex // guards params and cfg
	params models.Params
	cfg    models.Config

	owner    domain.Address
	store    Store
	payments payments.Ledger
	reserved ReservedList
	listings ListingCloser
	emitter  events.Emitter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(l *Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithReservedList(r ReservedList) Option {
	return func(l *Ledger) { l.reserved = r }
}

func WithListingCloser(c ListingCloser) Option {
	return func(l *Ledger) { l.listings = c }
}

func WithEmitter(e events.Emitter) Option {
	return func(l *Ledger) { l.emitter = e }
}

func WithConfig(cfg models.Config) Option {
	return func(l *Ledger) { l.cfg = cfg }
}

// New constructs a namespace ledger with the default configuration.
func New(params models.Params, owner domain.Address, store Store, pay payments.Ledger, opts ...Option) *Ledger {
	l := &Ledger{
		params:   params,
		cfg:      models.DefaultConfig(),
		owner:    owner,
		store:    store,
		payments: pay,
		logger:   slog.Default(),
		tracer:   otel.Tracer("meroku/registry"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Namespace identifies the ledger.
func (l *Ledger) Namespace() domain.Namespace {
	return l.params.Namespace
}

// Owner is the administrative account that collects fees.
func (l *Ledger) Owner() domain.Address {
	return l.owner
}

// Params returns a snapshot of the fee and duration schedule.
func (l *Ledger) Params() models.Params {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.params
}

// Config returns a snapshot of the administrative flags.
func (l *Ledger) Config() models.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Mint issues a new identity on behalf of the namespace owner. The owner
// pays no fee and may mint short names, but reserved names and uniqueness
// rules still apply; reserved names are minted by toggling the reserved
// check off first.
func (l *Ledger) Mint(ctx context.Context, caller, to domain.Address, uri, rawName string) (*models.Identity, error) {
	ctx, span := l.tracer.Start(ctx, "registry.Mint")
	defer span.End()

	if caller != l.owner {
		return nil, models.ErrNotOwner
	}
	return l.mint(ctx, domain.ZeroAddress, to, uri, rawName, 0, true)
}

// MintSelf issues a new identity to any caller, collecting the mint fee when
// pay-for-mint is enabled.
func (l *Ledger) MintSelf(ctx context.Context, caller, to domain.Address, uri, rawName string, payment domain.Amount) (*models.Identity, error) {
	ctx, span := l.tracer.Start(ctx, "registry.MintSelf")
	defer span.End()

	return l.mint(ctx, caller, to, uri, rawName, payment, false)
}

func (l *Ledger) mint(ctx context.Context, payer, to domain.Address, uri, rawName string, payment domain.Amount, ownerMint bool) (*models.Identity, error) {
	start := time.Now()
	params, cfg := l.Params(), l.Config()
	now := requestcontext.Now(ctx)

	name, err := names.Normalize(rawName, params.Namespace)
	if err != nil {
		return nil, err
	}
	if name.IsSpecial() && !cfg.MintSpecial && !ownerMint {
		return nil, names.ErrRestrictedName
	}
	if cfg.CheckReservedNames && l.reserved != nil {
		isReserved, err := l.reserved.IsReserved(ctx, name.Full)
		if err != nil {
			return nil, err
		}
		if isReserved {
			return nil, models.ErrNameReserved
		}
	}

	// The fee transfer runs inside the store's create critical section, after
	// the uniqueness checks, so a rejected mint never touches balances.
	paid := domain.Amount(0)
	var collectFee func() error
	if !ownerMint && cfg.PayForMint {
		if payment < params.MintFees {
			return nil, models.ErrInsufficientMintFee
		}
		collectFee = func() error {
			if err := l.payments.Transfer(ctx, payer, l.owner, payment); err != nil {
				return translatePayment(err)
			}
			paid = payment
			return nil
		}
	}

	ident := &models.Identity{
		Name:      name.Full,
		Label:     name.Label,
		Holder:    to,
		URI:       uri,
		MintedAt:  now,
		ExpiresAt: now.Add(params.TokenLife),
	}
	id, err := l.store.Create(ctx, ident, !cfg.MintMany, collectFee)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, models.ErrNameTaken
		case errors.Is(err, sentinel.ErrConflict):
			return nil, models.ErrAlreadyHolder
		case dErrors.CodeOf(err) != dErrors.CodeInternal:
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint identity")
		}
	}

	l.emit(ctx, events.Transfer{
		From: domain.ZeroAddress, To: to,
		TokenID: id, Namespace: params.Namespace, Name: ident.Name, At: now,
	})
	l.logger.InfoContext(ctx, "identity minted",
		"namespace", params.Namespace, "token_id", id, "name", ident.Name, "holder", to)
	if l.metrics != nil {
		l.metrics.IncrementMints(params.Namespace.String())
		l.metrics.ObserveMint(start)
		if paid > 0 {
			l.metrics.AddFees(params.Namespace.String(), "mint", int64(paid))
		}
	}
	return ident, nil
}

// Transfer moves a live identity to another wallet. Only the current holder
// may transfer, and the recipient must not already hold an identity in this
// namespace unless mint-many is enabled. Any active sale listing is cleared.
func (l *Ledger) Transfer(ctx context.Context, caller, to domain.Address, id domain.TokenID) (*models.Identity, error) {
	ctx, span := l.tracer.Start(ctx, "registry.Transfer")
	defer span.End()

	params, cfg := l.Params(), l.Config()
	now := requestcontext.Now(ctx)

	var from domain.Address
	ident, err := l.store.ExecuteHolderChange(ctx, id, to, !cfg.MintMany, func(i *models.Identity) error {
		if caller != i.Holder {
			return models.ErrNotHolder
		}
		from = i.Holder
		return nil
	})
	if err != nil {
		return nil, l.translateHolderChange(err)
	}

	l.afterHolderChange(ctx, ident, from, now)
	l.logger.InfoContext(ctx, "identity transferred",
		"namespace", params.Namespace, "token_id", id, "from", from, "to", to)
	return ident, nil
}

// SaleTransfer moves a token to a buyer as part of a market purchase. pay is
// invoked with the seller's address inside the store's critical section, after
// the recipient check and before any state commits, so a failed payment
// aborts the whole purchase.
func (l *Ledger) SaleTransfer(ctx context.Context, buyer domain.Address, id domain.TokenID, pay func(seller domain.Address) error) (*models.Identity, error) {
	ctx, span := l.tracer.Start(ctx, "registry.SaleTransfer")
	defer span.End()

	params, cfg := l.Params(), l.Config()
	now := requestcontext.Now(ctx)

	var seller domain.Address
	ident, err := l.store.ExecuteHolderChange(ctx, id, buyer, !cfg.MintMany, func(i *models.Identity) error {
		seller = i.Holder
		return pay(i.Holder)
	})
	if err != nil {
		return nil, l.translateHolderChange(err)
	}

	l.afterHolderChange(ctx, ident, seller, now)
	l.logger.InfoContext(ctx, "identity sold",
		"namespace", params.Namespace, "token_id", id, "from", seller, "to", buyer)
	return ident, nil
}

// Renew extends an expired token's life for its current holder. Allowed only
// within the grace window semantics: the token must already be expired, and
// the holder keeps the exclusive right until the grace period runs out.
func (l *Ledger) Renew(ctx context.Context, caller domain.Address, id domain.TokenID, payment domain.Amount) (*models.Identity, error) {
	ctx, span := l.tracer.Start(ctx, "registry.Renew")
	defer span.End()

	params := l.Params()
	now := requestcontext.Now(ctx)

	ident, err := l.store.Execute(ctx, id, func(i *models.Identity) error {
		if err := i.CanRenew(caller, now, payment, params.RenewFees); err != nil {
			return err
		}
		if err := l.payments.Transfer(ctx, caller, l.owner, payment); err != nil {
			return translatePayment(err)
		}
		i.ApplyRenewal(now, params.TokenLife)
		return nil
	})
	if err != nil {
		return nil, l.translateExecute(err)
	}

	l.logger.InfoContext(ctx, "identity renewed",
		"namespace", params.Namespace, "token_id", id, "expires_at", ident.ExpiresAt)
	if l.metrics != nil {
		l.metrics.IncrementRenewals(params.Namespace.String())
		l.metrics.AddFees(params.Namespace.String(), "renew", int64(payment))
	}
	return ident, nil
}

// Claim hands an abandoned token to a new holder once the grace period has
// fully elapsed. The record keeps its token id and name; only the holder and
// the expiry window change.
func (l *Ledger) Claim(ctx context.Context, caller domain.Address, id domain.TokenID, payment domain.Amount) (*models.Identity, error) {
	ctx, span := l.tracer.Start(ctx, "registry.Claim")
	defer span.End()

	params, cfg := l.Params(), l.Config()
	now := requestcontext.Now(ctx)

	var from domain.Address
	ident, err := l.store.ExecuteHolderChange(ctx, id, caller, !cfg.MintMany, func(i *models.Identity) error {
		if err := i.CanClaim(now, params.RenewLife, payment, params.RenewFees); err != nil {
			return err
		}
		if err := l.payments.Transfer(ctx, caller, l.owner, payment); err != nil {
			return translatePayment(err)
		}
		from = i.Holder
		i.ApplyClaim(caller, now, params.TokenLife)
		return nil
	})
	if err != nil {
		return nil, l.translateHolderChange(err)
	}

	l.afterHolderChange(ctx, ident, from, now)
	l.logger.InfoContext(ctx, "identity claimed",
		"namespace", params.Namespace, "token_id", id, "from", from, "to", caller)
	if l.metrics != nil {
		l.metrics.IncrementClaims(params.Namespace.String())
		l.metrics.AddFees(params.Namespace.String(), "claim", int64(payment))
	}
	return ident, nil
}

// UpdateURI replaces the metadata pointer of a live token. Holder-only, and
// frozen while the token is expired.
func (l *Ledger) UpdateURI(ctx context.Context, caller domain.Address, id domain.TokenID, uri string) (*models.Identity, error) {
	ctx, span := l.tracer.Start(ctx, "registry.UpdateURI")
	defer span.End()

	now := requestcontext.Now(ctx)
	ident, err := l.store.Execute(ctx, id, func(i *models.Identity) error {
		if err := i.CanUpdateURI(caller, now); err != nil {
			return err
		}
		i.URI = uri
		return nil
	})
	if err != nil {
		return nil, l.translateExecute(err)
	}
	return ident, nil
}

// Get fetches one identity by token id.
func (l *Ledger) Get(ctx context.Context, id domain.TokenID) (*models.Identity, error) {
	ident, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, l.translateFind(err)
	}
	return ident, nil
}

// GetByName fetches one identity by its (case-insensitive) full name.
func (l *Ledger) GetByName(ctx context.Context, name string) (*models.Identity, error) {
	ident, err := l.store.FindByName(ctx, name)
	if err != nil {
		return nil, l.translateFind(err)
	}
	return ident, nil
}

// TokenIDForName resolves a name to its token id.
func (l *Ledger) TokenIDForName(ctx context.Context, name string) (domain.TokenID, error) {
	ident, err := l.GetByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return ident.TokenID, nil
}

// HolderOf reports the current holder of a token.
func (l *Ledger) HolderOf(ctx context.Context, id domain.TokenID) (domain.Address, error) {
	ident, err := l.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return ident.Holder, nil
}

// NameOf resolves a token id to its full name.
func (l *Ledger) NameOf(ctx context.Context, id domain.TokenID) (string, error) {
	ident, err := l.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return ident.Name, nil
}

// Administrative setters. The HTTP surface authenticates these with the admin
// token; the service just applies them under the config lock.

func (l *Ledger) SetPayForMintFlag(v bool)         { l.setCfg(func(c *models.Config) { c.PayForMint = v }) }
func (l *Ledger) SetMintManyFlag(v bool)           { l.setCfg(func(c *models.Config) { c.MintMany = v }) }
func (l *Ledger) SetMintSpecialFlag(v bool)        { l.setCfg(func(c *models.Config) { c.MintSpecial = v }) }
func (l *Ledger) SetCheckReservedNamesFlag(v bool) { l.setCfg(func(c *models.Config) { c.CheckReservedNames = v }) }

func (l *Ledger) SetMintFees(v domain.Amount) { l.setParams(func(p *models.Params) { p.MintFees = v }) }
func (l *Ledger) SetRenewFees(v domain.Amount) {
	l.setParams(func(p *models.Params) { p.RenewFees = v })
}
func (l *Ledger) SetTokenLife(d time.Duration) {
	l.setParams(func(p *models.Params) { p.TokenLife = d })
}
func (l *Ledger) SetRenewLife(d time.Duration) {
	l.setParams(func(p *models.Params) { p.RenewLife = d })
}

func (l *Ledger) setCfg(fn func(*models.Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.cfg)
}

func (l *Ledger) setParams(fn func(*models.Params)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.params)
}

func (l *Ledger) afterHolderChange(ctx context.Context, ident *models.Identity, from domain.Address, now time.Time) {
	if l.listings != nil {
		if err := l.listings.Clear(ctx, l.params.Namespace, ident.TokenID); err != nil {
			l.logger.ErrorContext(ctx, "failed to clear sale listing",
				"namespace", l.params.Namespace, "token_id", ident.TokenID, "error", err)
		}
	}
	l.emit(ctx, events.Transfer{
		From: from, To: ident.Holder,
		TokenID: ident.TokenID, Namespace: l.params.Namespace, Name: ident.Name, At: now,
	})
	if l.metrics != nil {
		l.metrics.IncrementTransfers(l.params.Namespace.String())
	}
}

func (l *Ledger) emit(ctx context.Context, ev events.Transfer) {
	if l.emitter != nil {
		l.emitter.Emit(ctx, ev)
	}
}

func (l *Ledger) translateExecute(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "token not found")
	}
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "registry operation failed")
}

func (l *Ledger) translateHolderChange(err error) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return models.ErrRecipientAlreadyHolder
	}
	return l.translateExecute(err)
}

func (l *Ledger) translateFind(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "token not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
}

func translatePayment(err error) error {
	if errors.Is(err, payments.ErrInsufficientFunds) {
		return dErrors.New(dErrors.CodePaymentRequired, "insufficient funds")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "payment transfer failed")
}
