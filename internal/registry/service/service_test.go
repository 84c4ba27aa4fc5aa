package service

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"meroku/internal/events"
	"meroku/internal/names"
	"meroku/internal/payments"
	"meroku/internal/registry/models"
	"meroku/internal/registry/store"
	"meroku/internal/reserved"
	"meroku/pkg/domain"
	dErrors "meroku/pkg/domain-errors"
	"meroku/pkg/testutil"
)

const (
	tokenLife = 365 * 24 * time.Hour
	renewLife = 30 * 24 * time.Hour
	mintFee   = domain.Amount(50)
	renewFee  = domain.Amount(100)
)

var (
	owner = domain.Address("0x00000000000000000000000000000000000000ff")
	alice = domain.Address("0x11111111111111111111111111111111111111aa")
	bob   = domain.Address("0x22222222222222222222222222222222222222bb")
	carol = domain.Address("0x33333333333333333333333333333333333333cc")

	t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// recordingEmitter collects emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Transfer
}

func (r *recordingEmitter) Emit(_ context.Context, ev events.Transfer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) all() []events.Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Transfer(nil), r.events...)
}

// recordingCloser collects listing invalidations for assertions.
type recordingCloser struct {
	mu      sync.Mutex
	cleared []domain.TokenID
}

func (r *recordingCloser) Clear(_ context.Context, _ domain.Namespace, id domain.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, id)
	return nil
}

type LedgerSuite struct {
	suite.Suite
	pay      *payments.InMemory
	emitter  *recordingEmitter
	closer   *recordingCloser
	reserved *reserved.Service
	ledger   *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.pay = payments.NewInMemory()
	s.emitter = &recordingEmitter{}
	s.closer = &recordingCloser{}
	s.reserved = reserved.New(reserved.NewInMemory(), logger)

	ctx := context.Background()
	_, err := s.reserved.Append(ctx, []string{"dappstore.appStore", "vault.dev"})
	s.Require().NoError(err)
	for _, addr := range []domain.Address{alice, bob, carol} {
		s.Require().NoError(s.pay.Deposit(ctx, addr, 10_000))
	}

	s.ledger = s.newLedger(domain.NamespaceDev)
}

func (s *LedgerSuite) newLedger(ns domain.Namespace) *Ledger {
	return New(
		models.Params{
			Namespace: ns,
			TokenLife: tokenLife,
			RenewLife: renewLife,
			RenewFees: renewFee,
			MintFees:  mintFee,
		},
		owner,
		store.NewInMemory(),
		s.pay,
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithReservedList(s.reserved),
		WithListingCloser(s.closer),
		WithEmitter(s.emitter),
	)
}

func (s *LedgerSuite) at(t time.Time) context.Context {
	return testutil.ContextAt(t)
}

func (s *LedgerSuite) mintAt(t time.Time, holder domain.Address, name string) *models.Identity {
	ident, err := s.ledger.MintSelf(s.at(t), holder, holder, "ipfs://meta/"+name, name, mintFee)
	s.Require().NoError(err)
	return ident
}

func (s *LedgerSuite) TestMintSelfIssuesIdentity() {
	ident := s.mintAt(t0, alice, "myname")

	s.Equal(domain.TokenID(1), ident.TokenID)
	s.Equal("myname.dev", ident.Name)
	s.Equal(alice, ident.Holder)
	s.Equal(t0, ident.MintedAt)
	s.Equal(t0.Add(tokenLife), ident.ExpiresAt)

	evs := s.emitter.all()
	s.Require().Len(evs, 1)
	s.True(evs[0].IsMint())
	s.Equal(alice, evs[0].To)
	s.Equal(domain.TokenID(1), evs[0].TokenID)

	balance, err := s.pay.Balance(context.Background(), owner)
	s.Require().NoError(err)
	s.Equal(mintFee, balance)
}

func (s *LedgerSuite) TestMintNormalizesCaseAndSuffix() {
	appStore := s.newLedger(domain.NamespaceAppStore)

	ident, err := appStore.MintSelf(s.at(t0), alice, alice, "", "MyShop.APPSTORE", mintFee)
	s.Require().NoError(err)
	s.Equal("myshop.appStore", ident.Name)
	s.Equal("myshop", ident.Label)

	found, err := appStore.GetByName(s.at(t0), "MYSHOP.appstore")
	s.Require().NoError(err)
	s.Equal(ident.TokenID, found.TokenID)
}

func (s *LedgerSuite) TestMintRejectsDuplicateName() {
	s.mintAt(t0, alice, "myname")

	_, err := s.ledger.MintSelf(s.at(t0), bob, bob, "", "MyName.dev", mintFee)
	s.ErrorIs(err, models.ErrNameTaken)
}

func (s *LedgerSuite) TestMintRejectsSecondIdentityPerWallet() {
	s.mintAt(t0, alice, "first")

	_, err := s.ledger.MintSelf(s.at(t0), alice, alice, "", "second", mintFee)
	s.ErrorIs(err, models.ErrAlreadyHolder)

	s.ledger.SetMintManyFlag(true)
	_, err = s.ledger.MintSelf(s.at(t0), alice, alice, "", "second", mintFee)
	s.NoError(err)
}

func (s *LedgerSuite) TestRejectedMintLeavesBalancesUntouched() {
	s.mintAt(t0, alice, "myname")

	payerBefore, err := s.pay.Balance(context.Background(), bob)
	s.Require().NoError(err)
	ownerBefore, err := s.pay.Balance(context.Background(), owner)
	s.Require().NoError(err)

	_, err = s.ledger.MintSelf(s.at(t0), bob, bob, "", "myname", mintFee)
	s.ErrorIs(err, models.ErrNameTaken)

	payerAfter, err := s.pay.Balance(context.Background(), bob)
	s.Require().NoError(err)
	s.Equal(payerBefore, payerAfter)
	ownerAfter, err := s.pay.Balance(context.Background(), owner)
	s.Require().NoError(err)
	s.Equal(ownerBefore, ownerAfter)
}

func (s *LedgerSuite) TestMintRestrictsShortNames() {
	_, err := s.ledger.MintSelf(s.at(t0), alice, alice, "", "abc", mintFee)
	s.ErrorIs(err, names.ErrRestrictedName)

	// The owner mints short names without the flag.
	_, err = s.ledger.Mint(s.at(t0), owner, alice, "", "abc")
	s.NoError(err)

	s.ledger.SetMintSpecialFlag(true)
	_, err = s.ledger.MintSelf(s.at(t0), bob, bob, "", "xyz", mintFee)
	s.NoError(err)
}

func (s *LedgerSuite) TestMintRejectsReservedName() {
	_, err := s.ledger.MintSelf(s.at(t0), alice, alice, "", "vault", mintFee)
	s.ErrorIs(err, models.ErrNameReserved)
}

func (s *LedgerSuite) TestReservedNameMintedByTogglingCheck() {
	appStore := s.newLedger(domain.NamespaceAppStore)

	_, err := appStore.MintSelf(s.at(t0), alice, alice, "", "dappstore", mintFee)
	s.ErrorIs(err, models.ErrNameReserved)

	appStore.SetCheckReservedNamesFlag(false)
	ident, err := appStore.MintSelf(s.at(t0), alice, alice, "", "dappstore", mintFee)
	s.Require().NoError(err)
	s.Equal("dappstore.appStore", ident.Name)

	appStore.SetCheckReservedNamesFlag(true)
	_, err = appStore.MintSelf(s.at(t0), bob, bob, "", "dappstores", mintFee)
	s.NoError(err)
	_, err = appStore.MintSelf(s.at(t0), carol, carol, "", "dappstore", mintFee)
	s.ErrorIs(err, models.ErrNameTaken)
}

func (s *LedgerSuite) TestMintFeeChecks() {
	_, err := s.ledger.MintSelf(s.at(t0), alice, alice, "", "myname", mintFee-1)
	s.ErrorIs(err, models.ErrInsufficientMintFee)

	s.ledger.SetPayForMintFlag(false)
	_, err = s.ledger.MintSelf(s.at(t0), alice, alice, "", "myname", 0)
	s.NoError(err)

	balance, err := s.pay.Balance(context.Background(), owner)
	s.Require().NoError(err)
	s.Zero(balance)
}

func (s *LedgerSuite) TestMintRejectsBrokeCaller() {
	broke := domain.Address("0x44444444444444444444444444444444444444dd")

	_, err := s.ledger.MintSelf(s.at(t0), broke, broke, "", "myname", mintFee)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentRequired))

	_, err = s.ledger.GetByName(s.at(t0), "myname.dev")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LedgerSuite) TestOwnerMintRequiresOwner() {
	_, err := s.ledger.Mint(s.at(t0), alice, bob, "", "myname")
	s.ErrorIs(err, models.ErrNotOwner)
}

func (s *LedgerSuite) TestTransfer() {
	ident := s.mintAt(t0, alice, "myname")

	testutil.When(s.T(), "a non-holder tries to transfer", func(t *testing.T) {
		_, err := s.ledger.Transfer(s.at(t0), bob, carol, ident.TokenID)
		s.ErrorIs(err, models.ErrNotHolder)
	})

	testutil.When(s.T(), "the recipient already holds an identity", func(t *testing.T) {
		s.mintAt(t0, bob, "other")
		_, err := s.ledger.Transfer(s.at(t0), alice, bob, ident.TokenID)
		s.ErrorIs(err, models.ErrRecipientAlreadyHolder)
	})

	testutil.When(s.T(), "the holder transfers to a fresh wallet", func(t *testing.T) {
		moved, err := s.ledger.Transfer(s.at(t0), alice, carol, ident.TokenID)
		s.Require().NoError(err)
		s.Equal(carol, moved.Holder)

		s.Contains(s.closer.cleared, ident.TokenID)

		evs := s.emitter.all()
		last := evs[len(evs)-1]
		s.Equal(alice, last.From)
		s.Equal(carol, last.To)
	})
}

func (s *LedgerSuite) TestRenewBoundaries() {
	ident := s.mintAt(t0, alice, "myname")
	expiry := ident.ExpiresAt

	// One instant before expiry the token is still live.
	_, err := s.ledger.Renew(s.at(expiry.Add(-time.Nanosecond)), alice, ident.TokenID, renewFee)
	s.ErrorIs(err, models.ErrNotExpired)

	// At the boundary it is expired and renewable.
	renewed, err := s.ledger.Renew(s.at(expiry), alice, ident.TokenID, renewFee)
	s.Require().NoError(err)
	s.Equal(expiry.Add(tokenLife), renewed.ExpiresAt)
	s.Equal(alice, renewed.Holder)
}

func (s *LedgerSuite) TestRenewPreconditions() {
	ident := s.mintAt(t0, alice, "myname")
	expired := ident.ExpiresAt.Add(time.Hour)

	_, err := s.ledger.Renew(s.at(expired), bob, ident.TokenID, renewFee)
	s.ErrorIs(err, models.ErrNotHolder)

	_, err = s.ledger.Renew(s.at(expired), alice, ident.TokenID, renewFee-1)
	s.ErrorIs(err, models.ErrInsufficientFee)

	ownerBefore, err := s.pay.Balance(context.Background(), owner)
	s.Require().NoError(err)

	_, err = s.ledger.Renew(s.at(expired), alice, ident.TokenID, renewFee)
	s.Require().NoError(err)

	ownerAfter, err := s.pay.Balance(context.Background(), owner)
	s.Require().NoError(err)
	s.Equal(renewFee, ownerAfter-ownerBefore)
}

func (s *LedgerSuite) TestClaimLifecycle() {
	ident := s.mintAt(t0, alice, "myname")
	graceEnd := ident.ExpiresAt.Add(renewLife)

	_, err := s.ledger.Claim(s.at(graceEnd.Add(-time.Nanosecond)), bob, ident.TokenID, renewFee)
	s.ErrorIs(err, models.ErrNotClaimable)

	claimed, err := s.ledger.Claim(s.at(graceEnd), bob, ident.TokenID, renewFee)
	s.Require().NoError(err)
	s.Equal(ident.TokenID, claimed.TokenID)
	s.Equal(ident.Name, claimed.Name)
	s.Equal(bob, claimed.Holder)
	s.Equal(graceEnd.Add(tokenLife), claimed.ExpiresAt)

	// The name resolves to the same record, no duplicate exists.
	found, err := s.ledger.GetByName(s.at(graceEnd), "myname.dev")
	s.Require().NoError(err)
	s.Equal(claimed.TokenID, found.TokenID)
	s.Equal(bob, found.Holder)
}

func (s *LedgerSuite) TestClaimRejectsBusyClaimant() {
	ident := s.mintAt(t0, alice, "myname")
	s.mintAt(t0, bob, "other")
	graceEnd := ident.ExpiresAt.Add(renewLife)

	_, err := s.ledger.Claim(s.at(graceEnd), bob, ident.TokenID, renewFee)
	s.ErrorIs(err, models.ErrRecipientAlreadyHolder)
}

func (s *LedgerSuite) TestClaimRequiresFee() {
	ident := s.mintAt(t0, alice, "myname")
	graceEnd := ident.ExpiresAt.Add(renewLife)

	_, err := s.ledger.Claim(s.at(graceEnd), bob, ident.TokenID, renewFee-1)
	s.ErrorIs(err, models.ErrInsufficientFee)

	unchanged, err := s.ledger.Get(s.at(graceEnd), ident.TokenID)
	s.Require().NoError(err)
	s.Equal(alice, unchanged.Holder)
}

func (s *LedgerSuite) TestUpdateURI() {
	ident := s.mintAt(t0, alice, "myname")

	_, err := s.ledger.UpdateURI(s.at(t0.Add(time.Hour)), bob, ident.TokenID, "ipfs://hijack")
	s.ErrorIs(err, models.ErrNotHolder)

	updated, err := s.ledger.UpdateURI(s.at(t0.Add(time.Hour)), alice, ident.TokenID, "ipfs://meta/v2")
	s.Require().NoError(err)
	s.Equal("ipfs://meta/v2", updated.URI)

	_, err = s.ledger.UpdateURI(s.at(ident.ExpiresAt), alice, ident.TokenID, "ipfs://meta/v3")
	s.ErrorIs(err, models.ErrTokenExpired)
}

func (s *LedgerSuite) TestSaleTransferPaysSellerBeforeCommit() {
	ident := s.mintAt(t0, alice, "myname")

	var paidTo domain.Address
	moved, err := s.ledger.SaleTransfer(s.at(t0), bob, ident.TokenID, func(seller domain.Address) error {
		paidTo = seller
		return s.pay.Transfer(context.Background(), bob, seller, 500)
	})
	s.Require().NoError(err)
	s.Equal(alice, paidTo)
	s.Equal(bob, moved.Holder)
	s.Contains(s.closer.cleared, ident.TokenID)
}

func (s *LedgerSuite) TestSaleTransferAbortsOnPaymentFailure() {
	ident := s.mintAt(t0, alice, "myname")

	_, err := s.ledger.SaleTransfer(s.at(t0), bob, ident.TokenID, func(seller domain.Address) error {
		return dErrors.New(dErrors.CodePaymentRequired, "paid less than price")
	})
	s.True(dErrors.HasCode(err, dErrors.CodePaymentRequired))

	unchanged, err := s.ledger.Get(s.at(t0), ident.TokenID)
	s.Require().NoError(err)
	s.Equal(alice, unchanged.Holder)
}

func (s *LedgerSuite) TestLookupUnknownToken() {
	_, err := s.ledger.Get(s.at(t0), 42)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.ledger.TokenIDForName(s.at(t0), "ghost.dev")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.ledger.NameOf(s.at(t0), 42)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LedgerSuite) TestNameResolutionRoundTrip() {
	ident := s.mintAt(t0, alice, "myname")

	id, err := s.ledger.TokenIDForName(s.at(t0), "MyName.DEV")
	s.Require().NoError(err)
	s.Equal(ident.TokenID, id)

	name, err := s.ledger.NameOf(s.at(t0), id)
	s.Require().NoError(err)
	s.Equal("myname.dev", name)

	holder, err := s.ledger.HolderOf(s.at(t0), id)
	s.Require().NoError(err)
	s.Equal(alice, holder)
}

func (s *LedgerSuite) TestFeeAndLifeSetters() {
	s.ledger.SetMintFees(500)
	s.ledger.SetRenewFees(700)
	s.ledger.SetTokenLife(60 * 24 * time.Hour)
	s.ledger.SetRenewLife(7 * 24 * time.Hour)

	p := s.ledger.Params()
	s.Equal(domain.Amount(500), p.MintFees)
	s.Equal(domain.Amount(700), p.RenewFees)
	s.Equal(60*24*time.Hour, p.TokenLife)
	s.Equal(7*24*time.Hour, p.RenewLife)

	_, err := s.ledger.MintSelf(s.at(t0), alice, alice, "", "myname", 499)
	s.ErrorIs(err, models.ErrInsufficientMintFee)
}

func TestRegistryLookup(t *testing.T) {
	pay := payments.NewInMemory()
	dev := New(models.Params{Namespace: domain.NamespaceDev, TokenLife: tokenLife, RenewLife: renewLife}, owner, store.NewInMemory(), pay)
	app := New(models.Params{Namespace: domain.NamespaceApp, TokenLife: tokenLife, RenewLife: renewLife}, owner, store.NewInMemory(), pay)
	registry := NewRegistry(dev, app)

	got, err := registry.Ledger(domain.NamespaceApp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != app {
		t.Fatalf("wrong ledger returned")
	}

	_, err = registry.Ledger(domain.NamespaceAppStore)
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not-found for unregistered namespace, got %v", err)
	}
}
