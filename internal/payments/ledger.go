// Package payments models native-currency value transfer at the registry
// boundary. Fee collection on renew/claim and sale proceeds forwarding are
// synchronous effects inside the owning registry operation: a failed transfer
// aborts the whole operation before any ownership change commits.
package payments

import (
	"context"
	"errors"
	"sync"

	"meroku/pkg/domain"
)

// ErrInsufficientFunds is the store-level fact that a payer cannot cover an
// amount. Services translate it for callers.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger moves native currency between accounts.
type Ledger interface {
	// Transfer moves amount from one account to another. It either fully
	// applies or returns an error with no effect.
	Transfer(ctx context.Context, from, to domain.Address, amount domain.Amount) error
	// Deposit credits an account, minting funds into the ledger.
	Deposit(ctx context.Context, to domain.Address, amount domain.Amount) error
	// Balance reports the current balance of an account.
	Balance(ctx context.Context, addr domain.Address) (domain.Amount, error)
}

// InMemory is a mutex-guarded balance map. It stands in for the chain's value
// layer in tests and single-node deployments.
type InMemory struct {
	mu       sync.Mutex
	balances map[domain.Address]domain.Amount
}

func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[domain.Address]domain.Amount)}
}

func (l *InMemory) Transfer(ctx context.Context, from, to domain.Address, amount domain.Amount) error {
	if amount < 0 {
		return errors.New("negative amount")
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *InMemory) Deposit(ctx context.Context, to domain.Address, amount domain.Amount) error {
	if amount < 0 {
		return errors.New("negative amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
	return nil
}

func (l *InMemory) Balance(ctx context.Context, addr domain.Address) (domain.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr], nil
}
