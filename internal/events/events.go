// Package events carries ownership-change notifications for off-chain
// indexers. Every mint, transfer, sale and claim emits a Transfer event with
// (from, to, tokenId) at minimum; the zero address encodes a mint.
package events

import (
	"context"
	"time"

	"meroku/pkg/domain"
)

// Transfer is emitted on every ownership change.
type Transfer struct {
	From      domain.Address   `json:"from"`
	To        domain.Address   `json:"to"`
	TokenID   domain.TokenID   `json:"token_id"`
	Namespace domain.Namespace `json:"namespace"`
	Name      string           `json:"name"`
	At        time.Time        `json:"at"`
}

// IsMint reports whether the event records a creation.
func (t Transfer) IsMint() bool { return t.From.IsZero() }

// Emitter accepts events from domain services. Implementations must not block
// the emitting operation beyond a bounded enqueue.
type Emitter interface {
	Emit(ctx context.Context, ev Transfer)
}

// Sink is the delivery side drained by the worker.
type Sink interface {
	Publish(ctx context.Context, ev Transfer) error
}
