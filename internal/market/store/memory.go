// Package store persists sale listings.
package store

import (
	"context"
	"sync"

	"meroku/internal/market/models"
	"meroku/pkg/domain"
	"meroku/pkg/platform/sentinel"
)

type key struct {
	ns domain.Namespace
	id domain.TokenID
}

// InMemory is a mutex-guarded listing map.
type InMemory struct {
	mu       sync.Mutex
	listings map[key]models.Listing
}

func NewInMemory() *InMemory {
	return &InMemory{listings: make(map[key]models.Listing)}
}

// Put stores a listing, overwriting any existing one for the same token.
func (s *InMemory) Put(ctx context.Context, l models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[key{l.Namespace, l.TokenID}] = l
	return nil
}

func (s *InMemory) Get(ctx context.Context, ns domain.Namespace, id domain.TokenID) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[key{ns, id}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &l, nil
}

// Delete removes a listing. Deleting an absent listing is a no-op.
func (s *InMemory) Delete(ctx context.Context, ns domain.Namespace, id domain.TokenID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listings, key{ns, id})
	return nil
}

// Clear implements the registry's listing invalidation hook. Any ownership
// change outside the purchase path destroys the token's listing.
func (s *InMemory) Clear(ctx context.Context, ns domain.Namespace, id domain.TokenID) error {
	return s.Delete(ctx, ns, id)
}

func (s *InMemory) ListByNamespace(ctx context.Context, ns domain.Namespace) ([]models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Listing, 0)
	for k, l := range s.listings {
		if k.ns == ns {
			out = append(out, l)
		}
	}
	return out, nil
}
