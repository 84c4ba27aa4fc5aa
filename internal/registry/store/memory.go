// Package store persists identity records for one namespace ledger.
//
// Stores enforce the factual invariants (name uniqueness, holder cardinality,
// record existence) and report violations as sentinel errors; the service
// translates them into domain errors. All mutating entry points are atomic:
// callbacks run on a copy under the store lock and commit only on success, so
// a failed validation or payment leaves no partial state.
package store

import (
	"context"
	"sync"

	"meroku/internal/names"
	"meroku/internal/registry/models"
	"meroku/pkg/domain"
	"meroku/pkg/platform/sentinel"
)

// InMemory serializes all operations for a namespace under one mutex,
// mirroring the single-writer execution model of the chain.
type InMemory struct {
	mu       sync.Mutex
	nextID   domain.TokenID
	byID     map[domain.TokenID]*models.Identity
	byName   map[string]domain.TokenID
	byHolder map[domain.Address]map[domain.TokenID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		nextID:   1,
		byID:     make(map[domain.TokenID]*models.Identity),
		byName:   make(map[string]domain.TokenID),
		byHolder: make(map[domain.Address]map[domain.TokenID]struct{}),
	}
}

// Create inserts a new identity, allocating the next sequential token id.
// Returns sentinel.ErrAlreadyUsed when the name is taken and
// sentinel.ErrConflict when singleHolder is set and the holder already has a
// live identity. fn, when non-nil, runs after the uniqueness checks and
// before the insert commits, in the same critical section; its error aborts
// the create with no record stored. Payment collection goes there.
func (s *InMemory) Create(ctx context.Context, ident *models.Identity, singleHolder bool, fn func() error) (domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := names.Fold(ident.Name)
	if _, ok := s.byName[key]; ok {
		return 0, sentinel.ErrAlreadyUsed
	}
	if singleHolder && len(s.byHolder[ident.Holder]) > 0 {
		return 0, sentinel.ErrConflict
	}
	if fn != nil {
		if err := fn(); err != nil {
			return 0, err
		}
	}

	id := s.nextID
	s.nextID++

	stored := *ident
	stored.TokenID = id
	s.byID[id] = &stored
	s.byName[key] = id
	if s.byHolder[stored.Holder] == nil {
		s.byHolder[stored.Holder] = make(map[domain.TokenID]struct{})
	}
	s.byHolder[stored.Holder][id] = struct{}{}

	ident.TokenID = id
	return id, nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.TokenID) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id)
}

func (s *InMemory) FindByName(ctx context.Context, name string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[names.Fold(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.find(id)
}

func (s *InMemory) CountByHolder(ctx context.Context, holder domain.Address) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHolder[holder]), nil
}

// Execute atomically validates and mutates one identity. fn runs on a copy
// under the store lock; the copy is committed only when fn returns nil. fn
// must not change the holder; use ExecuteHolderChange for ownership moves.
func (s *InMemory) Execute(ctx context.Context, id domain.TokenID, fn func(*models.Identity) error) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.find(id)
	if err != nil {
		return nil, err
	}
	work := *current
	if err := fn(&work); err != nil {
		return nil, err
	}
	work.Holder = current.Holder
	s.byID[id] = &work
	result := work
	return &result, nil
}

// ExecuteHolderChange atomically moves a token to a new holder. When
// singleHolder is set and the recipient already holds a live identity it fails
// with sentinel.ErrConflict before fn runs. fn runs on a copy with the
// pre-move holder visible, so it can authorize the caller and route payment to
// the seller; on success the store reassigns the holder and updates its
// indexes in the same critical section.
func (s *InMemory) ExecuteHolderChange(ctx context.Context, id domain.TokenID, to domain.Address, singleHolder bool, fn func(*models.Identity) error) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if singleHolder && to != current.Holder && len(s.byHolder[to]) > 0 {
		return nil, sentinel.ErrConflict
	}

	work := *current
	if err := fn(&work); err != nil {
		return nil, err
	}

	from := current.Holder
	work.Holder = to
	s.byID[id] = &work
	delete(s.byHolder[from], id)
	if len(s.byHolder[from]) == 0 {
		delete(s.byHolder, from)
	}
	if s.byHolder[to] == nil {
		s.byHolder[to] = make(map[domain.TokenID]struct{})
	}
	s.byHolder[to][id] = struct{}{}

	result := work
	return &result, nil
}

func (s *InMemory) find(id domain.TokenID) (*models.Identity, error) {
	ident, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *ident
	return &out, nil
}
