package reserved

import (
	"context"
	"sort"
	"sync"

	"meroku/pkg/platform/sentinel"
)

// InMemory implements Store and WatermarkStore with mutex-guarded maps.
type InMemory struct {
	mu         sync.RWMutex
	set        map[string]struct{}
	watermarks map[string]int
}

func NewInMemory() *InMemory {
	return &InMemory{
		set:        make(map[string]struct{}),
		watermarks: make(map[string]int),
	}
}

func (s *InMemory) Add(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[name]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.set[name] = struct{}{}
	return nil
}

func (s *InMemory) Contains(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[name]
	return ok, nil
}

func (s *InMemory) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.set))
	for name := range s.set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemory) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set), nil
}

func (s *InMemory) Watermark(ctx context.Context, source string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watermarks[source], nil
}

func (s *InMemory) SetWatermark(ctx context.Context, source string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[source] = index
	return nil
}
