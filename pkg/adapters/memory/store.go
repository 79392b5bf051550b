package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/wharf/pkg/domain"
)

// Store implements ports.RegistrationStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Registration
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Registration),
	}
}

// Save records the registration.
func (s *Store) Save(ctx context.Context, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[reg.URI] = reg
	return nil
}

// Load retrieves the registration for uri.
func (s *Store) Load(ctx context.Context, uri string) (domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.data[uri]
	if !ok {
		return domain.Registration{}, domain.ErrNotRegistered
	}
	return reg, nil
}

// Delete removes the registration for uri.
func (s *Store) Delete(ctx context.Context, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, uri)
	return nil
}

// List returns all registrations sorted by URI.
func (s *Store) List(ctx context.Context) ([]domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Registration, 0, len(s.data))
	for _, reg := range s.data {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out, nil
}
