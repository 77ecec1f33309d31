package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

type scopedKey struct {
	scope string
	key   string
}

// Store keeps replayable responses in memory. The first response saved for a
// key wins, matching the postgres store.
type Store struct {
	mu    sync.RWMutex
	items map[scopedKey]ports.StoredResponse
}

func NewStore() *Store {
	return &Store{items: make(map[scopedKey]ports.StoredResponse)}
}

// Get returns nil without error when nothing was stored for the key.
func (s *Store) Get(_ context.Context, scope, key string) (*ports.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[scopedKey{scope, key}]
	if !ok {
		return nil, nil
	}
	value.Body = slices.Clone(value.Body)
	return &value, nil
}

func (s *Store) Save(_ context.Context, scope, key string, response ports.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scopedKey{scope, key}
	if _, exists := s.items[k]; exists {
		return nil
	}
	response.Body = slices.Clone(response.Body)
	s.items[k] = response
	return nil
}
