package lineage

import (
	"context"
	"sync"

	id "soulledger/pkg/domain"
)

// InMemoryStore keeps the family tree in process memory. Edges are
// append-only; a soul gains children on rebirth (one) and merge (the merged
// soul has two parents).
type InMemoryStore struct {
	mu       sync.RWMutex
	children map[id.SoulID][]id.SoulID
	parents  map[id.SoulID][]id.SoulID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		children: make(map[id.SoulID][]id.SoulID),
		parents:  make(map[id.SoulID][]id.SoulID),
	}
}

func (s *InMemoryStore) Append(ctx context.Context, parent, child id.SoulID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.children[parent] = append(s.children[parent], child)
	s.parents[child] = append(s.parents[child], parent)
	return nil
}

func (s *InMemoryStore) Children(ctx context.Context, parent id.SoulID) ([]id.SoulID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.SoulID{}, s.children[parent]...), nil
}

func (s *InMemoryStore) Parents(ctx context.Context, child id.SoulID) ([]id.SoulID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.SoulID{}, s.parents[child]...), nil
}
