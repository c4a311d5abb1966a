package memory

import (
	"context"
	"sync"

	id "soulledger/pkg/domain"
	events "soulledger/pkg/platform/events"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	bySoul  map[id.SoulID][]events.Event
	ordered []events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySoul: make(map[id.SoulID][]events.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySoul = make(map[id.SoulID][]events.Event)
	s.ordered = nil
}

func (s *InMemoryStore) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !event.SoulID.IsNil() {
		s.bySoul[event.SoulID] = append(s.bySoul[event.SoulID], event)
	}
	s.ordered = append(s.ordered, event)
	return nil
}

func (s *InMemoryStore) ListBySoul(_ context.Context, soulID id.SoulID) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.bySoul[soulID]...), nil
}

// ListRecent returns the most recent N events in append order.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.ordered) - limit
	if start < 0 {
		start = 0
	}
	return append([]events.Event{}, s.ordered[start:]...), nil
}
