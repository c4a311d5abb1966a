package graveyard

import (
	"context"
	"fmt"
	"sync"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
)

// InMemoryStore keeps graveyard entries in process memory, one per soul.
// Writers must run inside a tx.MemoryRunner transaction.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.SoulID]*models.GraveyardEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.SoulID]*models.GraveyardEntry)}
}

// CreateIfAbsent inserts the entry, enforcing at most one archive per soul.
func (s *InMemoryStore) CreateIfAbsent(ctx context.Context, entry *models.GraveyardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.SoulID]; ok {
		return fmt.Errorf("soul already archived: %w", sentinel.ErrConflict)
	}
	s.entries[entry.SoulID] = entry.Clone()
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, soulID id.SoulID) (*models.GraveyardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[soulID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return entry.Clone(), nil
}

// Execute atomically validates and mutates one entry under the store lock.
// Returns the updated entry, or the validation error with nothing written.
func (s *InMemoryStore) Execute(ctx context.Context, soulID id.SoulID, validate func(*models.GraveyardEntry) error, mutate func(*models.GraveyardEntry)) (*models.GraveyardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[soulID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(entry); err != nil {
		return nil, err
	}
	mutate(entry)
	return entry.Clone(), nil
}

// Count returns how many souls have been archived, resurrected or not.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}
