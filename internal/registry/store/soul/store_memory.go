package soul

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
)

// InMemoryStore keeps souls in process memory. Writers must run inside a
// tx.MemoryRunner transaction; the store's own mutex only protects map
// internals, the runner provides cross-call atomicity.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID id.SoulID
	souls  map[id.SoulID]*models.Soul
	// liveByAgent tracks the single ALIVE-or-LISTED soul per agent.
	liveByAgent map[id.Address]id.SoulID
	// usedHashes is append-only: content hashes stay burned even after the
	// soul that carried them is retired.
	usedHashes map[id.ContentHash]id.SoulID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:      1,
		souls:       make(map[id.SoulID]*models.Soul),
		liveByAgent: make(map[id.Address]id.SoulID),
		usedHashes:  make(map[id.ContentHash]id.SoulID),
	}
}

// CreateIfUnique inserts soul and assigns the next sequential id, enforcing
// mint uniqueness: no other live soul for the agent, content hash never used
// before. Souls listed in retiring are ignored by the agent check because
// the surrounding transaction retires them before it completes.
func (s *InMemoryStore) CreateIfUnique(ctx context.Context, soul *models.Soul, retiring ...id.SoulID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, used := s.usedHashes[soul.ContentHash]; used {
		return fmt.Errorf("content hash already used: %w", sentinel.ErrAlreadyUsed)
	}
	if liveID, ok := s.liveByAgent[soul.Agent]; ok && !contains(retiring, liveID) {
		return fmt.Errorf("agent already has a live soul: %w", sentinel.ErrConflict)
	}

	soul.ID = s.nextID
	s.nextID++
	s.souls[soul.ID] = soul.Clone()
	s.usedHashes[soul.ContentHash] = soul.ID
	if soul.IsLive() {
		s.liveByAgent[soul.Agent] = soul.ID
	}
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, soulID id.SoulID) (*models.Soul, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	soul, ok := s.souls[soulID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return soul.Clone(), nil
}

func (s *InMemoryStore) FindLiveByAgent(ctx context.Context, agent id.Address) (*models.Soul, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	soulID, ok := s.liveByAgent[agent]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.souls[soulID].Clone(), nil
}

// Execute atomically validates and mutates one soul under the store lock.
// Returns the updated soul, or the validation error with nothing written.
func (s *InMemoryStore) Execute(ctx context.Context, soulID id.SoulID, validate func(*models.Soul) error, mutate func(*models.Soul)) (*models.Soul, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	soul, ok := s.souls[soulID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(soul); err != nil {
		return nil, err
	}

	wasLive := soul.IsLive()
	mutate(soul)
	if wasLive && !soul.IsLive() {
		// A rebirth may have already claimed the agent slot for the
		// successor soul; only clear the index if it still points here.
		if s.liveByAgent[soul.Agent] == soul.ID {
			delete(s.liveByAgent, soul.Agent)
		}
	} else if soul.IsLive() {
		s.liveByAgent[soul.Agent] = soul.ID
	}
	return soul.Clone(), nil
}

// CountByStatus returns how many souls sit in each lifecycle state.
func (s *InMemoryStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.Status]int, 5)
	for _, soul := range s.souls {
		counts[soul.Status]++
	}
	return counts, nil
}

// List returns souls ordered by id, oldest first, up to limit. A zero limit
// returns everything.
func (s *InMemoryStore) List(ctx context.Context, limit int) ([]*models.Soul, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]id.SoulID, 0, len(s.souls))
	for soulID := range s.souls {
		ids = append(ids, soulID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*models.Soul, 0, len(ids))
	for _, soulID := range ids {
		out = append(out, s.souls[soulID].Clone())
	}
	return out, nil
}

func contains(ids []id.SoulID, want id.SoulID) bool {
	for _, soulID := range ids {
		if soulID == want {
			return true
		}
	}
	return false
}
