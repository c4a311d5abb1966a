package stake

import (
	"context"
	"sync"

	"soulledger/internal/staking/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
)

// InMemoryStore keeps stakes and per-soul pools in process memory. Writers
// must run inside a tx.MemoryRunner transaction; the store's own mutex only
// protects map internals.
type InMemoryStore struct {
	mu     sync.RWMutex
	stakes map[id.StakeID]*models.Stake
	bySoul map[id.SoulID][]id.StakeID
	pools  map[id.SoulID]*models.Pool
	nextID id.StakeID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		stakes: make(map[id.StakeID]*models.Stake),
		bySoul: make(map[id.SoulID][]id.StakeID),
		pools:  make(map[id.SoulID]*models.Pool),
	}
}

// Create assigns the stake the next sequential id and inserts it.
func (s *InMemoryStore) Create(ctx context.Context, stake *models.Stake) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stake.ID = s.nextID
	s.stakes[stake.ID] = stake.Clone()
	s.bySoul[stake.SoulID] = append(s.bySoul[stake.SoulID], stake.ID)
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, stakeID id.StakeID) (*models.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stake, ok := s.stakes[stakeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return stake.Clone(), nil
}

// FindBySoul returns the soul's stakes in placement order.
func (s *InMemoryStore) FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bySoul[soulID]
	out := make([]*models.Stake, 0, len(ids))
	for _, stakeID := range ids {
		out = append(out, s.stakes[stakeID].Clone())
	}
	return out, nil
}

// Execute atomically validates and mutates one stake under the store lock.
// Returns the updated stake, or the validation error with nothing written.
func (s *InMemoryStore) Execute(ctx context.Context, stakeID id.StakeID, validate func(*models.Stake) error, mutate func(*models.Stake)) (*models.Stake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stake, ok := s.stakes[stakeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(stake); err != nil {
		return nil, err
	}
	mutate(stake)
	return stake.Clone(), nil
}

// FindPool returns the soul's pool, zero-valued when nothing was ever
// staked.
func (s *InMemoryStore) FindPool(ctx context.Context, soulID id.SoulID) (*models.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools[soulID]
	if !ok {
		return models.NewPool(soulID), nil
	}
	return pool.Clone(), nil
}

// ExecutePool atomically validates and mutates the soul's pool under the
// store lock, materializing the zero pool on first use. The pool is
// persisted only when validation passes.
func (s *InMemoryStore) ExecutePool(ctx context.Context, soulID id.SoulID, validate func(*models.Pool) error, mutate func(*models.Pool)) (*models.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, ok := s.pools[soulID]
	if !ok {
		pool = models.NewPool(soulID)
	}
	if err := validate(pool); err != nil {
		return nil, err
	}
	mutate(pool)
	s.pools[soulID] = pool
	return pool.Clone(), nil
}

// CountOpen returns how many stakes are still unresolved.
func (s *InMemoryStore) CountOpen(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := 0
	for _, stake := range s.stakes {
		if !stake.Resolved {
			open++
		}
	}
	return open, nil
}
