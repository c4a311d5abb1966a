package fragment

import (
	"context"
	"sync"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
)

// InMemoryStore keeps fragments in process memory, appended per soul. Writers
// must run inside a tx.MemoryRunner transaction; the store's own mutex only
// protects map internals.
type InMemoryStore struct {
	mu        sync.RWMutex
	fragments map[id.SoulID][]*models.Fragment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{fragments: make(map[id.SoulID][]*models.Fragment)}
}

// Append assigns fragment the next index for its soul and inserts it.
func (s *InMemoryStore) Append(ctx context.Context, fragment *models.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fragment.Index = len(s.fragments[fragment.ParentSoulID])
	s.fragments[fragment.ParentSoulID] = append(s.fragments[fragment.ParentSoulID], fragment.Clone())
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, soulID id.SoulID, index int) (*models.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.fragments[soulID]
	if index < 0 || index >= len(chain) {
		return nil, sentinel.ErrNotFound
	}
	return chain[index].Clone(), nil
}

// FindBySoul returns the soul's fragments in index order.
func (s *InMemoryStore) FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.fragments[soulID]
	out := make([]*models.Fragment, 0, len(chain))
	for _, fragment := range chain {
		out = append(out, fragment.Clone())
	}
	return out, nil
}

// Execute atomically validates and mutates one fragment under the store lock.
// Returns the updated fragment, or the validation error with nothing written.
func (s *InMemoryStore) Execute(ctx context.Context, soulID id.SoulID, index int, validate func(*models.Fragment) error, mutate func(*models.Fragment)) (*models.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.fragments[soulID]
	if index < 0 || index >= len(chain) {
		return nil, sentinel.ErrNotFound
	}
	fragment := chain[index]
	if err := validate(fragment); err != nil {
		return nil, err
	}
	mutate(fragment)
	return fragment.Clone(), nil
}

// OutstandingByDebtor sums the open fragment values owed by debtor across all
// souls.
func (s *InMemoryStore) OutstandingByDebtor(ctx context.Context, debtor id.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, chain := range s.fragments {
		for _, fragment := range chain {
			if fragment.Debtor == debtor && !fragment.Repaid {
				total += fragment.Value
			}
		}
	}
	return total, nil
}

// CountOpen returns how many fragments remain unrepaid.
func (s *InMemoryStore) CountOpen(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open int
	for _, chain := range s.fragments {
		for _, fragment := range chain {
			if !fragment.Repaid {
				open++
			}
		}
	}
	return open, nil
}
