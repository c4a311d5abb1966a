package account

import (
	"context"
	"sort"
	"sync"

	"soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/requestcontext"
)

// InMemoryStore keeps treasury accounts in process memory. Writers must run
// inside a tx.MemoryRunner transaction; the store's own mutex only protects
// map internals, the runner provides cross-call atomicity.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.Address]*models.Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[id.Address]*models.Account)}
}

func (s *InMemoryStore) Find(ctx context.Context, address id.Address) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return account.Clone(), nil
}

// ExecuteBatch atomically validates and mutates the accounts for addresses
// under the store lock. Missing accounts are materialized with zero balance
// but only persisted when validate passes, so a failed settlement writes
// nothing. The callbacks receive clones keyed by address; mutate's results
// replace the stored records.
func (s *InMemoryStore) ExecuteBatch(
	ctx context.Context,
	addresses []id.Address,
	validate func(accounts map[id.Address]*models.Account) error,
	mutate func(accounts map[id.Address]*models.Account),
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	working := make(map[id.Address]*models.Account, len(addresses))
	for _, address := range dedupeSorted(addresses) {
		if account, ok := s.accounts[address]; ok {
			working[address] = account.Clone()
			continue
		}
		account, err := models.NewAccount(address, now)
		if err != nil {
			return err
		}
		working[address] = account
	}

	if err := validate(working); err != nil {
		return err
	}
	mutate(working)

	for address, account := range working {
		s.accounts[address] = account
	}
	return nil
}

// Count returns how many accounts exist, frozen ones counted separately.
func (s *InMemoryStore) Count(ctx context.Context) (total, frozen int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		total++
		if account.Frozen {
			frozen++
		}
	}
	return total, frozen, nil
}

// dedupeSorted returns the unique addresses in lexical order, matching the
// postgres store's lock order.
func dedupeSorted(addresses []id.Address) []id.Address {
	seen := make(map[id.Address]bool, len(addresses))
	out := make([]id.Address, 0, len(addresses))
	for _, address := range addresses {
		if seen[address] {
			continue
		}
		seen[address] = true
		out = append(out, address)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
