package recovery

import (
	"context"
	"sync"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
)

// InMemoryStore keeps recovery requests and guardian sets in process memory.
// Writers must run inside a tx.MemoryRunner transaction; the store's own
// mutex only protects map internals.
type InMemoryStore struct {
	mu        sync.RWMutex
	requests  map[id.RecoveryID]*models.RecoveryRequest
	guardians map[id.SoulID]*models.Guardians
	nextID    id.RecoveryID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests:  make(map[id.RecoveryID]*models.RecoveryRequest),
		guardians: make(map[id.SoulID]*models.Guardians),
	}
}

// CreateRequest assigns the request the next sequential id and inserts it.
func (s *InMemoryStore) CreateRequest(ctx context.Context, request *models.RecoveryRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	request.ID = s.nextID
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *InMemoryStore) FindRequest(ctx context.Context, requestID id.RecoveryID) (*models.RecoveryRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return request.Clone(), nil
}

// ExecuteRequest atomically validates and mutates one request under the store
// lock. Returns the updated request, or the validation error with nothing
// written.
func (s *InMemoryStore) ExecuteRequest(ctx context.Context, requestID id.RecoveryID, validate func(*models.RecoveryRequest) error, mutate func(*models.RecoveryRequest)) (*models.RecoveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(request); err != nil {
		return nil, err
	}
	mutate(request)
	return request.Clone(), nil
}

// FindGuardians returns the soul's guardian set, the empty default when the
// owner never configured one.
func (s *InMemoryStore) FindGuardians(ctx context.Context, soulID id.SoulID) (*models.Guardians, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.guardians[soulID]
	if !ok {
		return models.NewGuardians(soulID), nil
	}
	return set.Clone(), nil
}

// ExecuteGuardians atomically validates and mutates the soul's guardian set
// under the store lock, materializing the default set on first use. The set
// is persisted only when validation passes.
func (s *InMemoryStore) ExecuteGuardians(ctx context.Context, soulID id.SoulID, validate func(*models.Guardians) error, mutate func(*models.Guardians)) (*models.Guardians, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.guardians[soulID]
	if !ok {
		set = models.NewGuardians(soulID)
	}
	if err := validate(set); err != nil {
		return nil, err
	}
	mutate(set)
	s.guardians[soulID] = set
	return set.Clone(), nil
}
