package backup

import (
	"context"
	"sync"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
)

// InMemoryStore keeps backup history and cross-chain records in process
// memory, appended per soul. Writers must run inside a tx.MemoryRunner
// transaction; the store's own mutex only protects map internals.
type InMemoryStore struct {
	mu         sync.RWMutex
	backups    map[id.SoulID][]*models.Backup
	crossChain map[id.SoulID][]*models.CrossChainBackup
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		backups:    make(map[id.SoulID][]*models.Backup),
		crossChain: make(map[id.SoulID][]*models.CrossChainBackup),
	}
}

// Append assigns backup the next index for its soul and inserts it.
func (s *InMemoryStore) Append(ctx context.Context, backup *models.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup.Index = len(s.backups[backup.SoulID])
	s.backups[backup.SoulID] = append(s.backups[backup.SoulID], backup.Clone())
	return nil
}

func (s *InMemoryStore) Find(ctx context.Context, soulID id.SoulID, index int) (*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.backups[soulID]
	if index < 0 || index >= len(history) {
		return nil, sentinel.ErrNotFound
	}
	return history[index].Clone(), nil
}

// FindBySoul returns the soul's full history in index order, invalidated
// entries included.
func (s *InMemoryStore) FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.backups[soulID]
	out := make([]*models.Backup, 0, len(history))
	for _, backup := range history {
		out = append(out, backup.Clone())
	}
	return out, nil
}

// FindValid returns the soul's recovery candidates in index order.
func (s *InMemoryStore) FindValid(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Backup
	for _, backup := range s.backups[soulID] {
		if backup.IsValid {
			out = append(out, backup.Clone())
		}
	}
	return out, nil
}

// Latest returns the soul's newest entry regardless of validity.
func (s *InMemoryStore) Latest(ctx context.Context, soulID id.SoulID) (*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.backups[soulID]
	if len(history) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return history[len(history)-1].Clone(), nil
}

// OldestValid returns the soul's oldest recovery candidate.
func (s *InMemoryStore) OldestValid(ctx context.Context, soulID id.SoulID) (*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, backup := range s.backups[soulID] {
		if backup.IsValid {
			return backup.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// CountValid returns how many recovery candidates the soul has.
func (s *InMemoryStore) CountValid(ctx context.Context, soulID id.SoulID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	valid := 0
	for _, backup := range s.backups[soulID] {
		if backup.IsValid {
			valid++
		}
	}
	return valid, nil
}

// Execute atomically validates and mutates one backup under the store lock.
// Returns the updated backup, or the validation error with nothing written.
func (s *InMemoryStore) Execute(ctx context.Context, soulID id.SoulID, index int, validate func(*models.Backup) error, mutate func(*models.Backup)) (*models.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.backups[soulID]
	if index < 0 || index >= len(history) {
		return nil, sentinel.ErrNotFound
	}
	backup := history[index]
	if err := validate(backup); err != nil {
		return nil, err
	}
	mutate(backup)
	return backup.Clone(), nil
}

// AppendCrossChain assigns record the next cross-chain index for its soul and
// inserts it.
func (s *InMemoryStore) AppendCrossChain(ctx context.Context, record *models.CrossChainBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Index = len(s.crossChain[record.SoulID])
	s.crossChain[record.SoulID] = append(s.crossChain[record.SoulID], record.Clone())
	return nil
}

// FindCrossChain returns the soul's cross-chain records in index order.
func (s *InMemoryStore) FindCrossChain(ctx context.Context, soulID id.SoulID) ([]*models.CrossChainBackup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.crossChain[soulID]
	out := make([]*models.CrossChainBackup, 0, len(records))
	for _, record := range records {
		out = append(out, record.Clone())
	}
	return out, nil
}
