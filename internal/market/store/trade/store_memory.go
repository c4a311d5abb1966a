package trade

import (
	"context"
	"sync"

	"soulledger/internal/market/models"
)

// InMemoryStore keeps the trade log in process memory. Writers must run
// inside a tx.MemoryRunner transaction.
type InMemoryStore struct {
	mu     sync.RWMutex
	trades []*models.Trade
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append records a settled trade.
func (s *InMemoryStore) Append(ctx context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *trade
	s.trades = append(s.trades, &copied)
	return nil
}

// Totals aggregates the full trade log.
func (s *InMemoryStore) Totals(ctx context.Context) (*models.TradeTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := &models.TradeTotals{SalesCount: len(s.trades)}
	for _, trade := range s.trades {
		totals.Volume += trade.Price
		totals.FeesCollected += trade.Fee
	}
	return totals, nil
}
