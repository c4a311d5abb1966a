package trade

import (
	"context"
	"database/sql"
	"fmt"

	"soulledger/internal/market/models"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore persists the trade log in PostgreSQL. Writes go through the
// transaction carried in context by tx.PostgresRunner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append records a settled trade.
func (s *PostgresStore) Append(ctx context.Context, trade *models.Trade) error {
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO trades (soul_id, seller_address, buyer_address, price, fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		int64(trade.SoulID), trade.Seller.String(), trade.Buyer.String(),
		int64(trade.Price), int64(trade.Fee), trade.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Totals aggregates the full trade log.
func (s *PostgresStore) Totals(ctx context.Context) (*models.TradeTotals, error) {
	var (
		totals models.TradeTotals
		volume int64
		fees   int64
	)
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(price), 0), COALESCE(SUM(fee), 0) FROM trades`,
	).Scan(&totals.SalesCount, &volume, &fees)
	if err != nil {
		return nil, fmt.Errorf("aggregate trades: %w", err)
	}
	totals.Volume = uint64(volume)
	totals.FeesCollected = uint64(fees)
	return &totals, nil
}
