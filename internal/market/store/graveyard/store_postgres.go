package graveyard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore persists graveyard entries in PostgreSQL. All writes go
// through the transaction carried in context by tx.PostgresRunner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const graveyardColumns = `soul_id, final_balance, resurrectable, archived_at`

// CreateIfAbsent inserts the entry; the primary key on soul_id enforces at
// most one archive per soul.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, entry *models.GraveyardEntry) error {
	result, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO graveyard (soul_id, final_balance, resurrectable, archived_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (soul_id) DO NOTHING`,
		int64(entry.SoulID), int64(entry.FinalBalance), entry.Resurrectable, entry.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert graveyard entry: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert graveyard entry: %w", err)
	}
	if inserted == 0 {
		return fmt.Errorf("soul already archived: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, soulID id.SoulID) (*models.GraveyardEntry, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+graveyardColumns+` FROM graveyard WHERE soul_id = $1`, int64(soulID))
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// Execute locks the entry row FOR UPDATE, validates, mutates and writes back
// the resurrectable flag. Must run inside a transaction.
func (s *PostgresStore) Execute(ctx context.Context, soulID id.SoulID, validate func(*models.GraveyardEntry) error, mutate func(*models.GraveyardEntry)) (*models.GraveyardEntry, error) {
	execer := txcontext.Execer(ctx, s.db)

	row := execer.QueryRowContext(ctx,
		`SELECT `+graveyardColumns+` FROM graveyard WHERE soul_id = $1 FOR UPDATE`, int64(soulID))
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	if err := validate(entry); err != nil {
		return nil, err
	}
	mutate(entry)

	_, err = execer.ExecContext(ctx,
		`UPDATE graveyard SET resurrectable = $2 WHERE soul_id = $1`,
		int64(soulID), entry.Resurrectable,
	)
	if err != nil {
		return nil, fmt.Errorf("update graveyard entry %d: %w", soulID, err)
	}
	return entry, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var archived int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM graveyard`,
	).Scan(&archived)
	if err != nil {
		return 0, fmt.Errorf("count graveyard entries: %w", err)
	}
	return archived, nil
}

func scanEntry(row *sql.Row) (*models.GraveyardEntry, error) {
	var (
		entry   models.GraveyardEntry
		balance int64
	)
	err := row.Scan(&entry.SoulID, &balance, &entry.Resurrectable, &entry.ArchivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan graveyard entry: %w", err)
	}
	entry.FinalBalance = uint64(balance)
	return &entry, nil
}
