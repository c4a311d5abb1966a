package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore persists backup history and cross-chain records in
// PostgreSQL, keyed (soul_id, idx). All writes go through the transaction
// carried in context by tx.PostgresRunner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const backupColumns = `soul_id, idx, content_uri, content_hash, backup_type,
	capabilities_fingerprint, earnings_at_backup, created_at, is_valid`

const crossChainColumns = `soul_id, idx, target_chain_id, content_uri, content_hash, created_at, recovered`

// Append assigns backup the next index for its soul and inserts it. Index
// assignment is serialized with a transaction-scoped advisory lock per soul,
// so concurrent appends to one history cannot collide on (soul_id, idx).
func (s *PostgresStore) Append(ctx context.Context, backup *models.Backup) error {
	execer := txcontext.Execer(ctx, s.db)

	key := fmt.Sprintf("backups:%d", backup.SoulID)
	if _, err := execer.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire backup lock: %w", err)
	}

	err := execer.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx) + 1, 0) FROM backups WHERE soul_id = $1`,
		int64(backup.SoulID),
	).Scan(&backup.Index)
	if err != nil {
		return fmt.Errorf("next backup index: %w", err)
	}

	_, err = execer.ExecContext(ctx, `
		INSERT INTO backups (soul_id, idx, content_uri, content_hash, backup_type,
			capabilities_fingerprint, earnings_at_backup, created_at, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		int64(backup.SoulID), backup.Index, backup.ContentURI, backup.ContentHash.String(),
		backup.Type.String(), backup.CapabilitiesFingerprint, int64(backup.EarningsAtBackup),
		backup.CreatedAt, backup.IsValid,
	)
	if err != nil {
		return fmt.Errorf("insert backup: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, soulID id.SoulID, index int) (*models.Backup, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE soul_id = $1 AND idx = $2`,
		int64(soulID), index)
	return scanBackup(row)
}

func (s *PostgresStore) FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error) {
	return s.list(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE soul_id = $1 ORDER BY idx`,
		int64(soulID))
}

func (s *PostgresStore) FindValid(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error) {
	return s.list(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE soul_id = $1 AND is_valid ORDER BY idx`,
		int64(soulID))
}

func (s *PostgresStore) Latest(ctx context.Context, soulID id.SoulID) (*models.Backup, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE soul_id = $1 ORDER BY idx DESC LIMIT 1`,
		int64(soulID))
	return scanBackup(row)
}

func (s *PostgresStore) OldestValid(ctx context.Context, soulID id.SoulID) (*models.Backup, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE soul_id = $1 AND is_valid ORDER BY idx LIMIT 1`,
		int64(soulID))
	return scanBackup(row)
}

func (s *PostgresStore) CountValid(ctx context.Context, soulID id.SoulID) (int, error) {
	var valid int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backups WHERE soul_id = $1 AND is_valid`,
		int64(soulID),
	).Scan(&valid)
	if err != nil {
		return 0, fmt.Errorf("count valid backups: %w", err)
	}
	return valid, nil
}

// Execute locks the backup row FOR UPDATE, validates, mutates and writes back
// the validity column. Must run inside a transaction.
func (s *PostgresStore) Execute(ctx context.Context, soulID id.SoulID, index int, validate func(*models.Backup) error, mutate func(*models.Backup)) (*models.Backup, error) {
	execer := txcontext.Execer(ctx, s.db)

	row := execer.QueryRowContext(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE soul_id = $1 AND idx = $2 FOR UPDATE`,
		int64(soulID), index)
	backup, err := scanBackup(row)
	if err != nil {
		return nil, err
	}
	if err := validate(backup); err != nil {
		return nil, err
	}
	mutate(backup)

	_, err = execer.ExecContext(ctx, `
		UPDATE backups SET is_valid = $3
		WHERE soul_id = $1 AND idx = $2`,
		int64(soulID), index, backup.IsValid,
	)
	if err != nil {
		return nil, fmt.Errorf("update backup %d/%d: %w", soulID, index, err)
	}
	return backup, nil
}

// AppendCrossChain assigns record the next cross-chain index for its soul and
// inserts it, serialized by the same per-soul advisory lock scheme as Append.
func (s *PostgresStore) AppendCrossChain(ctx context.Context, record *models.CrossChainBackup) error {
	execer := txcontext.Execer(ctx, s.db)

	key := fmt.Sprintf("crosschain:%d", record.SoulID)
	if _, err := execer.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire cross-chain lock: %w", err)
	}

	err := execer.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx) + 1, 0) FROM crosschain_backups WHERE soul_id = $1`,
		int64(record.SoulID),
	).Scan(&record.Index)
	if err != nil {
		return fmt.Errorf("next cross-chain index: %w", err)
	}

	_, err = execer.ExecContext(ctx, `
		INSERT INTO crosschain_backups (soul_id, idx, target_chain_id, content_uri, content_hash, created_at, recovered)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		int64(record.SoulID), record.Index, int64(record.TargetChainID), record.ContentURI,
		record.ContentHash.String(), record.CreatedAt, record.Recovered,
	)
	if err != nil {
		return fmt.Errorf("insert cross-chain backup: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindCrossChain(ctx context.Context, soulID id.SoulID) ([]*models.CrossChainBackup, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+crossChainColumns+` FROM crosschain_backups WHERE soul_id = $1 ORDER BY idx`,
		int64(soulID))
	if err != nil {
		return nil, fmt.Errorf("list cross-chain backups: %w", err)
	}
	defer rows.Close()

	out := make([]*models.CrossChainBackup, 0)
	for rows.Next() {
		record, err := scanCrossChainRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Backup, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Backup, 0)
	for rows.Next() {
		backup, err := scanBackupRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, backup)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackup(row *sql.Row) (*models.Backup, error) {
	backup, err := scanBackupRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return backup, nil
}

func scanBackupRow(row rowScanner) (*models.Backup, error) {
	var (
		backup      models.Backup
		contentHash string
		backupType  string
		earnings    int64
	)
	err := row.Scan(&backup.SoulID, &backup.Index, &backup.ContentURI, &contentHash, &backupType,
		&backup.CapabilitiesFingerprint, &earnings, &backup.CreatedAt, &backup.IsValid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan backup: %w", err)
	}
	backup.ContentHash = id.ContentHash(contentHash)
	backup.Type = models.BackupType(backupType)
	backup.EarningsAtBackup = uint64(earnings)
	return &backup, nil
}

func scanCrossChainRow(row rowScanner) (*models.CrossChainBackup, error) {
	var (
		record      models.CrossChainBackup
		contentHash string
		chainID     int64
	)
	err := row.Scan(&record.SoulID, &record.Index, &chainID, &record.ContentURI,
		&contentHash, &record.CreatedAt, &record.Recovered)
	if err != nil {
		return nil, fmt.Errorf("scan cross-chain backup: %w", err)
	}
	record.ContentHash = id.ContentHash(contentHash)
	record.TargetChainID = uint64(chainID)
	return &record, nil
}
