package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore persists recovery requests and guardian sets in PostgreSQL.
// Approvals and guardian lists are TEXT[] columns; the sets are small and
// read whole. All writes go through the transaction carried in context by
// tx.PostgresRunner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, soul_id, backup_idx, requester_address, approvals,
	approved, executed, created_at, executed_at`

// CreateRequest inserts the request, letting the sequence assign its id.
func (s *PostgresStore) CreateRequest(ctx context.Context, request *models.RecoveryRequest) error {
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO recovery_requests (soul_id, backup_idx, requester_address, approvals,
			approved, executed, created_at, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		int64(request.SoulID), request.BackupIndex, request.Requester.String(),
		pq.Array(toStrings(request.Approvals)), request.Approved, request.Executed,
		request.CreatedAt, nullableTime(request.ExecutedAt),
	).Scan(&request.ID)
	if err != nil {
		return fmt.Errorf("insert recovery request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, requestID id.RecoveryID) (*models.RecoveryRequest, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM recovery_requests WHERE id = $1`, int64(requestID))
	return scanRequest(row)
}

// ExecuteRequest locks the request row FOR UPDATE, validates, mutates and
// writes back the approval and execution columns. Must run inside a
// transaction.
func (s *PostgresStore) ExecuteRequest(ctx context.Context, requestID id.RecoveryID, validate func(*models.RecoveryRequest) error, mutate func(*models.RecoveryRequest)) (*models.RecoveryRequest, error) {
	execer := txcontext.Execer(ctx, s.db)

	row := execer.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM recovery_requests WHERE id = $1 FOR UPDATE`, int64(requestID))
	request, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	if err := validate(request); err != nil {
		return nil, err
	}
	mutate(request)

	_, err = execer.ExecContext(ctx, `
		UPDATE recovery_requests SET approvals = $2, approved = $3, executed = $4, executed_at = $5
		WHERE id = $1`,
		int64(requestID), pq.Array(toStrings(request.Approvals)), request.Approved,
		request.Executed, nullableTime(request.ExecutedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("update recovery request %d: %w", requestID, err)
	}
	return request, nil
}

// FindGuardians returns the soul's guardian set, the empty default when the
// owner never configured one.
func (s *PostgresStore) FindGuardians(ctx context.Context, soulID id.SoulID) (*models.Guardians, error) {
	set, err := scanGuardians(txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT soul_id, guardians, threshold, backuppers FROM guardian_sets WHERE soul_id = $1`,
		int64(soulID)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewGuardians(soulID), nil
		}
		return nil, err
	}
	return set, nil
}

// ExecuteGuardians validates and mutates the soul's guardian set,
// materializing the default on first use. Rows that do not exist yet cannot
// be row-locked, so an advisory lock on the soul's guardian key covers the
// insert race; the upsert writes the result back. Must run inside a
// transaction.
func (s *PostgresStore) ExecuteGuardians(ctx context.Context, soulID id.SoulID, validate func(*models.Guardians) error, mutate func(*models.Guardians)) (*models.Guardians, error) {
	execer := txcontext.Execer(ctx, s.db)

	key := fmt.Sprintf("guardians:%d", soulID)
	if _, err := execer.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return nil, fmt.Errorf("acquire guardian lock: %w", err)
	}

	set, err := scanGuardians(execer.QueryRowContext(ctx,
		`SELECT soul_id, guardians, threshold, backuppers FROM guardian_sets WHERE soul_id = $1 FOR UPDATE`,
		int64(soulID)))
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		set = models.NewGuardians(soulID)
	}
	if err := validate(set); err != nil {
		return nil, err
	}
	mutate(set)

	_, err = execer.ExecContext(ctx, `
		INSERT INTO guardian_sets (soul_id, guardians, threshold, backuppers)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (soul_id) DO UPDATE
		SET guardians = EXCLUDED.guardians,
			threshold = EXCLUDED.threshold,
			backuppers = EXCLUDED.backuppers`,
		int64(soulID), pq.Array(toStrings(set.Guardians)), set.Threshold,
		pq.Array(toStrings(set.Backuppers)),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert guardian set %d: %w", soulID, err)
	}
	return set.Clone(), nil
}

func scanRequest(row *sql.Row) (*models.RecoveryRequest, error) {
	var (
		request    models.RecoveryRequest
		requester  string
		approvals  []string
		executedAt sql.NullTime
	)
	err := row.Scan(&request.ID, &request.SoulID, &request.BackupIndex, &requester,
		pq.Array(&approvals), &request.Approved, &request.Executed,
		&request.CreatedAt, &executedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan recovery request: %w", err)
	}
	request.Requester = id.Address(requester)
	request.Approvals = toAddresses(approvals)
	if executedAt.Valid {
		request.ExecutedAt = executedAt.Time
	}
	return &request, nil
}

func scanGuardians(row *sql.Row) (*models.Guardians, error) {
	var (
		set        models.Guardians
		guardians  []string
		backuppers []string
	)
	err := row.Scan(&set.SoulID, pq.Array(&guardians), &set.Threshold, pq.Array(&backuppers))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan guardian set: %w", err)
	}
	set.Guardians = toAddresses(guardians)
	set.Backuppers = toAddresses(backuppers)
	return &set, nil
}

func toStrings(addresses []id.Address) []string {
	out := make([]string, len(addresses))
	for i, a := range addresses {
		out[i] = a.String()
	}
	return out
}

func toAddresses(raw []string) []id.Address {
	if len(raw) == 0 {
		return nil
	}
	out := make([]id.Address, len(raw))
	for i, s := range raw {
		out[i] = id.Address(s)
	}
	return out
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
