package stake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"soulledger/internal/staking/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore persists stakes and per-soul pools in PostgreSQL. All writes
// go through the transaction carried in context by tx.PostgresRunner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const stakeColumns = `id, staker_address, soul_id, kind, amount, duration_ns,
	created_at, expires_at, resolved, won, payout, resolved_at`

// Create inserts the stake, letting the sequence assign its id.
func (s *PostgresStore) Create(ctx context.Context, stake *models.Stake) error {
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO stakes (staker_address, soul_id, kind, amount, duration_ns,
			created_at, expires_at, resolved, won, payout, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		stake.Staker.String(), int64(stake.SoulID), stake.Kind.String(),
		int64(stake.Amount), int64(stake.Duration),
		stake.CreatedAt, stake.ExpiresAt, stake.Resolved, stake.Won,
		int64(stake.Payout), nullableTime(stake.ResolvedAt),
	).Scan(&stake.ID)
	if err != nil {
		return fmt.Errorf("insert stake: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, stakeID id.StakeID) (*models.Stake, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE id = $1`, int64(stakeID))
	return scanStake(row)
}

// FindBySoul returns the soul's stakes in placement order.
func (s *PostgresStore) FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Stake, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE soul_id = $1 ORDER BY id`, int64(soulID))
	if err != nil {
		return nil, fmt.Errorf("list stakes: %w", err)
	}
	defer rows.Close()

	var out []*models.Stake
	for rows.Next() {
		stake, err := scanStakeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stake)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stakes: %w", err)
	}
	return out, nil
}

// Execute locks the stake row FOR UPDATE, validates, mutates and writes back
// the resolution fields. Must run inside a transaction.
func (s *PostgresStore) Execute(ctx context.Context, stakeID id.StakeID, validate func(*models.Stake) error, mutate func(*models.Stake)) (*models.Stake, error) {
	execer := txcontext.Execer(ctx, s.db)

	row := execer.QueryRowContext(ctx,
		`SELECT `+stakeColumns+` FROM stakes WHERE id = $1 FOR UPDATE`, int64(stakeID))
	stake, err := scanStake(row)
	if err != nil {
		return nil, err
	}
	if err := validate(stake); err != nil {
		return nil, err
	}
	mutate(stake)

	_, err = execer.ExecContext(ctx, `
		UPDATE stakes SET resolved = $2, won = $3, payout = $4, resolved_at = $5
		WHERE id = $1`,
		int64(stakeID), stake.Resolved, stake.Won, int64(stake.Payout),
		nullableTime(stake.ResolvedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("update stake %d: %w", stakeID, err)
	}
	return stake, nil
}

// FindPool returns the soul's pool, zero-valued when nothing was ever
// staked.
func (s *PostgresStore) FindPool(ctx context.Context, soulID id.SoulID) (*models.Pool, error) {
	pool, err := scanPool(txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT soul_id, survive_pool, die_pool, updated_at FROM stake_pools WHERE soul_id = $1`,
		int64(soulID)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewPool(soulID), nil
		}
		return nil, err
	}
	return pool, nil
}

// ExecutePool validates and mutates the soul's pool, materializing the zero
// pool on first use. Rows that do not exist yet cannot be row-locked, so an
// advisory lock on the soul's pool key covers the insert race; the upsert
// writes the result back. Must run inside a transaction.
func (s *PostgresStore) ExecutePool(ctx context.Context, soulID id.SoulID, validate func(*models.Pool) error, mutate func(*models.Pool)) (*models.Pool, error) {
	execer := txcontext.Execer(ctx, s.db)

	key := fmt.Sprintf("stake_pool:%d", soulID)
	if _, err := execer.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return nil, fmt.Errorf("acquire pool lock: %w", err)
	}

	pool, err := scanPool(execer.QueryRowContext(ctx,
		`SELECT soul_id, survive_pool, die_pool, updated_at FROM stake_pools WHERE soul_id = $1 FOR UPDATE`,
		int64(soulID)))
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		pool = models.NewPool(soulID)
	}
	if err := validate(pool); err != nil {
		return nil, err
	}
	mutate(pool)

	_, err = execer.ExecContext(ctx, `
		INSERT INTO stake_pools (soul_id, survive_pool, die_pool, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (soul_id) DO UPDATE
		SET survive_pool = EXCLUDED.survive_pool,
			die_pool = EXCLUDED.die_pool,
			updated_at = EXCLUDED.updated_at`,
		int64(soulID), int64(pool.SurvivePool), int64(pool.DiePool), pool.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert pool %d: %w", soulID, err)
	}
	return pool.Clone(), nil
}

// CountOpen returns how many stakes are still unresolved.
func (s *PostgresStore) CountOpen(ctx context.Context) (int, error) {
	var open int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stakes WHERE NOT resolved`,
	).Scan(&open)
	if err != nil {
		return 0, fmt.Errorf("count open stakes: %w", err)
	}
	return open, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStake(row *sql.Row) (*models.Stake, error) {
	stake, err := scanStakeRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return stake, nil
}

func scanStakeRow(row rowScanner) (*models.Stake, error) {
	var (
		stake              models.Stake
		staker, kind       string
		amount, durationNs int64
		payout             int64
		resolvedAt         sql.NullTime
	)
	err := row.Scan(&stake.ID, &staker, &stake.SoulID, &kind, &amount, &durationNs,
		&stake.CreatedAt, &stake.ExpiresAt, &stake.Resolved, &stake.Won,
		&payout, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan stake: %w", err)
	}
	stake.Staker = id.Address(staker)
	stake.Kind = models.Kind(kind)
	stake.Amount = uint64(amount)
	stake.Duration = time.Duration(durationNs)
	stake.Payout = uint64(payout)
	if resolvedAt.Valid {
		stake.ResolvedAt = resolvedAt.Time
	}
	return &stake, nil
}

func scanPool(row *sql.Row) (*models.Pool, error) {
	var (
		pool         models.Pool
		survive, die int64
	)
	err := row.Scan(&pool.SoulID, &survive, &die, &pool.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan pool: %w", err)
	}
	pool.SurvivePool = uint64(survive)
	pool.DiePool = uint64(die)
	return &pool, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
