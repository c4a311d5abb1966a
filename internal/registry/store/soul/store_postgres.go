package soul

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore persists souls in PostgreSQL. All writes go through the
// transaction carried in context by tx.PostgresRunner; Execute locks the row
// with SELECT ... FOR UPDATE for the validate+mutate window.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const soulColumns = `id, owner_address, agent_address, creator_address, content_uri, content_hash,
	status, listing_price, birth_time, death_time, death_cause, final_balance,
	total_earnings, work_count, updated_at`

// CreateIfUnique inserts the soul and assigns its sequential id. Mint
// uniqueness is serialized with transaction-scoped advisory locks on the
// agent address and content hash, so the pre-checks below are authoritative;
// the unique constraint on content_hash remains as a backstop for callers
// outside a transaction.
func (s *PostgresStore) CreateIfUnique(ctx context.Context, soul *models.Soul, retiring ...id.SoulID) error {
	execer := txcontext.Execer(ctx, s.db)

	for _, key := range []string{"soul:agent:" + soul.Agent.String(), "soul:hash:" + soul.ContentHash.String()} {
		if _, err := execer.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("acquire mint lock: %w", err)
		}
	}

	var exists bool
	err := execer.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM souls WHERE content_hash = $1)`,
		soul.ContentHash.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check content hash: %w", err)
	}
	if exists {
		return fmt.Errorf("content hash already used: %w", sentinel.ErrAlreadyUsed)
	}

	err = execer.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM souls
			WHERE agent_address = $1 AND status IN ('ALIVE', 'LISTED') AND NOT (id = ANY($2))
		)`,
		soul.Agent.String(), pq.Array(toInt64IDs(retiring)),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check live agent: %w", err)
	}
	if exists {
		return fmt.Errorf("agent already has a live soul: %w", sentinel.ErrConflict)
	}

	err = execer.QueryRowContext(ctx, `
		INSERT INTO souls (owner_address, agent_address, creator_address, content_uri, content_hash,
			status, listing_price, birth_time, death_time, death_cause, final_balance,
			total_earnings, work_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		soul.Owner.String(), soul.Agent.String(), soul.Creator.String(),
		soul.ContentURI, soul.ContentHash.String(),
		soul.Status.String(), int64(soul.ListingPrice), soul.BirthTime,
		nullableTime(soul.DeathTime), soul.DeathCause, int64(soul.FinalBalance),
		int64(soul.TotalEarnings), int64(soul.WorkCount), soul.UpdatedAt,
	).Scan(&soul.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("content hash already used: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert soul: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, soulID id.SoulID) (*models.Soul, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+soulColumns+` FROM souls WHERE id = $1`, int64(soulID))
	return scanSoul(row)
}

func (s *PostgresStore) FindLiveByAgent(ctx context.Context, agent id.Address) (*models.Soul, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+soulColumns+` FROM souls
		 WHERE agent_address = $1 AND status IN ('ALIVE', 'LISTED')
		 ORDER BY id DESC LIMIT 1`, agent.String())
	return scanSoul(row)
}

// Execute locks the soul row FOR UPDATE, validates, mutates and writes back
// every mutable column. Must run inside a transaction or the row lock ends
// with the statement instead of the operation.
func (s *PostgresStore) Execute(ctx context.Context, soulID id.SoulID, validate func(*models.Soul) error, mutate func(*models.Soul)) (*models.Soul, error) {
	execer := txcontext.Execer(ctx, s.db)

	row := execer.QueryRowContext(ctx,
		`SELECT `+soulColumns+` FROM souls WHERE id = $1 FOR UPDATE`, int64(soulID))
	soul, err := scanSoul(row)
	if err != nil {
		return nil, err
	}
	if err := validate(soul); err != nil {
		return nil, err
	}
	mutate(soul)

	_, err = execer.ExecContext(ctx, `
		UPDATE souls
		SET owner_address = $2, status = $3, listing_price = $4, death_time = $5,
			death_cause = $6, final_balance = $7, total_earnings = $8,
			work_count = $9, updated_at = $10
		WHERE id = $1`,
		int64(soul.ID), soul.Owner.String(), soul.Status.String(), int64(soul.ListingPrice),
		nullableTime(soul.DeathTime), soul.DeathCause, int64(soul.FinalBalance),
		int64(soul.TotalEarnings), int64(soul.WorkCount), soul.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update soul %d: %w", soulID, err)
	}
	return soul, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM souls GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count souls: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int, 5)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan soul count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.Soul, error) {
	query := `SELECT ` + soulColumns + ` FROM souls ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list souls: %w", err)
	}
	defer rows.Close()

	var out []*models.Soul
	for rows.Next() {
		soul, err := scanSoulRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, soul)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSoul(row *sql.Row) (*models.Soul, error) {
	soul, err := scanSoulRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return soul, nil
}

func scanSoulRow(row rowScanner) (*models.Soul, error) {
	var (
		soul                                               models.Soul
		owner, agent, creator, contentHash, status         string
		listingPrice, finalBalance, totalEarnings, workCnt int64
		deathTime                                          sql.NullTime
	)
	err := row.Scan(&soul.ID, &owner, &agent, &creator, &soul.ContentURI, &contentHash,
		&status, &listingPrice, &soul.BirthTime, &deathTime, &soul.DeathCause,
		&finalBalance, &totalEarnings, &workCnt, &soul.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan soul: %w", err)
	}
	soul.Owner = id.Address(owner)
	soul.Agent = id.Address(agent)
	soul.Creator = id.Address(creator)
	soul.ContentHash = id.ContentHash(contentHash)
	soul.Status = models.Status(status)
	soul.ListingPrice = uint64(listingPrice)
	soul.FinalBalance = uint64(finalBalance)
	soul.TotalEarnings = uint64(totalEarnings)
	soul.WorkCount = uint64(workCnt)
	if deathTime.Valid {
		soul.DeathTime = deathTime.Time
	}
	return &soul, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func toInt64IDs(ids []id.SoulID) []int64 {
	out := make([]int64, len(ids))
	for i, soulID := range ids {
		out[i] = int64(soulID)
	}
	return out
}
