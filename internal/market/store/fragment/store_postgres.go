package fragment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore persists fragments in PostgreSQL, keyed (soul_id, idx). All
// writes go through the transaction carried in context by tx.PostgresRunner.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const fragmentColumns = `soul_id, idx, skill_tag, value, debtor_address, repaid, created_at, repaid_at`

// Append assigns fragment the next index for its soul and inserts it. Index
// assignment is serialized with a transaction-scoped advisory lock per soul,
// so concurrent appends to one chain cannot collide on (soul_id, idx).
func (s *PostgresStore) Append(ctx context.Context, fragment *models.Fragment) error {
	execer := txcontext.Execer(ctx, s.db)

	key := fmt.Sprintf("fragments:%d", fragment.ParentSoulID)
	if _, err := execer.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire fragment lock: %w", err)
	}

	err := execer.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx) + 1, 0) FROM fragments WHERE soul_id = $1`,
		int64(fragment.ParentSoulID),
	).Scan(&fragment.Index)
	if err != nil {
		return fmt.Errorf("next fragment index: %w", err)
	}

	_, err = execer.ExecContext(ctx, `
		INSERT INTO fragments (soul_id, idx, skill_tag, value, debtor_address, repaid, created_at, repaid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		int64(fragment.ParentSoulID), fragment.Index, fragment.SkillTag, int64(fragment.Value),
		fragment.Debtor.String(), fragment.Repaid, fragment.CreatedAt, nullableTime(fragment.RepaidAt),
	)
	if err != nil {
		return fmt.Errorf("insert fragment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, soulID id.SoulID, index int) (*models.Fragment, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE soul_id = $1 AND idx = $2`,
		int64(soulID), index)
	return scanFragment(row)
}

func (s *PostgresStore) FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Fragment, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE soul_id = $1 ORDER BY idx`,
		int64(soulID))
	if err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Fragment, 0)
	for rows.Next() {
		fragment, err := scanFragmentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fragment)
	}
	return out, rows.Err()
}

// Execute locks the fragment row FOR UPDATE, validates, mutates and writes
// back the repayment columns. Must run inside a transaction.
func (s *PostgresStore) Execute(ctx context.Context, soulID id.SoulID, index int, validate func(*models.Fragment) error, mutate func(*models.Fragment)) (*models.Fragment, error) {
	execer := txcontext.Execer(ctx, s.db)

	row := execer.QueryRowContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE soul_id = $1 AND idx = $2 FOR UPDATE`,
		int64(soulID), index)
	fragment, err := scanFragment(row)
	if err != nil {
		return nil, err
	}
	if err := validate(fragment); err != nil {
		return nil, err
	}
	mutate(fragment)

	_, err = execer.ExecContext(ctx, `
		UPDATE fragments SET repaid = $3, repaid_at = $4
		WHERE soul_id = $1 AND idx = $2`,
		int64(soulID), index, fragment.Repaid, nullableTime(fragment.RepaidAt),
	)
	if err != nil {
		return nil, fmt.Errorf("update fragment %d/%d: %w", soulID, index, err)
	}
	return fragment, nil
}

func (s *PostgresStore) OutstandingByDebtor(ctx context.Context, debtor id.Address) (uint64, error) {
	var total int64
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(value), 0) FROM fragments WHERE debtor_address = $1 AND NOT repaid`,
		debtor.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum debtor fragments: %w", err)
	}
	return uint64(total), nil
}

func (s *PostgresStore) CountOpen(ctx context.Context) (int, error) {
	var open int
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fragments WHERE NOT repaid`,
	).Scan(&open)
	if err != nil {
		return 0, fmt.Errorf("count open fragments: %w", err)
	}
	return open, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFragment(row *sql.Row) (*models.Fragment, error) {
	fragment, err := scanFragmentRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return fragment, nil
}

func scanFragmentRow(row rowScanner) (*models.Fragment, error) {
	var (
		fragment models.Fragment
		debtor   string
		value    int64
		repaidAt sql.NullTime
	)
	err := row.Scan(&fragment.ParentSoulID, &fragment.Index, &fragment.SkillTag, &value,
		&debtor, &fragment.Repaid, &fragment.CreatedAt, &repaidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan fragment: %w", err)
	}
	fragment.Debtor = id.Address(debtor)
	fragment.Value = uint64(value)
	if repaidAt.Valid {
		fragment.RepaidAt = repaidAt.Time
	}
	return &fragment, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
