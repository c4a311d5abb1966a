package lineage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "soulledger/pkg/domain"
	txcontext "soulledger/pkg/platform/tx"
)

// PostgresStore keeps one row per parent with its ordered children array.
// Parent lookups for the ancestry walk scan the arrays with ANY; the tree is
// shallow (a soul has at most two parents) so no reverse index is kept.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, parent, child id.SoulID) error {
	_, err := txcontext.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO lineage (parent_soul_id, children, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (parent_soul_id)
		DO UPDATE SET children = array_append(lineage.children, $4), updated_at = $3`,
		int64(parent), pq.Array([]int64{int64(child)}), time.Now().UTC(), int64(child),
	)
	if err != nil {
		return fmt.Errorf("append lineage edge %d->%d: %w", parent, child, err)
	}
	return nil
}

func (s *PostgresStore) Children(ctx context.Context, parent id.SoulID) ([]id.SoulID, error) {
	var raw []int64
	err := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT children FROM lineage WHERE parent_soul_id = $1`, int64(parent),
	).Scan(pq.Array(&raw))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load lineage children: %w", err)
	}
	return toSoulIDs(raw), nil
}

func (s *PostgresStore) Parents(ctx context.Context, child id.SoulID) ([]id.SoulID, error) {
	rows, err := txcontext.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT parent_soul_id FROM lineage WHERE $1 = ANY(children) ORDER BY parent_soul_id`,
		int64(child),
	)
	if err != nil {
		return nil, fmt.Errorf("load lineage parents: %w", err)
	}
	defer rows.Close()

	var out []id.SoulID
	for rows.Next() {
		var parent int64
		if err := rows.Scan(&parent); err != nil {
			return nil, fmt.Errorf("scan lineage parent: %w", err)
		}
		out = append(out, id.SoulID(parent))
	}
	return out, rows.Err()
}

func toSoulIDs(raw []int64) []id.SoulID {
	out := make([]id.SoulID, len(raw))
	for i, v := range raw {
		out[i] = id.SoulID(v)
	}
	return out
}
