package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	txcontext "soulledger/pkg/platform/tx"
	"soulledger/pkg/requestcontext"
)

// PostgresStore persists treasury accounts in PostgreSQL. Settlement batches
// lock every involved account before validating, so a multi-leg transfer is
// all-or-nothing under the surrounding transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `address, balance, frozen, created_at, updated_at`

func (s *PostgresStore) Find(ctx context.Context, address id.Address) (*models.Account, error) {
	row := txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM treasury_accounts WHERE address = $1`, address.String())

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return account, nil
}

// ExecuteBatch locks the accounts for addresses in lexical order, validates,
// mutates, and upserts the results. Accounts without a row yet are
// materialized with zero balance and only written when validate passes.
// Advisory locks cover the not-yet-inserted accounts that FOR UPDATE cannot.
// Must run inside a transaction.
func (s *PostgresStore) ExecuteBatch(
	ctx context.Context,
	addresses []id.Address,
	validate func(accounts map[id.Address]*models.Account) error,
	mutate func(accounts map[id.Address]*models.Account),
) error {
	execer := txcontext.Execer(ctx, s.db)
	sorted := dedupeSorted(addresses)

	for _, address := range sorted {
		if _, err := execer.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
			"account:"+address.String(),
		); err != nil {
			return fmt.Errorf("acquire account lock: %w", err)
		}
	}

	rows, err := execer.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM treasury_accounts WHERE address = ANY($1) FOR UPDATE`,
		pq.Array(toStrings(sorted)),
	)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	working := make(map[id.Address]*models.Account, len(sorted))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return err
		}
		working[account.Address] = account
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	now := requestcontext.Now(ctx)
	for _, address := range sorted {
		if _, ok := working[address]; ok {
			continue
		}
		account, err := models.NewAccount(address, now)
		if err != nil {
			return err
		}
		working[address] = account
	}

	if err := validate(working); err != nil {
		return err
	}
	mutate(working)

	for _, address := range sorted {
		account := working[address]
		if _, err := execer.ExecContext(ctx, `
			INSERT INTO treasury_accounts (address, balance, frozen, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (address) DO UPDATE
			SET balance = EXCLUDED.balance, frozen = EXCLUDED.frozen, updated_at = EXCLUDED.updated_at`,
			account.Address.String(), int64(account.Balance), account.Frozen,
			account.CreatedAt, account.UpdatedAt,
		); err != nil {
			return fmt.Errorf("write account %s: %w", account.Address, err)
		}
	}
	return nil
}

// Count returns how many accounts exist, frozen ones counted separately.
func (s *PostgresStore) Count(ctx context.Context) (total, frozen int, err error) {
	err = txcontext.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE frozen) FROM treasury_accounts`,
	).Scan(&total, &frozen)
	if err != nil {
		return 0, 0, fmt.Errorf("count accounts: %w", err)
	}
	return total, frozen, nil
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account models.Account
		address string
		balance int64
	)
	err := row.Scan(&address, &balance, &account.Frozen, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	account.Address = id.Address(address)
	account.Balance = uint64(balance)
	return &account, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func toStrings(addresses []id.Address) []string {
	out := make([]string, len(addresses))
	for i, address := range addresses {
		out[i] = address.String()
	}
	return out
}
