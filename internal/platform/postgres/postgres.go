// Package postgres opens the database handle and bootstraps the schema. The
// ledger ships its DDL in-process instead of a migration tool; every
// statement is idempotent, so a restart against a provisioned database is a
// no-op.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects with the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// schema holds one statement per table so a failure names its position.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS souls (
		id BIGSERIAL PRIMARY KEY,
		owner_address TEXT NOT NULL,
		agent_address TEXT NOT NULL,
		creator_address TEXT NOT NULL,
		content_uri TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		listing_price BIGINT NOT NULL DEFAULT 0,
		birth_time TIMESTAMPTZ NOT NULL,
		death_time TIMESTAMPTZ,
		death_cause TEXT NOT NULL DEFAULT '',
		final_balance BIGINT NOT NULL DEFAULT 0,
		total_earnings BIGINT NOT NULL DEFAULT 0,
		work_count BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_souls_owner ON souls (owner_address)`,
	`CREATE INDEX IF NOT EXISTS idx_souls_status ON souls (status)`,

	`CREATE TABLE IF NOT EXISTS lineage (
		parent_soul_id BIGINT PRIMARY KEY,
		children BIGINT[] NOT NULL DEFAULT '{}',
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS trades (
		id BIGSERIAL PRIMARY KEY,
		soul_id BIGINT NOT NULL,
		seller_address TEXT NOT NULL,
		buyer_address TEXT NOT NULL,
		price BIGINT NOT NULL,
		fee BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_soul ON trades (soul_id)`,

	`CREATE TABLE IF NOT EXISTS fragments (
		soul_id BIGINT NOT NULL,
		idx INT NOT NULL,
		skill_tag TEXT NOT NULL,
		value BIGINT NOT NULL,
		debtor_address TEXT NOT NULL,
		repaid BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		repaid_at TIMESTAMPTZ,
		PRIMARY KEY (soul_id, idx)
	)`,

	`CREATE TABLE IF NOT EXISTS graveyard (
		soul_id BIGINT PRIMARY KEY,
		final_balance BIGINT NOT NULL,
		resurrectable BOOLEAN NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS treasury_accounts (
		address TEXT PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0,
		frozen BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS stakes (
		id BIGSERIAL PRIMARY KEY,
		staker_address TEXT NOT NULL,
		soul_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		amount BIGINT NOT NULL,
		duration_ns BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		resolved BOOLEAN NOT NULL DEFAULT FALSE,
		won BOOLEAN NOT NULL DEFAULT FALSE,
		payout BIGINT NOT NULL DEFAULT 0,
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stakes_soul ON stakes (soul_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stakes_staker ON stakes (staker_address)`,

	`CREATE TABLE IF NOT EXISTS stake_pools (
		soul_id BIGINT PRIMARY KEY,
		survive_pool BIGINT NOT NULL DEFAULT 0,
		die_pool BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS backups (
		soul_id BIGINT NOT NULL,
		idx INT NOT NULL,
		content_uri TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		backup_type TEXT NOT NULL,
		capabilities_fingerprint TEXT NOT NULL DEFAULT '',
		earnings_at_backup BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		is_valid BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (soul_id, idx)
	)`,

	`CREATE TABLE IF NOT EXISTS crosschain_backups (
		soul_id BIGINT NOT NULL,
		idx INT NOT NULL,
		target_chain_id BIGINT NOT NULL,
		content_uri TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		recovered BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (soul_id, idx)
	)`,

	`CREATE TABLE IF NOT EXISTS recovery_requests (
		id BIGSERIAL PRIMARY KEY,
		soul_id BIGINT NOT NULL,
		backup_idx INT NOT NULL,
		requester_address TEXT NOT NULL,
		approvals TEXT[] NOT NULL DEFAULT '{}',
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		executed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		executed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recovery_soul ON recovery_requests (soul_id)`,

	`CREATE TABLE IF NOT EXISTS guardian_sets (
		soul_id BIGINT PRIMARY KEY,
		guardians TEXT[] NOT NULL DEFAULT '{}',
		threshold INT NOT NULL DEFAULT 1,
		backuppers TEXT[] NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS event_outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_event_outbox_created ON event_outbox (created_at)`,

	`CREATE TABLE IF NOT EXISTS ledger_events (
		id UUID PRIMARY KEY,
		category TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		kind TEXT NOT NULL,
		soul_id BIGINT,
		actor TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		amount BIGINT NOT NULL DEFAULT 0,
		reference TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_events_soul ON ledger_events (soul_id, timestamp DESC)`,
}

// Bootstrap creates every table and index the stores expect.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema statement %d: %w", i, err)
		}
	}
	return nil
}

// Tables lists every table Bootstrap manages, in dependency-safe truncation
// order. Test helpers use this to reset state between cases.
func Tables() []string {
	return []string{
		"ledger_events",
		"event_outbox",
		"guardian_sets",
		"recovery_requests",
		"crosschain_backups",
		"backups",
		"stake_pools",
		"stakes",
		"treasury_accounts",
		"graveyard",
		"fragments",
		"trades",
		"lineage",
		"souls",
	}
}
