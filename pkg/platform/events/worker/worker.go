// Package worker drains the transactional outbox into Kafka. Entries are
// claimed with FOR UPDATE SKIP LOCKED so multiple replicas can relay
// concurrently without double-publishing a committed batch.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Producer publishes one record and returns after broker acknowledgement.
type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Relay moves committed outbox entries to Kafka.
type Relay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger

	interval  time.Duration
	batchSize int
}

// Option configures a Relay.
type Option func(*Relay)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize overrides how many entries one pass claims.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(db *sql.DB, producer Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		producer:  producer,
		logger:    logger,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the outbox until the context is cancelled. Publish failures roll
// the claim back and the batch is retried on the next pass, so delivery is
// at-least-once; the consumer deduplicates on event id.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

type outboxEntry struct {
	id          string
	aggregateID string
	payload     []byte
}

func (r *Relay) relayBatch(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin relay tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM event_outbox
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return fmt.Errorf("claim outbox entries: %w", err)
	}

	var entries []outboxEntry
	for rows.Next() {
		var entry outboxEntry
		if err := rows.Scan(&entry.id, &entry.aggregateID, &entry.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate outbox entries: %w", err)
	}
	rows.Close()

	if len(entries) == 0 {
		return nil
	}

	for _, entry := range entries {
		if err := r.producer.Publish(ctx, []byte(entry.aggregateID), entry.payload); err != nil {
			return fmt.Errorf("publish outbox entry %s: %w", entry.id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM event_outbox WHERE id = $1`, entry.id); err != nil {
			return fmt.Errorf("delete outbox entry %s: %w", entry.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit relay tx: %w", err)
	}

	r.logger.DebugContext(ctx, "relayed outbox batch", "count", len(entries))
	return nil
}
