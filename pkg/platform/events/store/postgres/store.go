// Package postgres implements the events store with a transactional outbox.
// Append writes to the event_outbox table through the caller's transaction,
// so the event commits atomically with the state change that caused it; the
// relay worker drains the outbox to Kafka, and the consumer materializes
// events into the ledger_events table that the list queries read.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "soulledger/pkg/domain"
	events "soulledger/pkg/platform/events"
	txcontext "soulledger/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure relayed to Kafka. Field names match
// events.Event so the consumer can materialize without a mapping layer.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	Kind      string `json:"Kind"`
	SoulID    uint64 `json:"SoulID,omitempty"`
	Actor     string `json:"Actor,omitempty"`
	Subject   string `json:"Subject,omitempty"`
	Amount    uint64 `json:"Amount,omitempty"`
	Reference string `json:"Reference,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

// Append writes the event to the outbox. Inside a transaction the insert
// joins it; the relay worker publishes after commit.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	eventID := uuid.New()

	// Category derives from the kind; the map in events is the source of truth.
	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(event.Kind.Category()),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Kind:      string(event.Kind),
		SoulID:    uint64(event.SoulID),
		Actor:     event.Actor.String(),
		Subject:   event.Subject,
		Amount:    event.Amount,
		Reference: event.Reference,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	// Aggregate by soul when the event has one, so per-soul ordering is
	// preserved through the Kafka partition key.
	aggregateType := "account"
	aggregateID := event.Actor.String()
	if !event.SoulID.IsNil() {
		aggregateType = "soul"
		aggregateID = fmt.Sprintf("%d", event.SoulID)
	}

	query := `
		INSERT INTO event_outbox (id, aggregate_type, aggregate_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.Execer(ctx, s.db).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		string(event.Kind),
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID materializes a relayed event into the ledger_events table.
// Used by the Kafka consumer; idempotent via ON CONFLICT DO NOTHING so
// redelivery is harmless.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event events.Event) error {
	query := `
		INSERT INTO ledger_events (
			id, category, timestamp, kind, soul_id, actor,
			subject, amount, reference, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	var soulID *int64
	if !event.SoulID.IsNil() {
		v := int64(event.SoulID)
		soulID = &v
	}

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		string(event.Kind),
		soulID,
		event.Actor.String(),
		event.Subject,
		int64(event.Amount),
		event.Reference,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert ledger event: %w", err)
	}
	return nil
}

// ListBySoul returns the materialized events for one soul, newest first.
func (s *Store) ListBySoul(ctx context.Context, soulID id.SoulID) ([]events.Event, error) {
	query := `
		SELECT category, timestamp, kind, soul_id, actor,
			   subject, amount, reference, reason, request_id
		FROM ledger_events
		WHERE soul_id = $1
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, int64(soulID))
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent materialized events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]events.Event, error) {
	query := `
		SELECT category, timestamp, kind, soul_id, actor,
			   subject, amount, reference, reason, request_id
		FROM ledger_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]events.Event, error) {
	var out []events.Event
	for rows.Next() {
		var (
			event    events.Event
			category string
			kind     string
			soulID   *int64
			actor    string
			amount   int64
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&kind,
			&soulID,
			&actor,
			&event.Subject,
			&amount,
			&event.Reference,
			&event.Reason,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}

		event.Category = events.EventCategory(category)
		event.Kind = events.Kind(kind)
		event.Amount = uint64(amount)
		if soulID != nil {
			event.SoulID = id.SoulID(*soulID)
		}
		if actor != "" {
			if parsed, err := id.ParseAddress(actor); err == nil {
				event.Actor = parsed
			}
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger events: %w", err)
	}
	return out, nil
}
