package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "soulledger/pkg/domain"
	events "soulledger/pkg/platform/events"
)

// EventSink materializes relayed events for querying.
type EventSink interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event events.Event) error
}

// LedgerHandler materializes relayed ledger events into the query table.
// Malformed messages are logged and committed so a bad payload cannot wedge
// the partition; store failures propagate and block the commit.
type LedgerHandler struct {
	sink   EventSink
	logger *slog.Logger
}

func NewLedgerHandler(sink EventSink, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{sink: sink, logger: logger}
}

// ledgerPayload matches the JSON structure written by the outbox store.
type ledgerPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	Kind      string `json:"Kind"`
	SoulID    uint64 `json:"SoulID"`
	Actor     string `json:"Actor"`
	Subject   string `json:"Subject"`
	Amount    uint64 `json:"Amount"`
	Reference string `json:"Reference"`
	Reason    string `json:"Reason"`
	RequestID string `json:"RequestID"`
}

func (h *LedgerHandler) Handle(ctx context.Context, msg *Message) error {
	var payload ledgerPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("failed to unmarshal ledger event",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	eventID, err := uuid.Parse(payload.ID)
	if err != nil {
		h.logger.Error("ledger event carries a malformed id",
			"id", payload.ID,
			"kind", payload.Kind,
			"error", err,
		)
		return nil
	}

	event := events.Event{
		Category:  events.EventCategory(payload.Category),
		Kind:      events.Kind(payload.Kind),
		SoulID:    id.SoulID(payload.SoulID),
		Subject:   payload.Subject,
		Amount:    payload.Amount,
		Reference: payload.Reference,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
	}
	if event.Category == "" {
		event.Category = event.Kind.Category()
	}
	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			event.Timestamp = ts
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = msg.Timestamp
	}
	if payload.Actor != "" {
		if actor, err := id.ParseAddress(payload.Actor); err == nil {
			event.Actor = actor
		}
	}

	if err := h.sink.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("materialize ledger event %s: %w", eventID, err)
	}

	h.logger.Debug("materialized ledger event",
		"event_id", eventID,
		"kind", event.Kind,
		"soul_id", event.SoulID,
	)
	return nil
}
