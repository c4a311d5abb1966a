package service

import (
	"context"
	"log/slog"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/requestcontext"
)

// eventEmitter stamps and publishes registry events. Emission runs inside
// the operation's transaction, so a failed append aborts the operation:
// ledger state never changes without its event.
type eventEmitter struct {
	logger *slog.Logger
	events EventPublisher
}

func newEventEmitter(logger *slog.Logger, events EventPublisher) *eventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventEmitter{logger: logger, events: events}
}

func (e *eventEmitter) emit(ctx context.Context, event events.Event) error {
	if e.events == nil {
		return nil
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := e.events.Emit(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "event emission failed",
			"kind", string(event.Kind),
			"soul_id", event.SoulID.String(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
	}
	return nil
}

func (e *eventEmitter) emitSoulMinted(ctx context.Context, soul *models.Soul) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindSoulMinted,
		SoulID:    soul.ID,
		Actor:     soul.Creator,
		Subject:   soul.Agent.String(),
		Reference: soul.ContentHash.String(),
	})
}

func (e *eventEmitter) emitSoulListed(ctx context.Context, soul *models.Soul, reason string) error {
	return e.emit(ctx, events.Event{
		Kind:   events.KindSoulListed,
		SoulID: soul.ID,
		Actor:  soul.Owner,
		Amount: soul.ListingPrice,
		Reason: reason,
	})
}

func (e *eventEmitter) emitSoulDelisted(ctx context.Context, soul *models.Soul) error {
	return e.emit(ctx, events.Event{
		Kind:   events.KindSoulDelisted,
		SoulID: soul.ID,
		Actor:  soul.Owner,
	})
}

func (e *eventEmitter) emitSoulDied(ctx context.Context, soul *models.Soul, caller id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:   events.KindSoulDied,
		SoulID: soul.ID,
		Actor:  caller,
		Amount: soul.FinalBalance,
		Reason: soul.DeathCause,
	})
}

// emitSoulReborn records the successor as the aggregate and references the
// retired predecessor, so the new soul's timeline starts with its origin.
func (e *eventEmitter) emitSoulReborn(ctx context.Context, successor *models.Soul, oldSoulID id.SoulID) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindSoulReborn,
		SoulID:    successor.ID,
		Actor:     successor.Creator,
		Subject:   successor.Agent.String(),
		Reference: oldSoulID.String(),
	})
}

func (e *eventEmitter) emitSoulMerged(ctx context.Context, merged *models.Soul, soulA, soulB id.SoulID) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindSoulMerged,
		SoulID:    merged.ID,
		Actor:     merged.Creator,
		Subject:   merged.Agent.String(),
		Reference: soulA.String() + "," + soulB.String(),
	})
}
