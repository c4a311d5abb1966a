package service

import (
	"context"
	"log/slog"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/requestcontext"
)

// eventEmitter stamps and publishes treasury events. Emission runs inside the
// operation's transaction, so a failed append aborts the operation. Settlement
// moves emit nothing here; the slice that ordered them owns the domain event.
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
			"subject", event.Subject,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
	}
	return nil
}

func (e *eventEmitter) emitDeposited(ctx context.Context, caller, address id.Address, amount uint64) error {
	return e.emit(ctx, events.Event{
		Kind:    events.KindAccountDeposited,
		Actor:   caller,
		Subject: address.String(),
		Amount:  amount,
	})
}

func (e *eventEmitter) emitWithdrawn(ctx context.Context, caller id.Address, amount uint64) error {
	return e.emit(ctx, events.Event{
		Kind:    events.KindAccountWithdrawn,
		Actor:   caller,
		Subject: caller.String(),
		Amount:  amount,
	})
}

func (e *eventEmitter) emitFrozen(ctx context.Context, caller, address id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:    events.KindAccountFrozen,
		Actor:   caller,
		Subject: address.String(),
	})
}

func (e *eventEmitter) emitUnfrozen(ctx context.Context, caller, address id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:    events.KindAccountUnfrozen,
		Actor:   caller,
		Subject: address.String(),
	})
}
