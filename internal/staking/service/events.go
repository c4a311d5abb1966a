package service

import (
	"context"
	"log/slog"
	"strconv"

	"soulledger/internal/staking/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/requestcontext"
)

// eventEmitter stamps and publishes staking events. Emission runs inside the
// operation's transaction, so a failed append aborts the operation.
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

func (e *eventEmitter) emitStakeCreated(ctx context.Context, stake *models.Stake) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindStakeCreated,
		SoulID:    stake.SoulID,
		Actor:     stake.Staker,
		Subject:   stake.Kind.String(),
		Amount:    stake.Amount,
		Reference: stake.ID.String(),
	})
}

func (e *eventEmitter) emitStakeResolved(ctx context.Context, stake *models.Stake, caller id.Address) error {
	outcome := "lost"
	if stake.Won {
		outcome = "won"
	}
	return e.emit(ctx, events.Event{
		Kind:      events.KindStakeResolved,
		SoulID:    stake.SoulID,
		Actor:     caller,
		Subject:   stake.Staker.String(),
		Amount:    stake.Payout,
		Reference: stake.ID.String(),
		Reason:    outcome,
	})
}

// emitPoolUpdated reports the pool's new totals after a placement or
// resolution shifts them.
func (e *eventEmitter) emitPoolUpdated(ctx context.Context, pool *models.Pool, actor id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindPoolUpdated,
		SoulID:    pool.SoulID,
		Actor:     actor,
		Amount:    pool.Total(),
		Reference: strconv.FormatUint(pool.SurvivePool, 10) + "/" + strconv.FormatUint(pool.DiePool, 10),
	})
}

func (e *eventEmitter) emitFeeUpdated(ctx context.Context, caller id.Address, oldBps, newBps uint64) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindStakingFeeUpdated,
		Actor:     caller,
		Amount:    newBps,
		Reference: strconv.FormatUint(oldBps, 10),
	})
}
