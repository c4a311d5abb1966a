package service

import (
	"context"
	"log/slog"
	"strconv"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/requestcontext"
)

// eventEmitter stamps and publishes marketplace events. Emission runs inside
// the operation's transaction, so a failed append aborts the operation.
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

// emitSoulPurchased is the single event for the whole trade; the registry and
// treasury mutations it orders stay silent.
func (e *eventEmitter) emitSoulPurchased(ctx context.Context, trade *models.Trade) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindSoulPurchased,
		SoulID:    trade.SoulID,
		Actor:     trade.Buyer,
		Subject:   trade.Seller.String(),
		Amount:    trade.Price,
		Reference: strconv.FormatUint(trade.Fee, 10),
	})
}

func (e *eventEmitter) emitFragmentCreated(ctx context.Context, fragment *models.Fragment, caller id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindFragmentCreated,
		SoulID:    fragment.ParentSoulID,
		Actor:     caller,
		Subject:   fragment.Debtor.String(),
		Amount:    fragment.Value,
		Reference: strconv.Itoa(fragment.Index),
		Reason:    fragment.SkillTag,
	})
}

func (e *eventEmitter) emitFragmentRepaid(ctx context.Context, fragment *models.Fragment, payer, owner id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindFragmentRepaid,
		SoulID:    fragment.ParentSoulID,
		Actor:     payer,
		Subject:   owner.String(),
		Amount:    fragment.Value,
		Reference: strconv.Itoa(fragment.Index),
	})
}

func (e *eventEmitter) emitGraveyardArchived(ctx context.Context, entry *models.GraveyardEntry, caller id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:   events.KindGraveyardArchived,
		SoulID: entry.SoulID,
		Actor:  caller,
		Amount: entry.FinalBalance,
	})
}

func (e *eventEmitter) emitGraveyardResurrected(ctx context.Context, entry *models.GraveyardEntry, caller, creator id.Address, paid uint64) error {
	return e.emit(ctx, events.Event{
		Kind:    events.KindGraveyardResurrected,
		SoulID:  entry.SoulID,
		Actor:   caller,
		Subject: creator.String(),
		Amount:  paid,
	})
}

func (e *eventEmitter) emitFeeUpdated(ctx context.Context, caller id.Address, oldBps, newBps uint64) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindMarketplaceFeeUpdated,
		Actor:     caller,
		Amount:    newBps,
		Reference: strconv.FormatUint(oldBps, 10),
	})
}
