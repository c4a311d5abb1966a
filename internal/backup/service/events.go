package service

import (
	"context"
	"log/slog"
	"strconv"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/requestcontext"
)

// eventEmitter stamps and publishes backup events. Emission runs inside the
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

func (e *eventEmitter) emitBackupCreated(ctx context.Context, backup *models.Backup, caller id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindBackupCreated,
		SoulID:    backup.SoulID,
		Actor:     caller,
		Subject:   backup.Type.String(),
		Reference: strconv.Itoa(backup.Index),
	})
}

func (e *eventEmitter) emitCrossChainBackup(ctx context.Context, record *models.CrossChainBackup, caller id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindCrossChainBackup,
		SoulID:    record.SoulID,
		Actor:     caller,
		Subject:   strconv.FormatUint(record.TargetChainID, 10),
		Reference: strconv.Itoa(record.Index),
	})
}

func (e *eventEmitter) emitRecoveryRequested(ctx context.Context, request *models.RecoveryRequest) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindRecoveryRequested,
		SoulID:    request.SoulID,
		Actor:     request.Requester,
		Subject:   strconv.Itoa(request.BackupIndex),
		Reference: request.ID.String(),
	})
}

// emitRecoveryApproved reports one approval; reason distinguishes the owner
// override from a guardian vote.
func (e *eventEmitter) emitRecoveryApproved(ctx context.Context, request *models.RecoveryRequest, caller id.Address, reason string) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindRecoveryApproved,
		SoulID:    request.SoulID,
		Actor:     caller,
		Subject:   strconv.FormatBool(request.Approved),
		Reference: request.ID.String(),
		Reason:    reason,
	})
}

func (e *eventEmitter) emitRecoveryExecuted(ctx context.Context, request *models.RecoveryRequest, caller id.Address, reason string) error {
	return e.emit(ctx, events.Event{
		Kind:      events.KindRecoveryExecuted,
		SoulID:    request.SoulID,
		Actor:     caller,
		Subject:   strconv.Itoa(request.BackupIndex),
		Reference: request.ID.String(),
		Reason:    reason,
	})
}

func (e *eventEmitter) emitGuardianAdded(ctx context.Context, soulID id.SoulID, caller, guardian id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:    events.KindGuardianAdded,
		SoulID:  soulID,
		Actor:   caller,
		Subject: guardian.String(),
	})
}

func (e *eventEmitter) emitGuardianRemoved(ctx context.Context, soulID id.SoulID, caller, guardian id.Address) error {
	return e.emit(ctx, events.Event{
		Kind:    events.KindGuardianRemoved,
		SoulID:  soulID,
		Actor:   caller,
		Subject: guardian.String(),
	})
}
