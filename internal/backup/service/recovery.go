package service

import (
	"context"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/requestcontext"
)

// RequestRecovery opens a pending request to restore the soul from one of
// its valid backups. Any wallet may request; approval gates execution, so
// requesting costs an attacker nothing but an audit trail.
func (s *Service) RequestRecovery(ctx context.Context, caller id.Address, soulID id.SoulID, backupIndex int) (*models.RecoveryRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var request *models.RecoveryRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.registry.Get(txCtx, soulID); err != nil {
			return err
		}
		backup, err := s.backups.Find(txCtx, soulID, backupIndex)
		if err != nil {
			return wrapBackupErr(err)
		}
		if !backup.IsValid {
			return dErrors.New(dErrors.CodeInvariantViolation, "backup is invalidated and cannot be recovered from")
		}

		created, err := models.NewRecoveryRequest(soulID, backupIndex, caller, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.recovery.CreateRequest(txCtx, created); err != nil {
			return wrapRecoveryErr(err)
		}
		if err := s.emitter.emitRecoveryRequested(txCtx, created); err != nil {
			return err
		}
		request = created
		return nil
	})
	if err != nil {
		s.metrics.IncrementRecovery("requested", outcome(err))
		return nil, err
	}

	s.metrics.IncrementRecovery("requested", "ok")
	return request, nil
}

// ApproveRecovery records one approval. The soul's owner approves outright;
// a guardian's approval counts at most once, and the request flips to
// approved when distinct guardian approvals reach the threshold. Anyone else
// is rejected.
func (s *Service) ApproveRecovery(ctx context.Context, caller id.Address, requestID id.RecoveryID) (*models.RecoveryRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireRecoveryID(requestID); err != nil {
		return nil, err
	}

	var (
		request *models.RecoveryRequest
		reason  string
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pending, err := s.recovery.FindRequest(txCtx, requestID)
		if err != nil {
			return wrapRecoveryErr(err)
		}
		soul, err := s.registry.Get(txCtx, pending.SoulID)
		if err != nil {
			return err
		}

		var apply func(*models.RecoveryRequest)
		switch {
		case caller == soul.Owner:
			reason = "owner"
			apply = func(r *models.RecoveryRequest) { r.ApplyOwnerApproval() }
		default:
			set, err := s.recovery.FindGuardians(txCtx, pending.SoulID)
			if err != nil {
				return wrapRecoveryErr(err)
			}
			if !set.IsGuardian(caller) {
				return dErrors.New(dErrors.CodeForbidden, "only the owner or a guardian may approve a recovery")
			}
			reason = "guardian"
			apply = func(r *models.RecoveryRequest) { r.ApplyGuardianApproval(caller, set.Threshold) }
		}

		approved, err := s.recovery.ExecuteRequest(txCtx, requestID,
			func(r *models.RecoveryRequest) error { return r.CanApprove() },
			apply,
		)
		if err != nil {
			return wrapRecoveryErr(err)
		}
		if err := s.emitter.emitRecoveryApproved(txCtx, approved, caller, reason); err != nil {
			return err
		}
		request = approved
		return nil
	})
	if err != nil {
		s.metrics.IncrementRecovery("approved", outcome(err))
		return nil, err
	}

	s.metrics.IncrementRecovery("approved", "ok")
	return request, nil
}

// ExecuteRecovery marks an approved request executed, exactly once. The
// owner or the original requester may trigger it; the executed event is the
// signal consumers restore from.
func (s *Service) ExecuteRecovery(ctx context.Context, caller id.Address, requestID id.RecoveryID) (*models.RecoveryRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireRecoveryID(requestID); err != nil {
		return nil, err
	}

	var request *models.RecoveryRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pending, err := s.recovery.FindRequest(txCtx, requestID)
		if err != nil {
			return wrapRecoveryErr(err)
		}
		soul, err := s.registry.Get(txCtx, pending.SoulID)
		if err != nil {
			return err
		}
		if caller != soul.Owner && caller != pending.Requester {
			return dErrors.New(dErrors.CodeForbidden, "only the owner or the requester may execute a recovery")
		}

		now := requestcontext.Now(txCtx)
		executed, err := s.recovery.ExecuteRequest(txCtx, requestID,
			func(r *models.RecoveryRequest) error { return r.CanExecute() },
			func(r *models.RecoveryRequest) { r.ApplyExecution(now) },
		)
		if err != nil {
			return wrapRecoveryErr(err)
		}
		if err := s.emitter.emitRecoveryExecuted(txCtx, executed, caller, "approved"); err != nil {
			return err
		}
		request = executed
		return nil
	})
	if err != nil {
		s.metrics.IncrementRecovery("executed", outcome(err))
		return nil, err
	}

	s.metrics.IncrementRecovery("executed", "ok")
	return request, nil
}

// EmergencyRecovery is the owner's bypass: the request is created, approved
// and executed in one transaction, skipping the guardian quorum entirely.
func (s *Service) EmergencyRecovery(ctx context.Context, caller id.Address, soulID id.SoulID, backupIndex int) (*models.RecoveryRequest, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var request *models.RecoveryRequest
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if caller != soul.Owner {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may run an emergency recovery")
		}
		backup, err := s.backups.Find(txCtx, soulID, backupIndex)
		if err != nil {
			return wrapBackupErr(err)
		}
		if !backup.IsValid {
			return dErrors.New(dErrors.CodeInvariantViolation, "backup is invalidated and cannot be recovered from")
		}

		created, err := models.NewRecoveryRequest(soulID, backupIndex, caller, now)
		if err != nil {
			return err
		}
		created.ApplyOwnerApproval()
		created.ApplyExecution(now)
		if err := s.recovery.CreateRequest(txCtx, created); err != nil {
			return wrapRecoveryErr(err)
		}
		if err := s.emitter.emitRecoveryExecuted(txCtx, created, caller, "emergency"); err != nil {
			return err
		}
		request = created
		return nil
	})
	if err != nil {
		s.metrics.IncrementRecovery("emergency", outcome(err))
		return nil, err
	}

	s.metrics.IncrementRecovery("emergency", "ok")
	return request, nil
}
