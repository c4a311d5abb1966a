package service

import (
	"context"

	"soulledger/internal/backup/models"
	registrymodels "soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// AddGuardian adds a wallet to the soul's recovery committee. Owner-only.
func (s *Service) AddGuardian(ctx context.Context, caller id.Address, soulID id.SoulID, guardian id.Address) (*models.Guardians, error) {
	return s.executeGuardians(ctx, caller, soulID,
		func(set *models.Guardians) error { return set.CanAddGuardian(guardian) },
		func(set *models.Guardians) { set.ApplyAddGuardian(guardian) },
		func(txCtx context.Context) error { return s.emitter.emitGuardianAdded(txCtx, soulID, caller, guardian) },
		"added",
	)
}

// RemoveGuardian removes a wallet from the committee. Owner-only; removal
// that would leave fewer guardians than the threshold is rejected.
func (s *Service) RemoveGuardian(ctx context.Context, caller id.Address, soulID id.SoulID, guardian id.Address) (*models.Guardians, error) {
	return s.executeGuardians(ctx, caller, soulID,
		func(set *models.Guardians) error { return set.CanRemoveGuardian(guardian) },
		func(set *models.Guardians) { set.ApplyRemoveGuardian(guardian) },
		func(txCtx context.Context) error { return s.emitter.emitGuardianRemoved(txCtx, soulID, caller, guardian) },
		"removed",
	)
}

// SetGuardianThreshold sets the approval quorum, 1 <= n <= guardian count.
// Owner-only.
func (s *Service) SetGuardianThreshold(ctx context.Context, caller id.Address, soulID id.SoulID, n int) (*models.Guardians, error) {
	return s.executeGuardians(ctx, caller, soulID,
		func(set *models.Guardians) error { return set.CanSetThreshold(n) },
		func(set *models.Guardians) { set.ApplySetThreshold(n) },
		nil,
		"threshold",
	)
}

// SetBackupper grants or revokes a delegate's right to write backups for the
// soul. Owner-only.
func (s *Service) SetBackupper(ctx context.Context, caller id.Address, soulID id.SoulID, address id.Address, allowed bool) (*models.Guardians, error) {
	if address.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "backupper address is required")
	}
	return s.executeGuardians(ctx, caller, soulID,
		func(set *models.Guardians) error { return nil },
		func(set *models.Guardians) { set.ApplySetBackupper(address, allowed) },
		nil,
		"backupper",
	)
}

// executeGuardians runs one owner-gated guardian set change. The emit hook is
// nil for changes without a domain event; those still count in metrics.
func (s *Service) executeGuardians(ctx context.Context, caller id.Address, soulID id.SoulID, validate func(*models.Guardians) error, mutate func(*models.Guardians), emit func(context.Context) error, action string) (*models.Guardians, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var set *models.Guardians
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if err := requireOwner(caller, soul); err != nil {
			return err
		}

		updated, err := s.recovery.ExecuteGuardians(txCtx, soulID, validate, mutate)
		if err != nil {
			return wrapRecoveryErr(err)
		}
		if emit != nil {
			if err := emit(txCtx); err != nil {
				return err
			}
		}
		set = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementGuardianChange(action)
	return set, nil
}

func requireOwner(caller id.Address, soul *registrymodels.Soul) error {
	if caller != soul.Owner {
		return dErrors.New(dErrors.CodeForbidden, "only the owner may manage guardians")
	}
	return nil
}
