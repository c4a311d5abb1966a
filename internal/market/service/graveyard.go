package service

import (
	"context"

	"soulledger/internal/market/models"
	registrymodels "soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/tx"
	"soulledger/pkg/requestcontext"
)

// ArchiveToGraveyard records the dead soul's final off-ledger balance in the
// graveyard. Owner-only, DEAD-only, at most once per soul.
func (s *Service) ArchiveToGraveyard(ctx context.Context, caller id.Address, soulID id.SoulID, finalBalance uint64) (*models.GraveyardEntry, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var entry *models.GraveyardEntry
	err := s.tx.RunInTx(tx.WithShard(ctx, soulKey(soulID)), func(txCtx context.Context) error {
		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if soul.Owner != caller {
			return dErrors.New(dErrors.CodeForbidden, "only the soul's owner may archive it")
		}
		if soul.Status != registrymodels.StatusDead {
			return dErrors.New(dErrors.CodeInvariantViolation, "only dead souls can be archived")
		}

		archived, err := models.NewGraveyardEntry(soulID, finalBalance, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.graveyard.CreateIfAbsent(txCtx, archived); err != nil {
			return wrapGraveyardErr(err)
		}
		if err := s.emitter.emitGraveyardArchived(txCtx, archived, caller); err != nil {
			return err
		}
		entry = archived
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Resurrect burns the entry's single resurrection and pays the soul's
// original creator the configured minimum out of the caller's payment,
// refunding the rest. The flag flips before funds move, so a failed
// settlement rolls the flip back with everything else. The soul itself stays
// DEAD; rebirth is the registry's affair.
func (s *Service) Resurrect(ctx context.Context, caller id.Address, soulID id.SoulID, payment uint64) (*models.GraveyardEntry, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if payment < s.minResurrectionPrice {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "payment is below the resurrection price")
	}

	var entry *models.GraveyardEntry
	// Spans the entry, the soul and several accounts, so the transaction runs
	// keyless.
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		resurrectable, err := s.graveyard.Find(txCtx, soulID)
		if err != nil {
			return wrapGraveyardErr(err)
		}
		if err := resurrectable.CanResurrect(); err != nil {
			return err
		}

		moves := escrowed(caller, soul.Creator, payment, s.minResurrectionPrice)
		if err := s.treasury.CanSettle(txCtx, moves); err != nil {
			return err
		}

		resurrected, err := s.graveyard.Execute(txCtx, soulID,
			func(entry *models.GraveyardEntry) error { return entry.CanResurrect() },
			func(entry *models.GraveyardEntry) { entry.ApplyResurrection() },
		)
		if err != nil {
			return wrapGraveyardErr(err)
		}

		if err := s.treasury.Settle(txCtx, moves); err != nil {
			return err
		}
		if err := s.emitter.emitGraveyardResurrected(txCtx, resurrected, caller, soul.Creator, s.minResurrectionPrice); err != nil {
			return err
		}
		entry = resurrected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
