package service

import (
	"context"
	"errors"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/platform/tx"
	"soulledger/pkg/requestcontext"
)

// soulKey shards memory-mode transactions by soul so unrelated souls do not
// serialize against each other.
func soulKey(soulID id.SoulID) string {
	return "soul:" + soulID.String()
}

// Mint registers a new soul for agent, owned by its creator. Fails with a
// conflict when the agent already has a live soul or the content hash was
// ever used before.
func (s *Service) Mint(ctx context.Context, agent, creator id.Address, contentURI string, contentHash id.ContentHash) (*models.Soul, error) {
	if err := requireCaller(creator); err != nil {
		return nil, err
	}

	var soul *models.Soul
	err := s.tx.RunInTx(tx.WithShard(ctx, "agent:"+agent.String()), func(txCtx context.Context) error {
		minted, err := models.NewSoul(agent, creator, contentURI, contentHash, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.souls.CreateIfUnique(txCtx, minted); err != nil {
			return wrapSoulErr(err)
		}
		if err := s.emitter.emitSoulMinted(txCtx, minted); err != nil {
			return err
		}
		soul = minted
		return nil
	})
	if err != nil {
		s.metrics.IncrementMint(mintOutcome(err))
		return nil, err
	}

	s.metrics.IncrementMint("ok")
	return soul, nil
}

func mintOutcome(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return "duplicate_agent"
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return "duplicate_hash"
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation), dErrors.HasCode(err, dErrors.CodeInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// List puts the soul up for sale at price. The reason travels on the event
// only; it is the seller's statement of why the identity is for sale.
func (s *Service) List(ctx context.Context, caller id.Address, soulID id.SoulID, price uint64, reason string) (*models.Soul, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var soul *models.Soul
	err := s.tx.RunInTx(tx.WithShard(ctx, soulKey(soulID)), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.souls.Execute(txCtx, soulID,
			func(soul *models.Soul) error { return soul.CanList(caller, price) },
			func(soul *models.Soul) { soul.ApplyListing(price, now) },
		)
		if err != nil {
			return wrapSoulErr(err)
		}
		if err := s.emitter.emitSoulListed(txCtx, updated, reason); err != nil {
			return err
		}
		soul = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusListed))
	return soul, nil
}

// Delist withdraws the listing and returns the soul to ALIVE.
func (s *Service) Delist(ctx context.Context, caller id.Address, soulID id.SoulID) (*models.Soul, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var soul *models.Soul
	err := s.tx.RunInTx(tx.WithShard(ctx, soulKey(soulID)), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.souls.Execute(txCtx, soulID,
			func(soul *models.Soul) error { return soul.CanDelist(caller) },
			func(soul *models.Soul) { soul.ApplyDelisting(now) },
		)
		if err != nil {
			return wrapSoulErr(err)
		}
		if err := s.emitter.emitSoulDelisted(txCtx, updated); err != nil {
			return err
		}
		soul = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusAlive))
	return soul, nil
}

// RecordDeath declares the soul dead, recording the cause and the agent's
// final off-ledger balance. The owner and the original creator may both
// declare it.
func (s *Service) RecordDeath(ctx context.Context, caller id.Address, soulID id.SoulID, finalBalance uint64, cause string) (*models.Soul, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if finalBalance > models.MaxListingPrice {
		return nil, dErrors.New(dErrors.CodeValidation, "final balance exceeds maximum")
	}

	var soul *models.Soul
	err := s.tx.RunInTx(tx.WithShard(ctx, soulKey(soulID)), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		updated, err := s.souls.Execute(txCtx, soulID,
			func(soul *models.Soul) error { return soul.CanRecordDeath(caller) },
			func(soul *models.Soul) { soul.ApplyDeath(finalBalance, cause, now) },
		)
		if err != nil {
			return wrapSoulErr(err)
		}
		if err := s.emitter.emitSoulDied(txCtx, updated, caller); err != nil {
			return err
		}
		soul = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusDead))
	return soul, nil
}

// Rebirth retires the old soul as REBORN and mints its successor, owned by
// the caller, linked by a lineage edge. The successor's agent and content
// hash obey mint uniqueness; the retiring soul does not count against its
// own agent slot, so an agent can be reborn under the same address.
func (s *Service) Rebirth(ctx context.Context, caller id.Address, oldSoulID id.SoulID, newAgent id.Address, newContentURI string, newContentHash id.ContentHash) (*models.Soul, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(oldSoulID); err != nil {
		return nil, err
	}

	// Spans the old and new soul, so the transaction runs keyless and memory
	// mode serializes globally.
	var successor *models.Soul
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		old, err := s.souls.FindByID(txCtx, oldSoulID)
		if err != nil {
			return wrapSoulErr(err)
		}
		if err := old.CanRebirth(caller, s.strict); err != nil {
			return err
		}

		minted, err := models.NewSoul(newAgent, caller, newContentURI, newContentHash, now)
		if err != nil {
			return err
		}
		if err := s.souls.CreateIfUnique(txCtx, minted, old.ID); err != nil {
			return wrapSoulErr(err)
		}

		if _, err := s.souls.Execute(txCtx, old.ID,
			func(soul *models.Soul) error { return soul.CanRebirth(caller, s.strict) },
			func(soul *models.Soul) { soul.ApplyRebirth(now) },
		); err != nil {
			return wrapSoulErr(err)
		}

		if err := s.lineage.Append(txCtx, old.ID, minted.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record lineage")
		}
		if err := s.emitter.emitSoulReborn(txCtx, minted, old.ID); err != nil {
			return err
		}
		successor = minted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusReborn))
	return successor, nil
}

// Merge retires two souls the caller owns as MERGED and mints their combined
// successor with lineage edges from both.
func (s *Service) Merge(ctx context.Context, caller id.Address, soulA, soulB id.SoulID, mergedAgent id.Address, mergedContentURI string, mergedContentHash id.ContentHash) (*models.Soul, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulA); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulB); err != nil {
		return nil, err
	}
	if soulA == soulB {
		return nil, dErrors.New(dErrors.CodeBadRequest, "cannot merge a soul with itself")
	}

	var merged *models.Soul
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		first, err := s.souls.FindByID(txCtx, soulA)
		if err != nil {
			return wrapSoulErr(err)
		}
		second, err := s.souls.FindByID(txCtx, soulB)
		if err != nil {
			return wrapSoulErr(err)
		}
		if err := first.CanMerge(caller, s.strict); err != nil {
			return err
		}
		if err := second.CanMerge(caller, s.strict); err != nil {
			return err
		}

		minted, err := models.NewSoul(mergedAgent, caller, mergedContentURI, mergedContentHash, now)
		if err != nil {
			return err
		}
		if err := s.souls.CreateIfUnique(txCtx, minted, soulA, soulB); err != nil {
			return wrapSoulErr(err)
		}

		// Row locks are taken in ascending id order so concurrent merges
		// over overlapping souls cannot deadlock.
		for _, parent := range orderedPair(soulA, soulB) {
			if _, err := s.souls.Execute(txCtx, parent,
				func(soul *models.Soul) error { return soul.CanMerge(caller, s.strict) },
				func(soul *models.Soul) { soul.ApplyMerged(now) },
			); err != nil {
				return wrapSoulErr(err)
			}
		}

		for _, parent := range []id.SoulID{soulA, soulB} {
			if err := s.lineage.Append(txCtx, parent, minted.ID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record lineage")
			}
		}
		if err := s.emitter.emitSoulMerged(txCtx, minted, soulA, soulB); err != nil {
			return err
		}
		merged = minted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransition(string(models.StatusMerged))
	return merged, nil
}

func orderedPair(a, b id.SoulID) [2]id.SoulID {
	if a < b {
		return [2]id.SoulID{a, b}
	}
	return [2]id.SoulID{b, a}
}
