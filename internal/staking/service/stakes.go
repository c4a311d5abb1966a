package service

import (
	"context"
	"time"

	registrymodels "soulledger/internal/registry/models"
	"soulledger/internal/staking/models"
	treasurymodels "soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/requestcontext"
)

// PlaceStake wagers amount on the soul's lifecycle outcome for the given
// window. The soul must be ALIVE at placement; the amount moves into escrow
// and the (soul, kind) pool grows, all in one transaction. There is no
// withdrawal once placed.
func (s *Service) PlaceStake(ctx context.Context, staker id.Address, soulID id.SoulID, kind models.Kind, amount uint64, duration time.Duration) (*models.Stake, error) {
	if err := requireCaller(staker); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if duration < s.minDuration || duration > s.maxDuration {
		return nil, dErrors.Newf(dErrors.CodeValidation, "stake duration must be between %s and %s", s.minDuration, s.maxDuration)
	}

	var stake *models.Stake
	// Spans the stake, the pool and two accounts, so the transaction runs
	// keyless and memory mode serializes globally.
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if soul.Status != registrymodels.StatusAlive {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "stakes require a living soul, got %s", soul.Status)
		}

		placed, err := models.NewStake(staker, soulID, kind, amount, duration, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		moves := []treasurymodels.Move{{From: staker, To: id.EscrowAddress, Amount: amount}}
		if err := s.treasury.CanSettle(txCtx, moves); err != nil {
			return err
		}

		if err := s.stakes.Create(txCtx, placed); err != nil {
			return wrapStakeErr(err)
		}
		pool, err := s.stakes.ExecutePool(txCtx, soulID,
			func(pool *models.Pool) error { return nil },
			func(pool *models.Pool) { pool.Grow(kind, amount, placed.CreatedAt) },
		)
		if err != nil {
			return wrapStakeErr(err)
		}

		if err := s.treasury.Settle(txCtx, moves); err != nil {
			return err
		}
		if err := s.emitter.emitStakeCreated(txCtx, placed); err != nil {
			return err
		}
		if err := s.emitter.emitPoolUpdated(txCtx, pool, staker); err != nil {
			return err
		}
		stake = placed
		return nil
	})
	if err != nil {
		s.metrics.IncrementStake(stakeOutcome(err))
		return nil, err
	}

	s.metrics.IncrementStake("ok")
	s.metrics.AddStakedVolume(stake.Amount)
	s.invalidateOdds(ctx, soulID)
	return stake, nil
}

// Resolve settles an expired stake against the soul's current status:
// SURVIVE wins unless the soul is DEAD, DIE wins only when it is. Anyone may
// resolve once the window closes. A winner is paid its amount plus a share
// of the losing pool, less the platform fee, out of escrow; a loser forfeits
// its amount to the winning side. The resolved stake leaves its pool and a
// paid-out share leaves the losing pool, so later resolutions divide over
// what remains. Rounding dust stays in escrow.
func (s *Service) Resolve(ctx context.Context, caller id.Address, stakeID id.StakeID) (*models.Stake, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireStakeID(stakeID); err != nil {
		return nil, err
	}

	var (
		stake  *models.Stake
		soulID id.SoulID
	)
	// Spans the stake, the pool and up to three accounts, so the transaction
	// runs keyless.
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		open, err := s.stakes.Find(txCtx, stakeID)
		if err != nil {
			return wrapStakeErr(err)
		}
		if err := open.CanResolve(now); err != nil {
			return err
		}
		soulID = open.SoulID

		soul, err := s.registry.Get(txCtx, open.SoulID)
		if err != nil {
			return err
		}
		won := wins(open.Kind, soul.Status)

		pool, err := s.stakes.FindPool(txCtx, open.SoulID)
		if err != nil {
			return wrapStakeErr(err)
		}

		var (
			payout models.Payout
			moves  []treasurymodels.Move
		)
		if won {
			payout = models.ComputePayout(open.Amount, pool.Side(open.Kind), pool.Side(open.Kind.Opposite()), s.PlatformFeeBps())
			moves = payoutMoves(open.Staker, payout)
			if err := s.treasury.CanSettle(txCtx, moves); err != nil {
				return err
			}
		}

		// State before transfer: the stake locks its outcome and the pools
		// shrink before escrow pays out, so a failed leg rolls everything
		// back together.
		resolved, err := s.stakes.Execute(txCtx, stakeID,
			func(stake *models.Stake) error { return stake.CanResolve(now) },
			func(stake *models.Stake) { stake.ApplyResolution(won, payout.Net, now) },
		)
		if err != nil {
			return wrapStakeErr(err)
		}

		updated, err := s.stakes.ExecutePool(txCtx, open.SoulID,
			func(pool *models.Pool) error { return nil },
			func(pool *models.Pool) {
				pool.Shrink(resolved.Kind, resolved.Amount, now)
				if won {
					pool.Shrink(resolved.Kind.Opposite(), payout.Share, now)
				}
			},
		)
		if err != nil {
			return wrapStakeErr(err)
		}

		if err := s.treasury.Settle(txCtx, moves); err != nil {
			return err
		}
		if err := s.emitter.emitStakeResolved(txCtx, resolved, caller); err != nil {
			return err
		}
		if err := s.emitter.emitPoolUpdated(txCtx, updated, caller); err != nil {
			return err
		}
		stake = resolved
		return nil
	})
	if err != nil {
		s.metrics.IncrementResolution(resolutionOutcome(err))
		return nil, err
	}

	s.metrics.IncrementResolution(resolutionResult(stake))
	s.invalidateOdds(ctx, soulID)
	return stake, nil
}

// wins applies the outcome rule: DEAD is the only losing status for a
// SURVIVE stake, and the only winning one for DIE. A purchased, reborn or
// merged soul counts as having survived.
func wins(kind models.Kind, status registrymodels.Status) bool {
	dead := status == registrymodels.StatusDead
	if kind == models.KindDie {
		return dead
	}
	return !dead
}

// payoutMoves pays the winner and the platform out of escrow. Zero-amount
// legs are omitted.
func payoutMoves(staker id.Address, payout models.Payout) []treasurymodels.Move {
	var moves []treasurymodels.Move
	if payout.Net > 0 {
		moves = append(moves, treasurymodels.Move{From: id.EscrowAddress, To: staker, Amount: payout.Net})
	}
	if payout.Fee > 0 {
		moves = append(moves, treasurymodels.Move{From: id.EscrowAddress, To: id.PlatformAddress, Amount: payout.Fee})
	}
	return moves
}

func stakeOutcome(err error) string {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) || dErrors.HasCode(err, dErrors.CodeValidation) {
		return "rejected"
	}
	return "error"
}

func resolutionOutcome(err error) string {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) || dErrors.HasCode(err, dErrors.CodeConflict) {
		return "rejected"
	}
	return "error"
}

func resolutionResult(stake *models.Stake) string {
	if stake.Won {
		return "won"
	}
	return "lost"
}

// SetPlatformFeeBps updates the platform fee for future resolutions. The
// handler gates this behind the fee admin; the service only validates the
// range.
func (s *Service) SetPlatformFeeBps(ctx context.Context, caller id.Address, bps uint64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if bps > models.MaxPlatformFeeBps {
		return dErrors.Newf(dErrors.CodeValidation, "fee must be between 0 and %d basis points", models.MaxPlatformFeeBps)
	}

	if err := s.emitter.emitFeeUpdated(ctx, caller, s.PlatformFeeBps(), bps); err != nil {
		return err
	}
	s.feeMu.Lock()
	s.feeBps = bps
	s.feeMu.Unlock()
	return nil
}
