package service

import (
	"context"

	"soulledger/internal/staking/models"
	id "soulledger/pkg/domain"
)

// GetStake returns one stake by id.
func (s *Service) GetStake(ctx context.Context, stakeID id.StakeID) (*models.Stake, error) {
	if err := requireStakeID(stakeID); err != nil {
		return nil, err
	}
	stake, err := s.stakes.Find(ctx, stakeID)
	if err != nil {
		return nil, wrapStakeErr(err)
	}
	return stake, nil
}

// StakesBySoul returns the soul's stakes in placement order.
func (s *Service) StakesBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Stake, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return nil, err
	}
	stakes, err := s.stakes.FindBySoul(ctx, soulID)
	if err != nil {
		return nil, wrapStakeErr(err)
	}
	return stakes, nil
}

// Pools returns the soul's open pool totals and refreshes the open-stake
// gauge.
func (s *Service) Pools(ctx context.Context, soulID id.SoulID) (*models.Pool, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return nil, err
	}
	pool, err := s.stakes.FindPool(ctx, soulID)
	if err != nil {
		return nil, wrapStakeErr(err)
	}

	if open, err := s.stakes.CountOpen(ctx); err == nil {
		s.metrics.SetOpenStakes(open)
	}
	return pool, nil
}

// SurvivalOdds returns the percentage of the open pool wagered on survival,
// or the neutral default while nothing is staked. Served from cache when one
// is configured; cache failures fall back to store reads.
func (s *Service) SurvivalOdds(ctx context.Context, soulID id.SoulID) (uint64, error) {
	if err := requireSoulID(soulID); err != nil {
		return 0, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return 0, err
	}

	if s.odds != nil {
		odds, ok, err := s.odds.Get(ctx, soulID)
		switch {
		case err != nil:
			s.metrics.IncrementOddsCache("error")
			s.emitter.logger.WarnContext(ctx, "odds cache read failed",
				"soul_id", soulID.String(),
				"error", err,
			)
		case ok:
			s.metrics.IncrementOddsCache("hit")
			return odds, nil
		default:
			s.metrics.IncrementOddsCache("miss")
		}
	}

	pool, err := s.stakes.FindPool(ctx, soulID)
	if err != nil {
		return 0, wrapStakeErr(err)
	}
	odds := pool.Odds()

	if s.odds != nil {
		if err := s.odds.Set(ctx, soulID, odds); err != nil {
			s.emitter.logger.WarnContext(ctx, "odds cache write failed",
				"soul_id", soulID.String(),
				"error", err,
			)
		}
	}
	return odds, nil
}

// invalidateOdds drops the cached odds after a pool change. Runs after the
// transaction commits; a failed invalidation only delays freshness until the
// cache TTL expires.
func (s *Service) invalidateOdds(ctx context.Context, soulID id.SoulID) {
	if s.odds == nil {
		return
	}
	if err := s.odds.Invalidate(ctx, soulID); err != nil {
		s.emitter.logger.WarnContext(ctx, "odds cache invalidation failed",
			"soul_id", soulID.String(),
			"error", err,
		)
	}
}
