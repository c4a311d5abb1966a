package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// GetFragments returns the soul's fragments in index order.
func (s *Service) GetFragments(ctx context.Context, soulID id.SoulID) ([]*models.Fragment, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.registry.Get(ctx, soulID); err != nil {
		return nil, err
	}
	fragments, err := s.fragments.FindBySoul(ctx, soulID)
	if err != nil {
		return nil, wrapFragmentErr(err)
	}
	return fragments, nil
}

// DebtorTotal sums the open fragment values owed by address across all souls.
func (s *Service) DebtorTotal(ctx context.Context, debtor id.Address) (uint64, error) {
	if debtor.IsNil() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "debtor address is required")
	}
	total, err := s.fragments.OutstandingByDebtor(ctx, debtor)
	if err != nil {
		return 0, wrapFragmentErr(err)
	}
	return total, nil
}

// GetGraveyard returns the soul's archive entry.
func (s *Service) GetGraveyard(ctx context.Context, soulID id.SoulID) (*models.GraveyardEntry, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	entry, err := s.graveyard.Find(ctx, soulID)
	if err != nil {
		return nil, wrapGraveyardErr(err)
	}
	return entry, nil
}

// Stats aggregates marketplace activity and refreshes the population gauges.
// The three stores are independent, so the reads run concurrently.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	var (
		totals   *models.TradeTotals
		open     int
		archived int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.trades.Totals(gctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate trades")
		}
		totals = t
		return nil
	})
	g.Go(func() error {
		n, err := s.fragments.CountOpen(gctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count fragments")
		}
		open = n
		return nil
	})
	g.Go(func() error {
		n, err := s.graveyard.Count(gctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count graveyard entries")
		}
		archived = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.metrics.SetOpenFragments(open)
	s.metrics.SetArchivedSouls(archived)
	return &models.Stats{
		SalesCount:    totals.SalesCount,
		Volume:        totals.Volume,
		FeesCollected: totals.FeesCollected,
		FeeBps:        s.FeeBps(),
		OpenFragments: open,
		ArchivedSouls: archived,
	}, nil
}
