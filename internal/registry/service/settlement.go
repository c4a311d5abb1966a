package service

import (
	"context"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/requestcontext"
)

// Settlement-facing mutations. The registry stays the sole writer of soul
// state; the marketplace calls in through these instead of touching the
// store. Both methods join the caller's transaction and emit no events, the
// settlement operation that invoked them emits the single event for the
// whole trade.

// RecordSale validates the purchase against the soul's state and applies the
// ownership transfer, returning the seller and price captured at the moment
// of sale.
func (s *Service) RecordSale(ctx context.Context, soulID id.SoulID, buyer id.Address) (*models.Sale, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	sale := &models.Sale{}
	soul, err := s.souls.Execute(ctx, soulID,
		func(soul *models.Soul) error {
			if err := soul.CanPurchase(buyer); err != nil {
				return err
			}
			sale.Seller = soul.Owner
			sale.Price = soul.ListingPrice
			return nil
		},
		func(soul *models.Soul) {
			soul.ApplySale(buyer, now)
		},
	)
	if err != nil {
		return nil, wrapSoulErr(err)
	}

	sale.Soul = soul
	s.metrics.IncrementTransition(string(models.StatusDead))
	return sale, nil
}

// CreditEarnings adds a settlement credit to the soul's earnings counters.
func (s *Service) CreditEarnings(ctx context.Context, soulID id.SoulID, amount uint64) error {
	if err := requireSoulID(soulID); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	now := requestcontext.Now(ctx)

	_, err := s.souls.Execute(ctx, soulID,
		func(soul *models.Soul) error { return nil },
		func(soul *models.Soul) { soul.CreditEarnings(amount, now) },
	)
	if err != nil {
		return wrapSoulErr(err)
	}
	return nil
}
