package service

import (
	"context"

	"soulledger/internal/market/models"
	treasurymodels "soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/requestcontext"
)

// Purchase transfers the listed soul to buyer and settles the funds in one
// transaction. The buyer's full payment lands in escrow, the seller is paid
// their proceeds out of it, the fee recipient the fee, and the overpayment
// returns to the buyer. The sale ends the prior incarnation, so the soul
// lands DEAD under its new owner. Any failed leg reverts everything.
func (s *Service) Purchase(ctx context.Context, buyer id.Address, soulID id.SoulID, payment uint64) (*models.Trade, error) {
	if err := requireCaller(buyer); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var trade *models.Trade
	// Spans the soul and several accounts, so the transaction runs keyless
	// and memory mode serializes globally.
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if err := soul.CanPurchase(buyer); err != nil {
			return err
		}
		if payment < soul.ListingPrice {
			return dErrors.New(dErrors.CodeInvariantViolation, "payment is below the listing price")
		}

		fee, _ := models.SplitFee(soul.ListingPrice, s.FeeBps())
		moves := purchaseMoves(buyer, soul.Owner, s.feeRecipient, payment, soul.ListingPrice, fee)
		if err := s.treasury.CanSettle(txCtx, moves); err != nil {
			return err
		}

		// State before transfer: the registry captures seller and price under
		// the row lock, then funds move against the captured values. Settle
		// revalidates the accounts, and a lost race rolls the sale back too.
		sale, err := s.registry.RecordSale(txCtx, soulID, buyer)
		if err != nil {
			return err
		}
		if payment < sale.Price {
			return dErrors.New(dErrors.CodeInvariantViolation, "payment is below the listing price")
		}
		fee, proceeds := models.SplitFee(sale.Price, s.FeeBps())
		if err := s.registry.CreditEarnings(txCtx, soulID, proceeds); err != nil {
			return err
		}

		settled := &models.Trade{
			SoulID:    soulID,
			Seller:    sale.Seller,
			Buyer:     buyer,
			Price:     sale.Price,
			Fee:       fee,
			CreatedAt: requestcontext.Now(txCtx),
		}
		if err := s.trades.Append(txCtx, settled); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record trade")
		}

		if err := s.treasury.Settle(txCtx, purchaseMoves(buyer, sale.Seller, s.feeRecipient, payment, sale.Price, fee)); err != nil {
			return err
		}
		if err := s.emitter.emitSoulPurchased(txCtx, settled); err != nil {
			return err
		}
		trade = settled
		return nil
	})
	if err != nil {
		s.metrics.IncrementPurchase(purchaseOutcome(err))
		return nil, err
	}

	s.metrics.IncrementPurchase("ok")
	s.metrics.AddVolume(trade.Price)
	return trade, nil
}

func purchaseOutcome(err error) string {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) || dErrors.HasCode(err, dErrors.CodeConflict) {
		return "rejected"
	}
	return "error"
}

// purchaseMoves routes the trade through escrow so one batch both collects
// the payment and pays out of it: the buyer's full payment lands first and
// the later legs spend it. Zero-amount legs are omitted.
func purchaseMoves(buyer, seller, feeRecipient id.Address, payment, price, fee uint64) []treasurymodels.Move {
	moves := []treasurymodels.Move{{From: buyer, To: id.EscrowAddress, Amount: payment}}
	if proceeds := price - fee; proceeds > 0 {
		moves = append(moves, treasurymodels.Move{From: id.EscrowAddress, To: seller, Amount: proceeds})
	}
	if fee > 0 {
		moves = append(moves, treasurymodels.Move{From: id.EscrowAddress, To: feeRecipient, Amount: fee})
	}
	if refund := payment - price; refund > 0 {
		moves = append(moves, treasurymodels.Move{From: id.EscrowAddress, To: buyer, Amount: refund})
	}
	return moves
}

// escrowed routes a single payment through escrow: the payer's full payment
// lands first, the recipient is paid amount out of it, and the rest returns
// to the payer. Zero-amount legs are omitted.
func escrowed(payer, recipient id.Address, payment, amount uint64) []treasurymodels.Move {
	moves := []treasurymodels.Move{{From: payer, To: id.EscrowAddress, Amount: payment}}
	if amount > 0 {
		moves = append(moves, treasurymodels.Move{From: id.EscrowAddress, To: recipient, Amount: amount})
	}
	if refund := payment - amount; refund > 0 {
		moves = append(moves, treasurymodels.Move{From: id.EscrowAddress, To: payer, Amount: refund})
	}
	return moves
}

// SetFeeBps updates the marketplace fee for future purchases. The handler
// gates this behind the fee admin; the service only validates the range.
func (s *Service) SetFeeBps(ctx context.Context, caller id.Address, bps uint64) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if bps > models.MaxFeeBps {
		return dErrors.Newf(dErrors.CodeValidation, "fee must be between 0 and %d basis points", models.MaxFeeBps)
	}

	if err := s.emitter.emitFeeUpdated(ctx, caller, s.FeeBps(), bps); err != nil {
		return err
	}
	s.feeMu.Lock()
	s.feeBps = bps
	s.feeMu.Unlock()
	return nil
}
