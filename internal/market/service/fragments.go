package service

import (
	"context"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/tx"
	"soulledger/pkg/requestcontext"
)

// soulKey shards memory-mode transactions by soul, on the same key the
// registry uses, so fragment appends serialize against lifecycle changes of
// the same soul.
func soulKey(soulID id.SoulID) string {
	return "soul:" + soulID.String()
}

// CreateFragment appends a claim against the soul's future value. Owner-only;
// the debtor's outstanding total grows by value.
func (s *Service) CreateFragment(ctx context.Context, caller id.Address, soulID id.SoulID, skillTag string, value uint64, debtor id.Address) (*models.Fragment, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}

	var fragment *models.Fragment
	err := s.tx.RunInTx(tx.WithShard(ctx, soulKey(soulID)), func(txCtx context.Context) error {
		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		if soul.Owner != caller {
			return dErrors.New(dErrors.CodeForbidden, "only the soul's owner may create fragments")
		}

		created, err := models.NewFragment(soulID, skillTag, value, debtor, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.fragments.Append(txCtx, created); err != nil {
			return wrapFragmentErr(err)
		}
		if err := s.emitter.emitFragmentCreated(txCtx, created, caller); err != nil {
			return err
		}
		fragment = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fragment, nil
}

// RepayFragment settles an open fragment: the payer covers at least the
// fragment's value, the soul's current owner receives exactly the value, and
// the overpayment returns to the payer. The fragment is marked repaid exactly
// once; a second repayment conflicts and moves no funds.
func (s *Service) RepayFragment(ctx context.Context, caller id.Address, soulID id.SoulID, index int, payment uint64) (*models.Fragment, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "fragment index cannot be negative")
	}

	var fragment *models.Fragment
	// Spans the fragment, the soul and several accounts, so the transaction
	// runs keyless.
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		open, err := s.fragments.Find(txCtx, soulID, index)
		if err != nil {
			return wrapFragmentErr(err)
		}
		if err := open.CanRepay(); err != nil {
			return err
		}
		if payment < open.Value {
			return dErrors.New(dErrors.CodeInvariantViolation, "payment is below the fragment value")
		}

		soul, err := s.registry.Get(txCtx, soulID)
		if err != nil {
			return err
		}
		moves := escrowed(caller, soul.Owner, payment, open.Value)
		if err := s.treasury.CanSettle(txCtx, moves); err != nil {
			return err
		}

		repaid, err := s.fragments.Execute(txCtx, soulID, index,
			func(fragment *models.Fragment) error { return fragment.CanRepay() },
			func(fragment *models.Fragment) { fragment.ApplyRepayment(requestcontext.Now(txCtx)) },
		)
		if err != nil {
			return wrapFragmentErr(err)
		}

		if err := s.registry.CreditEarnings(txCtx, soulID, repaid.Value); err != nil {
			return err
		}
		if err := s.treasury.Settle(txCtx, moves); err != nil {
			return err
		}
		if err := s.emitter.emitFragmentRepaid(txCtx, repaid, caller, soul.Owner); err != nil {
			return err
		}
		fragment = repaid
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRepayment()
	return fragment, nil
}
