package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/requestcontext"
)

// CanSettle verifies that every move in the batch would clear: accounts
// unfrozen, sources funded, destinations not overflowing. Moves apply in
// order against a scratch copy, so a later leg may spend what an earlier leg
// delivered. Nothing is written. Callers run it inside their transaction
// before mutating their own state; Settle revalidates under account locks, so
// in postgres a lost race rolls the whole transaction back.
func (s *Service) CanSettle(ctx context.Context, moves []models.Move) error {
	if len(moves) == 0 {
		return nil
	}

	accounts := make(map[id.Address]*models.Account, len(moves)*2)
	now := requestcontext.Now(ctx)
	for _, address := range moveAddresses(moves) {
		account, err := s.accounts.Find(ctx, address)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				return wrapAccountErr(err)
			}
			account, err = models.NewAccount(address, now)
			if err != nil {
				return err
			}
		}
		accounts[address] = account
	}

	return applyMoves(accounts, moves, now)
}

// Settle moves funds for every leg of the batch, all or nothing. It joins the
// caller's transaction and emits no event; the slice that ordered the moves
// owns the domain event. Destination accounts are created as needed.
func (s *Service) Settle(ctx context.Context, moves []models.Move) error {
	if len(moves) == 0 {
		return nil
	}

	// Keyless: settlements span accounts, so memory mode takes every shard
	// unless an enclosing transaction already holds them.
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		err := s.accounts.ExecuteBatch(txCtx, moveAddresses(moves),
			func(accounts map[id.Address]*models.Account) error {
				return simulateMoves(accounts, moves, now)
			},
			func(accounts map[id.Address]*models.Account) {
				// Simulation passed, so the same sequence cannot fail here.
				_ = applyMoves(accounts, moves, now)
			},
		)
		return wrapAccountErr(err)
	})
	if err != nil {
		s.metrics.IncrementSettlement(settlementOutcome(err))
		return err
	}

	s.metrics.IncrementSettlement("ok")
	return nil
}

// Transfer moves amount between two accounts inside the caller's transaction.
func (s *Service) Transfer(ctx context.Context, from, to id.Address, amount uint64) error {
	return s.Settle(ctx, []models.Move{{From: from, To: to, Amount: amount}})
}

func settlementOutcome(err error) string {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return "rejected"
	}
	return "error"
}

// moveAddresses collects every account a batch touches, duplicates included;
// the store dedupes and orders them for locking.
func moveAddresses(moves []models.Move) []id.Address {
	addresses := make([]id.Address, 0, len(moves)*2)
	for _, move := range moves {
		addresses = append(addresses, move.From, move.To)
	}
	return addresses
}

// simulateMoves runs the batch against clones, leaving accounts untouched.
func simulateMoves(accounts map[id.Address]*models.Account, moves []models.Move, now time.Time) error {
	scratch := make(map[id.Address]*models.Account, len(accounts))
	for address, account := range accounts {
		scratch[address] = account.Clone()
	}
	return applyMoves(scratch, moves, now)
}

// applyMoves debits and credits each leg in order. The first violation stops
// the batch with the offending account named.
func applyMoves(accounts map[id.Address]*models.Account, moves []models.Move, now time.Time) error {
	for _, move := range moves {
		if err := move.Validate(); err != nil {
			return err
		}
		from, to := accounts[move.From], accounts[move.To]
		if from == nil || to == nil {
			return dErrors.Newf(dErrors.CodeInternal, "settlement account not loaded: %s", missingAddress(accounts, move))
		}
		if err := from.Debit(move.Amount, now); err != nil {
			return accountErr(move.From, err)
		}
		if err := to.Credit(move.Amount, now); err != nil {
			return accountErr(move.To, err)
		}
	}
	return nil
}

func missingAddress(accounts map[id.Address]*models.Account, move models.Move) id.Address {
	if accounts[move.From] == nil {
		return move.From
	}
	return move.To
}

// accountErr prefixes the account so a multi-leg failure names the leg.
func accountErr(address id.Address, err error) error {
	return dErrors.Wrap(err, dErrors.GetCode(err), fmt.Sprintf("account %s: %s", address, dErrors.Message(err)))
}
