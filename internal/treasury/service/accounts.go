package service

import (
	"context"
	"errors"

	"soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/platform/tx"
	"soulledger/pkg/requestcontext"
)

// accountKey shards memory-mode transactions by account so unrelated accounts
// do not serialize against each other.
func accountKey(address id.Address) string {
	return "account:" + address.String()
}

// Deposit credits amount to address, creating the account on first use. The
// route is treasury-admin gated; the deposit records an on-ramp that already
// happened outside the ledger.
func (s *Service) Deposit(ctx context.Context, caller, address id.Address, amount uint64) (*models.Account, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireAddress(address); err != nil {
		return nil, err
	}

	var account *models.Account
	err := s.tx.RunInTx(tx.WithShard(ctx, accountKey(address)), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		err := s.accounts.ExecuteBatch(txCtx, []id.Address{address},
			func(accounts map[id.Address]*models.Account) error {
				return accounts[address].CanCredit(amount)
			},
			func(accounts map[id.Address]*models.Account) {
				accounts[address].ApplyCredit(amount, now)
				account = accounts[address].Clone()
			},
		)
		if err != nil {
			return wrapAccountErr(err)
		}
		return s.emitter.emitDeposited(txCtx, caller, address, amount)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDeposit()
	return account, nil
}

// Withdraw debits amount from the caller's own account. Callers without an
// account hold nothing, so the debit fails as insufficient balance.
func (s *Service) Withdraw(ctx context.Context, caller id.Address, amount uint64) (*models.Account, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	var account *models.Account
	err := s.tx.RunInTx(tx.WithShard(ctx, accountKey(caller)), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		err := s.accounts.ExecuteBatch(txCtx, []id.Address{caller},
			func(accounts map[id.Address]*models.Account) error {
				return accounts[caller].CanDebit(amount)
			},
			func(accounts map[id.Address]*models.Account) {
				accounts[caller].ApplyDebit(amount, now)
				account = accounts[caller].Clone()
			},
		)
		if err != nil {
			return wrapAccountErr(err)
		}
		return s.emitter.emitWithdrawn(txCtx, caller, amount)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementWithdrawal()
	return account, nil
}

// Freeze blocks debits and credits on address, creating the account when it
// does not exist yet so a freeze can land before first funds do.
func (s *Service) Freeze(ctx context.Context, caller, address id.Address) (*models.Account, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireAddress(address); err != nil {
		return nil, err
	}

	var account *models.Account
	err := s.tx.RunInTx(tx.WithShard(ctx, accountKey(address)), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		err := s.accounts.ExecuteBatch(txCtx, []id.Address{address},
			func(accounts map[id.Address]*models.Account) error {
				return accounts[address].CanFreeze()
			},
			func(accounts map[id.Address]*models.Account) {
				accounts[address].ApplyFreeze(now)
				account = accounts[address].Clone()
			},
		)
		if err != nil {
			return wrapAccountErr(err)
		}
		return s.emitter.emitFrozen(txCtx, caller, address)
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Unfreeze lifts a freeze. Unknown accounts are not frozen, so the unfreeze
// conflicts without creating them.
func (s *Service) Unfreeze(ctx context.Context, caller, address id.Address) (*models.Account, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if err := requireAddress(address); err != nil {
		return nil, err
	}

	var account *models.Account
	err := s.tx.RunInTx(tx.WithShard(ctx, accountKey(address)), func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		err := s.accounts.ExecuteBatch(txCtx, []id.Address{address},
			func(accounts map[id.Address]*models.Account) error {
				return accounts[address].CanUnfreeze()
			},
			func(accounts map[id.Address]*models.Account) {
				accounts[address].ApplyUnfreeze(now)
				account = accounts[address].Clone()
			},
		)
		if err != nil {
			return wrapAccountErr(err)
		}
		return s.emitter.emitUnfrozen(txCtx, caller, address)
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Balance reads the account for address. Addresses the ledger has never seen
// report a zero balance rather than an error.
func (s *Service) Balance(ctx context.Context, address id.Address) (*models.Account, error) {
	if err := requireAddress(address); err != nil {
		return nil, err
	}

	account, err := s.accounts.Find(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewAccount(address, requestcontext.Now(ctx))
		}
		return nil, wrapAccountErr(err)
	}
	return account, nil
}

// PlatformBalance reads the platform fee account.
func (s *Service) PlatformBalance(ctx context.Context) (*models.Account, error) {
	account, err := s.Balance(ctx, id.PlatformAddress)
	if err != nil {
		return nil, err
	}
	s.metrics.SetPlatformBalance(account.Balance)
	return account, nil
}

// EscrowBalance reads the escrow account holding staked funds.
func (s *Service) EscrowBalance(ctx context.Context) (*models.Account, error) {
	account, err := s.Balance(ctx, id.EscrowAddress)
	if err != nil {
		return nil, err
	}
	s.metrics.SetEscrowBalance(account.Balance)
	return account, nil
}
