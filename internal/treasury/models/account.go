package models

import (
	"math"
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// Account is a treasury balance record for one address.
//
// Invariants:
//   - Address is non-empty and immutable after construction
//   - Balance never goes negative (debits are validated first)
//   - Balance never exceeds MaxBalance, so every backing store holds it exactly
//   - A frozen account can neither send nor receive funds
//   - CreatedAt is immutable after construction
//
// Reserved ledger accounts (escrow, platform) are ordinary Accounts whose
// addresses cannot be produced by id.ParseAddress, so external callers can
// never deposit to or withdraw from them directly.
type Account struct {
	Address   id.Address `json:"address"`
	Balance   uint64     `json:"balance"`
	Frozen    bool       `json:"frozen"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MaxBalance caps account balances at the BIGINT range shared by the
// Postgres store, so balances round-trip every backend without truncation.
const MaxBalance uint64 = math.MaxInt64

func NewAccount(address id.Address, now time.Time) (*Account, error) {
	if address.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account address cannot be empty")
	}
	return &Account{
		Address:   address,
		Balance:   0,
		Frozen:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns an independent copy. Balance batches simulate moves on
// clones so that a failed validation never leaves a partial write behind.
func (a *Account) Clone() *Account {
	copied := *a
	return &copied
}

// CanDebit checks whether amount can be withdrawn from the account.
// Use with ApplyDebit in Execute callbacks.
func (a *Account) CanDebit(amount uint64) error {
	if a.Frozen {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is frozen")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "debit amount must be positive")
	}
	if a.Balance < amount {
		return dErrors.New(dErrors.CodeInvariantViolation, "insufficient balance")
	}
	return nil
}

// ApplyDebit subtracts amount from the balance. Call CanDebit first.
func (a *Account) ApplyDebit(amount uint64, now time.Time) {
	a.Balance -= amount
	a.UpdatedAt = now
}

// Debit validates and applies a withdrawal in one call.
// Prefer CanDebit + ApplyDebit for Execute callback pattern.
func (a *Account) Debit(amount uint64, now time.Time) error {
	if err := a.CanDebit(amount); err != nil {
		return err
	}
	a.ApplyDebit(amount, now)
	return nil
}

// CanCredit checks whether amount can be added to the account.
// Use with ApplyCredit in Execute callbacks.
func (a *Account) CanCredit(amount uint64) error {
	if a.Frozen {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is frozen")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "credit amount must be positive")
	}
	if amount > MaxBalance || a.Balance > MaxBalance-amount {
		return dErrors.New(dErrors.CodeInvariantViolation, "credit would overflow balance")
	}
	return nil
}

// ApplyCredit adds amount to the balance. Call CanCredit first.
func (a *Account) ApplyCredit(amount uint64, now time.Time) {
	a.Balance += amount
	a.UpdatedAt = now
}

// Credit validates and applies a deposit in one call.
// Prefer CanCredit + ApplyCredit for Execute callback pattern.
func (a *Account) Credit(amount uint64, now time.Time) error {
	if err := a.CanCredit(amount); err != nil {
		return err
	}
	a.ApplyCredit(amount, now)
	return nil
}

// CanFreeze checks whether the account can be frozen.
func (a *Account) CanFreeze() error {
	if a.Frozen {
		return dErrors.New(dErrors.CodeConflict, "account is already frozen")
	}
	return nil
}

// ApplyFreeze marks the account frozen. Call CanFreeze first.
func (a *Account) ApplyFreeze(now time.Time) {
	a.Frozen = true
	a.UpdatedAt = now
}

// Freeze validates and applies the freeze in one call.
func (a *Account) Freeze(now time.Time) error {
	if err := a.CanFreeze(); err != nil {
		return err
	}
	a.ApplyFreeze(now)
	return nil
}

// CanUnfreeze checks whether the account can be unfrozen.
func (a *Account) CanUnfreeze() error {
	if !a.Frozen {
		return dErrors.New(dErrors.CodeConflict, "account is not frozen")
	}
	return nil
}

// ApplyUnfreeze clears the frozen flag. Call CanUnfreeze first.
func (a *Account) ApplyUnfreeze(now time.Time) {
	a.Frozen = false
	a.UpdatedAt = now
}

// Unfreeze validates and applies the unfreeze in one call.
func (a *Account) Unfreeze(now time.Time) error {
	if err := a.CanUnfreeze(); err != nil {
		return err
	}
	a.ApplyUnfreeze(now)
	return nil
}
