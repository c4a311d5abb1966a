package models

import (
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// Move is one balance transfer leg: debit From, credit To.
//
// From and To may be equal (a settlement where payer and payee coincide
// nets to zero but still validates balance and frozen state).
type Move struct {
	From   id.Address `json:"from"`
	To     id.Address `json:"to"`
	Amount uint64     `json:"amount"`
}

func (m Move) Validate() error {
	if m.From.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "move source address cannot be empty")
	}
	if m.To.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "move destination address cannot be empty")
	}
	if m.Amount == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "move amount must be positive")
	}
	return nil
}
