package handler

import (
	dErrors "soulledger/pkg/domain-errors"
)

// DepositRequest is the body for POST /treasury/accounts/{address}/deposit.
type DepositRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *DepositRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "missing request body")
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	return nil
}

// WithdrawRequest is the body for POST /treasury/withdraw.
type WithdrawRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *WithdrawRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "missing request body")
	}
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	return nil
}
