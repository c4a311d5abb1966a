package handler

import (
	"time"

	"soulledger/internal/treasury/models"
)

// AccountResponse is the HTTP form of a treasury account.
type AccountResponse struct {
	Address   string    `json:"address"`
	Balance   uint64    `json:"balance"`
	Frozen    bool      `json:"frozen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromAccount converts a domain account to its HTTP response.
func FromAccount(account *models.Account) *AccountResponse {
	return &AccountResponse{
		Address:   account.Address.String(),
		Balance:   account.Balance,
		Frozen:    account.Frozen,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}
