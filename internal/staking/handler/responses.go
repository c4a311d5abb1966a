package handler

import (
	"time"

	"soulledger/internal/staking/models"
)

// StakeResponse is the HTTP form of a stake record.
type StakeResponse struct {
	ID            uint64     `json:"id"`
	Staker        string     `json:"staker"`
	SoulID        uint64     `json:"soul_id"`
	Kind          string     `json:"kind"`
	Amount        uint64     `json:"amount"`
	DurationHours uint64     `json:"duration_hours"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Resolved      bool       `json:"resolved"`
	Won           bool       `json:"won"`
	Payout        uint64     `json:"payout"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// FromStake converts a domain stake to its HTTP response.
func FromStake(stake *models.Stake) *StakeResponse {
	resp := &StakeResponse{
		ID:            uint64(stake.ID),
		Staker:        stake.Staker.String(),
		SoulID:        uint64(stake.SoulID),
		Kind:          stake.Kind.String(),
		Amount:        stake.Amount,
		DurationHours: uint64(stake.Duration / time.Hour),
		CreatedAt:     stake.CreatedAt,
		ExpiresAt:     stake.ExpiresAt,
		Resolved:      stake.Resolved,
		Won:           stake.Won,
		Payout:        stake.Payout,
	}
	if !stake.ResolvedAt.IsZero() {
		t := stake.ResolvedAt
		resp.ResolvedAt = &t
	}
	return resp
}

// StakesResponse is the HTTP response for GET /souls/{id}/stakes. Stakes are
// ordered by placement.
type StakesResponse struct {
	SoulID uint64           `json:"soul_id"`
	Stakes []*StakeResponse `json:"stakes"`
}

// PoolResponse is the HTTP form of a soul's pool totals.
type PoolResponse struct {
	SoulID      uint64 `json:"soul_id"`
	SurvivePool uint64 `json:"survive_pool"`
	DiePool     uint64 `json:"die_pool"`
	Total       uint64 `json:"total"`
}

// FromPool converts a domain pool to its HTTP response.
func FromPool(pool *models.Pool) *PoolResponse {
	return &PoolResponse{
		SoulID:      uint64(pool.SoulID),
		SurvivePool: pool.SurvivePool,
		DiePool:     pool.DiePool,
		Total:       pool.Total(),
	}
}

// OddsResponse is the HTTP response for GET /souls/{id}/odds.
type OddsResponse struct {
	SoulID       uint64 `json:"soul_id"`
	SurvivalOdds uint64 `json:"survival_odds"`
}

// FeeResponse is the HTTP response for PUT /staking/fee.
type FeeResponse struct {
	FeeBps uint64 `json:"fee_bps"`
}
