package handler

import (
	"time"

	"soulledger/internal/market/models"
)

// TradeResponse is the HTTP form of a settled purchase.
type TradeResponse struct {
	SoulID    uint64    `json:"soul_id"`
	Seller    string    `json:"seller"`
	Buyer     string    `json:"buyer"`
	Price     uint64    `json:"price"`
	Fee       uint64    `json:"fee"`
	CreatedAt time.Time `json:"created_at"`
}

// FromTrade converts a domain trade to its HTTP response.
func FromTrade(trade *models.Trade) *TradeResponse {
	return &TradeResponse{
		SoulID:    uint64(trade.SoulID),
		Seller:    trade.Seller.String(),
		Buyer:     trade.Buyer.String(),
		Price:     trade.Price,
		Fee:       trade.Fee,
		CreatedAt: trade.CreatedAt,
	}
}

// FragmentResponse is the HTTP form of a fragment record.
type FragmentResponse struct {
	SoulID    uint64     `json:"soul_id"`
	Index     int        `json:"index"`
	SkillTag  string     `json:"skill_tag"`
	Value     uint64     `json:"value"`
	Debtor    string     `json:"debtor"`
	Repaid    bool       `json:"repaid"`
	CreatedAt time.Time  `json:"created_at"`
	RepaidAt  *time.Time `json:"repaid_at,omitempty"`
}

// FromFragment converts a domain fragment to its HTTP response.
func FromFragment(fragment *models.Fragment) *FragmentResponse {
	resp := &FragmentResponse{
		SoulID:    uint64(fragment.ParentSoulID),
		Index:     fragment.Index,
		SkillTag:  fragment.SkillTag,
		Value:     fragment.Value,
		Debtor:    fragment.Debtor.String(),
		Repaid:    fragment.Repaid,
		CreatedAt: fragment.CreatedAt,
	}
	if !fragment.RepaidAt.IsZero() {
		t := fragment.RepaidAt
		resp.RepaidAt = &t
	}
	return resp
}

// FragmentsResponse is the HTTP response for GET /souls/{id}/fragments.
// Fragments are ordered by index.
type FragmentsResponse struct {
	SoulID    uint64              `json:"soul_id"`
	Fragments []*FragmentResponse `json:"fragments"`
}

// GraveyardResponse is the HTTP form of a graveyard entry.
type GraveyardResponse struct {
	SoulID        uint64    `json:"soul_id"`
	FinalBalance  uint64    `json:"final_balance"`
	Resurrectable bool      `json:"resurrectable"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// FromGraveyardEntry converts a domain graveyard entry to its HTTP response.
func FromGraveyardEntry(entry *models.GraveyardEntry) *GraveyardResponse {
	return &GraveyardResponse{
		SoulID:        uint64(entry.SoulID),
		FinalBalance:  entry.FinalBalance,
		Resurrectable: entry.Resurrectable,
		ArchivedAt:    entry.ArchivedAt,
	}
}

// DebtorResponse is the HTTP response for GET /market/debtors/{address}.
type DebtorResponse struct {
	Debtor      string `json:"debtor"`
	Outstanding uint64 `json:"outstanding"`
}

// StatsResponse is the HTTP response for GET /market/stats.
type StatsResponse struct {
	SalesCount    int    `json:"sales_count"`
	Volume        uint64 `json:"volume"`
	FeesCollected uint64 `json:"fees_collected"`
	FeeBps        uint64 `json:"fee_bps"`
	OpenFragments int    `json:"open_fragments"`
	ArchivedSouls int    `json:"archived_souls"`
}

// FromStats converts marketplace aggregates to their HTTP response.
func FromStats(stats *models.Stats) *StatsResponse {
	return &StatsResponse{
		SalesCount:    stats.SalesCount,
		Volume:        stats.Volume,
		FeesCollected: stats.FeesCollected,
		FeeBps:        stats.FeeBps,
		OpenFragments: stats.OpenFragments,
		ArchivedSouls: stats.ArchivedSouls,
	}
}

// FeeResponse is the HTTP response for PUT /market/fee.
type FeeResponse struct {
	FeeBps uint64 `json:"fee_bps"`
}
