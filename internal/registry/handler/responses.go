package handler

import (
	"time"

	"soulledger/internal/registry/models"
)

// SoulResponse is the HTTP form of a soul record.
type SoulResponse struct {
	ID            uint64     `json:"id"`
	Owner         string     `json:"owner"`
	Agent         string     `json:"agent"`
	Creator       string     `json:"creator"`
	ContentURI    string     `json:"content_uri"`
	ContentHash   string     `json:"content_hash"`
	Status        string     `json:"status"`
	ListingPrice  uint64     `json:"listing_price"`
	BirthTime     time.Time  `json:"birth_time"`
	DeathTime     *time.Time `json:"death_time,omitempty"`
	DeathCause    string     `json:"death_cause,omitempty"`
	FinalBalance  uint64     `json:"final_balance"`
	TotalEarnings uint64     `json:"total_earnings"`
	WorkCount     uint64     `json:"work_count"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FromSoul converts a domain soul to its HTTP response.
func FromSoul(soul *models.Soul) *SoulResponse {
	resp := &SoulResponse{
		ID:            uint64(soul.ID),
		Owner:         soul.Owner.String(),
		Agent:         soul.Agent.String(),
		Creator:       soul.Creator.String(),
		ContentURI:    soul.ContentURI,
		ContentHash:   soul.ContentHash.String(),
		Status:        string(soul.Status),
		ListingPrice:  soul.ListingPrice,
		BirthTime:     soul.BirthTime,
		DeathCause:    soul.DeathCause,
		FinalBalance:  soul.FinalBalance,
		TotalEarnings: soul.TotalEarnings,
		WorkCount:     soul.WorkCount,
		UpdatedAt:     soul.UpdatedAt,
	}
	if !soul.DeathTime.IsZero() {
		t := soul.DeathTime
		resp.DeathTime = &t
	}
	return resp
}

// LineageResponse is the HTTP response for GET /souls/{id}/lineage.
type LineageResponse struct {
	SoulID   uint64   `json:"soul_id"`
	Children []uint64 `json:"children"`
}

// HistoryResponse is the HTTP response for GET /souls/{id}/history.
// Ancestors are ordered nearest generation first.
type HistoryResponse struct {
	SoulID    uint64          `json:"soul_id"`
	Ancestors []*SoulResponse `json:"ancestors"`
}

// StatsResponse is the HTTP response for GET /registry/stats.
type StatsResponse struct {
	TotalSouls int            `json:"total_souls"`
	ByStatus   map[string]int `json:"by_status"`
}

// FromStats converts registry population counts to their HTTP response.
func FromStats(stats *models.Stats) *StatsResponse {
	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	return &StatsResponse{
		TotalSouls: stats.TotalSouls,
		ByStatus:   byStatus,
	}
}
