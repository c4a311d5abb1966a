package models

import (
	id "soulledger/pkg/domain"
)

// Stats summarizes the registry population by lifecycle state.
type Stats struct {
	TotalSouls int            `json:"total_souls"`
	ByStatus   map[Status]int `json:"by_status"`
}

// Sale captures what settlement needs from a completed ownership transfer:
// the updated soul plus the seller and price as they were at the instant of
// sale, both overwritten on the soul itself by the transfer.
type Sale struct {
	Soul   *Soul
	Seller id.Address
	Price  uint64
}
