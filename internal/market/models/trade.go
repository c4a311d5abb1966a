package models

import (
	"math/bits"
	"time"

	id "soulledger/pkg/domain"
)

// MaxFeeBps caps the marketplace fee at 10%.
const MaxFeeBps uint64 = 1000

// Trade records one completed purchase settlement: who sold, who bought, the
// captured price and the fee split out of it.
type Trade struct {
	SoulID    id.SoulID  `json:"soul_id"`
	Seller    id.Address `json:"seller"`
	Buyer     id.Address `json:"buyer"`
	Price     uint64     `json:"price"`
	Fee       uint64     `json:"fee"`
	CreatedAt time.Time  `json:"created_at"`
}

// TradeTotals aggregates settled trades.
type TradeTotals struct {
	SalesCount    int
	Volume        uint64
	FeesCollected uint64
}

// Stats summarizes marketplace activity.
type Stats struct {
	SalesCount    int    `json:"sales_count"`
	Volume        uint64 `json:"volume"`
	FeesCollected uint64 `json:"fees_collected"`
	FeeBps        uint64 `json:"fee_bps"`
	OpenFragments int    `json:"open_fragments"`
	ArchivedSouls int    `json:"archived_souls"`
}

// SplitFee divides a sale price into platform fee and seller proceeds:
// fee = price*feeBps/10000, truncating. The product runs through a 128-bit
// intermediate so BIGINT-scale prices cannot overflow. feeBps must be at
// most 10000.
func SplitFee(price, feeBps uint64) (fee, proceeds uint64) {
	hi, lo := bits.Mul64(price, feeBps)
	fee, _ = bits.Div64(hi, lo, 10_000)
	return fee, price - fee
}
