package models

import (
	"math/bits"
	"time"

	id "soulledger/pkg/domain"
)

// NeutralOdds is reported while nothing is staked on a soul.
const NeutralOdds uint64 = 50

// Pool aggregates the open stake amounts on each side of a soul's wager.
// Placement grows the staked side; resolution shrinks the resolved stake's
// side by its amount and the losing side by the paid-out share, so later
// resolutions divide over what remains.
type Pool struct {
	SoulID      id.SoulID `json:"soul_id"`
	SurvivePool uint64    `json:"survive_pool"`
	DiePool     uint64    `json:"die_pool"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewPool constructs the empty pool for a soul. Pools are materialized on
// first use rather than created explicitly.
func NewPool(soulID id.SoulID) *Pool {
	return &Pool{SoulID: soulID}
}

func (p *Pool) Clone() *Pool {
	copied := *p
	return &copied
}

// Side returns the open amount staked on kind.
func (p *Pool) Side(kind Kind) uint64 {
	if kind == KindSurvive {
		return p.SurvivePool
	}
	return p.DiePool
}

// Total returns the open amount staked on both sides.
func (p *Pool) Total() uint64 { return p.SurvivePool + p.DiePool }

// Grow adds a freshly placed stake to its side.
func (p *Pool) Grow(kind Kind, amount uint64, now time.Time) {
	if kind == KindSurvive {
		p.SurvivePool += amount
	} else {
		p.DiePool += amount
	}
	p.UpdatedAt = now
}

// Shrink removes amount from kind's side, saturating at zero so accumulated
// rounding on the losing side can never underflow the pool.
func (p *Pool) Shrink(kind Kind, amount uint64, now time.Time) {
	side := p.Side(kind)
	if amount > side {
		amount = side
	}
	if kind == KindSurvive {
		p.SurvivePool -= amount
	} else {
		p.DiePool -= amount
	}
	p.UpdatedAt = now
}

// Odds returns the survival odds as a percentage of the open pool,
// truncating. An empty pool reports the neutral default instead of dividing
// by zero. The product runs through a 128-bit intermediate so BIGINT-scale
// pools cannot overflow.
func (p *Pool) Odds() uint64 {
	total := p.Total()
	if total == 0 {
		return NeutralOdds
	}
	hi, lo := bits.Mul64(p.SurvivePool, 100)
	odds, _ := bits.Div64(hi, lo, total)
	return odds
}
