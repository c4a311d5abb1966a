package models

import (
	"math"
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// MaxFinalBalance keeps the asserted final balance inside the BIGINT range.
const MaxFinalBalance uint64 = math.MaxInt64

// GraveyardEntry archives a dead soul. Each soul is archived at most once and
// resurrected at most once; the flag flips false permanently on the first
// resurrection.
type GraveyardEntry struct {
	SoulID        id.SoulID `json:"soul_id"`
	FinalBalance  uint64    `json:"final_balance"`
	Resurrectable bool      `json:"resurrectable"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// NewGraveyardEntry validates and constructs a resurrectable entry.
func NewGraveyardEntry(soulID id.SoulID, finalBalance uint64, now time.Time) (*GraveyardEntry, error) {
	if soulID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "soul id cannot be empty")
	}
	if finalBalance > MaxFinalBalance {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "final balance must be %d or less", MaxFinalBalance)
	}

	return &GraveyardEntry{
		SoulID:        soulID,
		FinalBalance:  finalBalance,
		Resurrectable: true,
		ArchivedAt:    now,
	}, nil
}

func (g *GraveyardEntry) Clone() *GraveyardEntry {
	copied := *g
	return &copied
}

// CanResurrect checks whether the entry's single resurrection is still
// available. Use with ApplyResurrection in Execute callbacks.
func (g *GraveyardEntry) CanResurrect() error {
	if !g.Resurrectable {
		return dErrors.New(dErrors.CodeConflict, "soul has already been resurrected")
	}
	return nil
}

// ApplyResurrection burns the entry's resurrection. Call CanResurrect first.
func (g *GraveyardEntry) ApplyResurrection() {
	g.Resurrectable = false
}

// Resurrect validates and burns the resurrection in one call.
// Prefer CanResurrect + ApplyResurrection for Execute callback pattern.
func (g *GraveyardEntry) Resurrect() error {
	if err := g.CanResurrect(); err != nil {
		return err
	}
	g.ApplyResurrection()
	return nil
}
