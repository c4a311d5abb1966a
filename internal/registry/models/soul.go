package models

import (
	"math"
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// MaxContentURILen caps the off-chain document pointer. URIs are opaque to
// the ledger; the cap only protects storage.
const MaxContentURILen = 2048

// MaxListingPrice keeps prices inside the BIGINT range shared with the
// treasury, which caps balances the same way. No account could ever pay more.
const MaxListingPrice uint64 = math.MaxInt64

// Soul is the aggregate root for one agent identity.
//
// Invariants:
//   - Agent, Creator, ContentHash are immutable after mint
//   - At most one ALIVE-or-LISTED soul exists per agent address (enforced by
//     the store under lock, not by this type)
//   - ContentHash is globally unique across all souls ever minted (store)
//   - ListingPrice > 0 exactly when Status == LISTED
//   - Status follows the lifecycle graph in status.go; REBORN and MERGED are
//     terminal
//   - BirthTime is immutable; DeathTime is zero until the soul dies
//
// Ownership is exclusive and transferable. The owner controls listing,
// death, rebirth, merge, fragments, archival and backups; the creator
// additionally may record death and receives resurrection payments.
type Soul struct {
	ID           id.SoulID      `json:"id"`
	Owner        id.Address     `json:"owner"`
	Agent        id.Address     `json:"agent"`
	Creator      id.Address     `json:"creator"`
	ContentURI   string         `json:"content_uri"`
	ContentHash  id.ContentHash `json:"content_hash"`
	Status       Status         `json:"status"`
	ListingPrice uint64         `json:"listing_price"`
	BirthTime    time.Time      `json:"birth_time"`
	DeathTime    time.Time      `json:"death_time"`
	DeathCause   string         `json:"death_cause,omitempty"`
	FinalBalance uint64         `json:"final_balance"`
	// TotalEarnings and WorkCount accumulate settlement credits (sale
	// proceeds, fragment repayments, resurrection payments).
	TotalEarnings uint64    `json:"total_earnings"`
	WorkCount     uint64    `json:"work_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSoul constructs an ALIVE soul owned by its creator. The ID is zero
// until the store assigns the next sequential id at insert.
func NewSoul(agent, creator id.Address, contentURI string, contentHash id.ContentHash, now time.Time) (*Soul, error) {
	if agent.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "agent address cannot be empty")
	}
	if creator.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "creator address cannot be empty")
	}
	if contentURI == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "content URI cannot be empty")
	}
	if len(contentURI) > MaxContentURILen {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "content URI must be %d characters or less", MaxContentURILen)
	}
	if contentHash.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "content hash cannot be empty")
	}
	return &Soul{
		Owner:       creator,
		Agent:       agent,
		Creator:     creator,
		ContentURI:  contentURI,
		ContentHash: contentHash,
		Status:      StatusAlive,
		BirthTime:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns an independent copy so store reads never alias live records.
func (s *Soul) Clone() *Soul {
	copied := *s
	return &copied
}

func (s *Soul) IsOwner(addr id.Address) bool   { return s.Owner == addr }
func (s *Soul) IsCreator(addr id.Address) bool { return s.Creator == addr }

// IsLive reports whether the soul is an active identity (ALIVE or LISTED).
func (s *Soul) IsLive() bool { return s.Status.IsLive() }

// CanList checks whether caller may put the soul up for sale at price.
// Use with ApplyListing in Execute callbacks.
func (s *Soul) CanList(caller id.Address, price uint64) error {
	if !s.IsOwner(caller) {
		return dErrors.New(dErrors.CodeForbidden, "caller does not own this soul")
	}
	if price == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "listing price must be positive")
	}
	if price > MaxListingPrice {
		return dErrors.New(dErrors.CodeInvariantViolation, "listing price exceeds maximum")
	}
	if !s.Status.CanTransitionTo(StatusListed) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot list a %s soul", s.Status)
	}
	return nil
}

// ApplyListing moves the soul to LISTED at price. Call CanList first.
func (s *Soul) ApplyListing(price uint64, now time.Time) {
	s.Status = StatusListed
	s.ListingPrice = price
	s.UpdatedAt = now
}

// List validates and applies the listing in one call.
// Prefer CanList + ApplyListing for Execute callback pattern.
func (s *Soul) List(caller id.Address, price uint64, now time.Time) error {
	if err := s.CanList(caller, price); err != nil {
		return err
	}
	s.ApplyListing(price, now)
	return nil
}

// CanDelist checks whether caller may withdraw the listing.
func (s *Soul) CanDelist(caller id.Address) error {
	if !s.IsOwner(caller) {
		return dErrors.New(dErrors.CodeForbidden, "caller does not own this soul")
	}
	if s.Status != StatusListed {
		return dErrors.New(dErrors.CodeInvariantViolation, "soul is not listed")
	}
	return nil
}

// ApplyDelisting returns the soul to ALIVE and clears the price.
// Call CanDelist first.
func (s *Soul) ApplyDelisting(now time.Time) {
	s.Status = StatusAlive
	s.ListingPrice = 0
	s.UpdatedAt = now
}

// Delist validates and applies the delisting in one call.
func (s *Soul) Delist(caller id.Address, now time.Time) error {
	if err := s.CanDelist(caller); err != nil {
		return err
	}
	s.ApplyDelisting(now)
	return nil
}

// CanRecordDeath checks whether caller may declare the soul dead. The owner
// and the original creator may both do this; the creator keeps the right
// even after selling so an abandoned agent can still be wound down.
func (s *Soul) CanRecordDeath(caller id.Address) error {
	if !s.IsOwner(caller) && !s.IsCreator(caller) {
		return dErrors.New(dErrors.CodeForbidden, "only the owner or creator can record a death")
	}
	if s.Status == StatusDead {
		return dErrors.New(dErrors.CodeConflict, "soul is already dead")
	}
	if !s.Status.CanTransitionTo(StatusDead) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot record death of a %s soul", s.Status)
	}
	return nil
}

// ApplyDeath moves the soul to DEAD, recording the cause and the agent's
// final balance. Call CanRecordDeath first.
func (s *Soul) ApplyDeath(finalBalance uint64, cause string, now time.Time) {
	s.Status = StatusDead
	s.DeathTime = now
	s.DeathCause = cause
	s.FinalBalance = finalBalance
	s.ListingPrice = 0
	s.UpdatedAt = now
}

// RecordDeath validates and applies the death in one call.
func (s *Soul) RecordDeath(caller id.Address, finalBalance uint64, cause string, now time.Time) error {
	if err := s.CanRecordDeath(caller); err != nil {
		return err
	}
	s.ApplyDeath(finalBalance, cause, now)
	return nil
}

// CanRebirth checks whether caller may rebirth this soul into a successor.
// With strict lifecycle enabled only DEAD souls can be reborn; otherwise a
// live soul may be reborn directly, ending its current incarnation.
func (s *Soul) CanRebirth(caller id.Address, strict bool) error {
	if !s.IsOwner(caller) {
		return dErrors.New(dErrors.CodeForbidden, "caller does not own this soul")
	}
	if strict && s.Status != StatusDead {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "strict lifecycle requires a dead soul, got %s", s.Status)
	}
	if !s.Status.CanTransitionTo(StatusReborn) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot rebirth a %s soul", s.Status)
	}
	return nil
}

// ApplyRebirth retires the soul as REBORN. Call CanRebirth first.
func (s *Soul) ApplyRebirth(now time.Time) {
	s.Status = StatusReborn
	s.ListingPrice = 0
	s.UpdatedAt = now
}

// CanMerge checks whether caller may merge this soul into a successor.
// Same lifecycle rules as rebirth.
func (s *Soul) CanMerge(caller id.Address, strict bool) error {
	if !s.IsOwner(caller) {
		return dErrors.New(dErrors.CodeForbidden, "caller does not own this soul")
	}
	if strict && s.Status != StatusDead {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "strict lifecycle requires a dead soul, got %s", s.Status)
	}
	if !s.Status.CanTransitionTo(StatusMerged) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot merge a %s soul", s.Status)
	}
	return nil
}

// ApplyMerged retires the soul as MERGED. Call CanMerge first.
func (s *Soul) ApplyMerged(now time.Time) {
	s.Status = StatusMerged
	s.ListingPrice = 0
	s.UpdatedAt = now
}

// CanPurchase checks whether buyer may take over the soul at its listing
// price. The funds-side checks (payment covers the price, accounts can
// settle) live in the settlement service.
func (s *Soul) CanPurchase(buyer id.Address) error {
	if buyer.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "buyer address cannot be empty")
	}
	if s.Status != StatusListed {
		return dErrors.New(dErrors.CodeInvariantViolation, "soul is not listed for sale")
	}
	return nil
}

// ApplySale transfers ownership to buyer and ends the prior incarnation: a
// purchased soul is DEAD until its new owner rebirths it. Call CanPurchase
// first; capture Owner and ListingPrice before calling, they are overwritten.
func (s *Soul) ApplySale(buyer id.Address, now time.Time) {
	s.Owner = buyer
	s.Status = StatusDead
	s.DeathTime = now
	s.ListingPrice = 0
	s.UpdatedAt = now
}

// CreditEarnings accumulates a settlement credit into the earnings counters.
// Saturates at MaxListingPrice instead of wrapping.
func (s *Soul) CreditEarnings(amount uint64, now time.Time) {
	if amount > MaxListingPrice || s.TotalEarnings > MaxListingPrice-amount {
		s.TotalEarnings = MaxListingPrice
	} else {
		s.TotalEarnings += amount
	}
	s.WorkCount++
	s.UpdatedAt = now
}
