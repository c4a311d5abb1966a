package models

import (
	"math"
	"math/bits"
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// MaxPlatformFeeBps caps the staking platform fee at 10%.
const MaxPlatformFeeBps uint64 = 1000

// MaxStakeAmount keeps stake amounts inside the BIGINT range shared with
// the treasury.
const MaxStakeAmount uint64 = math.MaxInt64

// Kind is the side of a lifecycle wager.
type Kind string

const (
	// KindSurvive wins when the soul is anything but DEAD at resolution.
	KindSurvive Kind = "SURVIVE"
	// KindDie wins when the soul is DEAD at resolution.
	KindDie Kind = "DIE"
)

// ParseKind constructs a Kind from external input.
func ParseKind(s string) (Kind, error) {
	kind := Kind(s)
	if !kind.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid stake kind: %q", s)
	}
	return kind, nil
}

func (k Kind) IsValid() bool { return k == KindSurvive || k == KindDie }

// Opposite returns the other side of the wager.
func (k Kind) Opposite() Kind {
	if k == KindSurvive {
		return KindDie
	}
	return KindSurvive
}

func (k Kind) String() string { return string(k) }

// Stake is one pooled wager on a soul's lifecycle outcome.
//
// Invariants:
//   - Staker, SoulID, Kind, Amount and the stake window are immutable
//   - ExpiresAt = CreatedAt + Duration
//   - Resolution happens at most once and is irreversible; Won and Payout
//     are meaningful only once Resolved
//
// A stake passes through an implicit state machine: OPEN before ExpiresAt,
// RESOLVABLE at or after it, RESOLVED terminally. There is no cancellation
// and no withdrawal; a losing stake forfeits its amount to the winning pool.
type Stake struct {
	ID         id.StakeID    `json:"id"`
	Staker     id.Address    `json:"staker"`
	SoulID     id.SoulID     `json:"soul_id"`
	Kind       Kind          `json:"kind"`
	Amount     uint64        `json:"amount"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
	Resolved   bool          `json:"resolved"`
	Won        bool          `json:"won"`
	Payout     uint64        `json:"payout"`
	ResolvedAt time.Time     `json:"resolved_at,omitempty"`
}

// NewStake validates and constructs an open stake. The store assigns ID on
// create. Duration bounds beyond positivity are the service's, they are
// configuration rather than invariants.
func NewStake(staker id.Address, soulID id.SoulID, kind Kind, amount uint64, duration time.Duration, now time.Time) (*Stake, error) {
	if staker.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "staker address cannot be empty")
	}
	if soulID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "soul id cannot be empty")
	}
	if !kind.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid stake kind: %q", kind)
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stake amount must be positive")
	}
	if amount > MaxStakeAmount {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "stake amount must be %d or less", MaxStakeAmount)
	}
	if duration <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stake duration must be positive")
	}

	return &Stake{
		Staker:    staker,
		SoulID:    soulID,
		Kind:      kind,
		Amount:    amount,
		Duration:  duration,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
	}, nil
}

func (s *Stake) Clone() *Stake {
	copied := *s
	return &copied
}

// IsExpired reports whether the stake window has closed.
func (s *Stake) IsExpired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// CanResolve checks whether the stake is resolvable at now.
// Use with ApplyResolution in Execute callbacks.
func (s *Stake) CanResolve(now time.Time) error {
	if s.Resolved {
		return dErrors.New(dErrors.CodeConflict, "stake is already resolved")
	}
	if !s.IsExpired(now) {
		return dErrors.New(dErrors.CodeInvariantViolation, "stake has not expired yet")
	}
	return nil
}

// ApplyResolution locks in the outcome. Call CanResolve first.
func (s *Stake) ApplyResolution(won bool, payout uint64, now time.Time) {
	s.Resolved = true
	s.Won = won
	s.Payout = payout
	s.ResolvedAt = now
}

// Payout splits a winning stake's return. The winner recovers its amount
// plus a proportional share of the losing pool, less the platform fee:
//
//	share = amount * losingPool / winningPool
//	gross = amount + share
//	fee   = gross * feeBps / 10000
//	net   = gross - fee
//
// Every division truncates toward zero; the dust stays in escrow rather
// than being distributed. Products run through 128-bit intermediates so
// BIGINT-scale pools cannot overflow. amount must be part of winningPool.
type Payout struct {
	Share uint64 `json:"share"`
	Gross uint64 `json:"gross"`
	Fee   uint64 `json:"fee"`
	Net   uint64 `json:"net"`
}

// ComputePayout runs the winning-side payout formula. feeBps must be at
// most 10000.
func ComputePayout(amount, winningPool, losingPool, feeBps uint64) Payout {
	var share uint64
	if winningPool > 0 {
		hi, lo := bits.Mul64(amount, losingPool)
		share, _ = bits.Div64(hi, lo, winningPool)
	}
	gross := amount + share
	hi, lo := bits.Mul64(gross, feeBps)
	fee, _ := bits.Div64(hi, lo, 10_000)
	return Payout{
		Share: share,
		Gross: gross,
		Fee:   fee,
		Net:   gross - fee,
	}
}
