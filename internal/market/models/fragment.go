package models

import (
	"math"
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// MaxSkillTagLen caps the fragment's skill label.
const MaxSkillTagLen = 128

// MaxFragmentValue keeps fragment values inside the BIGINT range shared with
// the treasury.
const MaxFragmentValue uint64 = math.MaxInt64

// Fragment is a claim against a soul's future value, created by the soul's
// owner and owed by the debtor. Fragments are appended per soul and repaid in
// full exactly once; repayment pays whoever owns the soul at that moment.
type Fragment struct {
	ParentSoulID id.SoulID  `json:"parent_soul_id"`
	Index        int        `json:"index"`
	SkillTag     string     `json:"skill_tag"`
	Value        uint64     `json:"value"`
	Debtor       id.Address `json:"debtor"`
	Repaid       bool       `json:"repaid"`
	CreatedAt    time.Time  `json:"created_at"`
	RepaidAt     time.Time  `json:"repaid_at,omitempty"`
}

// NewFragment validates and constructs an open fragment. The store assigns
// Index on append.
func NewFragment(parentSoulID id.SoulID, skillTag string, value uint64, debtor id.Address, now time.Time) (*Fragment, error) {
	if parentSoulID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "parent soul id cannot be empty")
	}
	if skillTag == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "skill tag cannot be empty")
	}
	if len(skillTag) > MaxSkillTagLen {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "skill tag must be %d characters or less", MaxSkillTagLen)
	}
	if value == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fragment value must be positive")
	}
	if value > MaxFragmentValue {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "fragment value must be %d or less", MaxFragmentValue)
	}
	if debtor.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "debtor address cannot be empty")
	}

	return &Fragment{
		ParentSoulID: parentSoulID,
		SkillTag:     skillTag,
		Value:        value,
		Debtor:       debtor,
		CreatedAt:    now,
	}, nil
}

func (f *Fragment) Clone() *Fragment {
	copied := *f
	return &copied
}

// CanRepay checks whether the fragment is still open.
// Use with ApplyRepayment in Execute callbacks.
func (f *Fragment) CanRepay() error {
	if f.Repaid {
		return dErrors.New(dErrors.CodeConflict, "fragment is already repaid")
	}
	return nil
}

// ApplyRepayment marks the fragment settled. Call CanRepay first.
func (f *Fragment) ApplyRepayment(now time.Time) {
	f.Repaid = true
	f.RepaidAt = now
}

// Repay validates and marks the repayment in one call.
// Prefer CanRepay + ApplyRepayment for Execute callback pattern.
func (f *Fragment) Repay(now time.Time) error {
	if err := f.CanRepay(); err != nil {
		return err
	}
	f.ApplyRepayment(now)
	return nil
}
