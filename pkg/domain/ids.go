// Package domain holds the primitive identifier and value types shared by
// every slice. Construct values via the Parse functions at trust boundaries;
// direct casting bypasses validation.
package domain

import (
	"strconv"

	dErrors "soulledger/pkg/domain-errors"
)

// SoulID identifies one soul record. IDs are sequential, assigned at mint,
// and never reused. Zero is not a valid id.
type SoulID uint64

// StakeID identifies one stake. Same allocation rules as SoulID.
type StakeID uint64

// RecoveryID identifies one recovery request.
type RecoveryID uint64

// ParseSoulID constructs a SoulID from external input.
//
// Errors: CodeInvalidInput when the value is empty, non-numeric, or zero.
func ParseSoulID(s string) (SoulID, error) {
	n, err := parseLedgerID(s, "soul id")
	return SoulID(n), err
}

// ParseStakeID constructs a StakeID from external input.
func ParseStakeID(s string) (StakeID, error) {
	n, err := parseLedgerID(s, "stake id")
	return StakeID(n), err
}

// ParseRecoveryID constructs a RecoveryID from external input.
func ParseRecoveryID(s string) (RecoveryID, error) {
	n, err := parseLedgerID(s, "recovery id")
	return RecoveryID(n), err
}

func parseLedgerID(s, kind string) (uint64, error) {
	if s == "" {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if n == 0 {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be zero", kind)
	}
	return n, nil
}

func (id SoulID) String() string     { return strconv.FormatUint(uint64(id), 10) }
func (id StakeID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id RecoveryID) String() string { return strconv.FormatUint(uint64(id), 10) }

// IsNil reports whether the id is the unassigned zero value.
func (id SoulID) IsNil() bool     { return id == 0 }
func (id StakeID) IsNil() bool    { return id == 0 }
func (id RecoveryID) IsNil() bool { return id == 0 }
