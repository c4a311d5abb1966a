package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "soulledger/pkg/domain-errors"
)

// TestParseLedgerID_Invariants validates the parsing invariant:
// "ledger ids are positive decimal integers".
func TestParseLedgerID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSoulID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-numeric input", func(t *testing.T) {
		_, err := ParseSoulID("soul-7")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero", func(t *testing.T) {
		_, err := ParseSoulID("0")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects negative numbers", func(t *testing.T) {
		_, err := ParseStakeID("-4")
		require.Error(t, err)
	})

	t.Run("accepts positive integers", func(t *testing.T) {
		id, err := ParseSoulID("42")
		require.NoError(t, err)
		assert.Equal(t, SoulID(42), id)
		assert.Equal(t, "42", id.String())
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	soulID := SoulID(1)
	stakeID := StakeID(1)

	// These would fail to compile if types were interchangeable:
	// var _ SoulID = stakeID   // compile error
	// var _ StakeID = soulID   // compile error

	assert.Equal(t, uint64(soulID), uint64(stakeID))
	assert.False(t, soulID.IsNil())
	assert.True(t, SoulID(0).IsNil())
}
