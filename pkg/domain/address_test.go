package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "soulledger/pkg/domain-errors"
)

// Checksum vectors from the EIP-55 reference set.
var checksumVectors = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestParseAddress_ChecksumNormalization(t *testing.T) {
	for _, want := range checksumVectors {
		t.Run(want, func(t *testing.T) {
			lower := strings.ToLower(want)
			got, err := ParseAddress(lower)
			require.NoError(t, err)
			assert.Equal(t, Address(want), got, "lowercase input must normalize to checksum casing")

			upper := "0x" + strings.ToUpper(want[2:])
			got, err = ParseAddress(upper)
			require.NoError(t, err)
			assert.Equal(t, Address(want), got, "uppercase input must normalize to checksum casing")

			got, err = ParseAddress(want)
			require.NoError(t, err)
			assert.Equal(t, Address(want), got, "checksummed input must round-trip unchanged")
		})
	}
}

func TestParseAddress_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing prefix", "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"},
		{"too short", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe"},
		{"too long", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed0"},
		{"non-hex characters", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAzz"},
		{"zero address", "0x0000000000000000000000000000000000000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAddress(tc.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}

	t.Run("bad checksum casing", func(t *testing.T) {
		// Flip the case of one letter in a valid checksummed address.
		bad := "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
		_, err := ParseAddress(bad)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestParseContentHash(t *testing.T) {
	valid := "0x" + strings.Repeat("ab12", 16)

	t.Run("normalizes to lowercase", func(t *testing.T) {
		h, err := ParseContentHash("0x" + strings.Repeat("AB12", 16))
		require.NoError(t, err)
		assert.Equal(t, ContentHash(valid), h)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseContentHash("0xab12")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero hash", func(t *testing.T) {
		_, err := ParseContentHash("0x" + strings.Repeat("0", 64))
		require.Error(t, err)
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ParseContentHash("0x" + strings.Repeat("zz12", 16))
		require.Error(t, err)
	})
}
