package domain

import (
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "soulledger/pkg/domain-errors"
)

// Address is a 20-byte wallet address in canonical mixed-case checksum form
// ("0x" + 40 hex digits, EIP-55 casing). Every address stored or compared by
// the ledger goes through ParseAddress first, so equality is plain string
// equality.
type Address string

const addressHexLen = 40

// ParseAddress constructs an Address from external input.
//
// Accepts all-lowercase and all-uppercase hex (no checksum information) and
// normalizes to checksum casing. Mixed-case input must already carry the
// correct checksum. The zero address is rejected.
//
// Errors: CodeInvalidInput for malformed input or a failed checksum.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	if len(s) != addressHexLen+2 || (s[:2] != "0x" && s[:2] != "0X") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 0x followed by 40 hex digits")
	}
	hexPart := s[2:]
	lower := strings.ToLower(hexPart)
	allZero := true
	for i := 0; i < addressHexLen; i++ {
		c := lower[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "address contains non-hex characters")
		}
		if c != '0' {
			allZero = false
		}
	}
	if allZero {
		return "", dErrors.New(dErrors.CodeInvalidInput, "zero address is not allowed")
	}

	canonical := checksumHex(lower)
	if hexPart != lower && hexPart != strings.ToUpper(hexPart) && hexPart != canonical {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address checksum mismatch")
	}
	return Address("0x" + canonical), nil
}

// MustAddress parses s and panics on failure. Test fixtures only.
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

// IsNil reports whether the address is unset.
func (a Address) IsNil() bool { return a == "" }

// checksumHex applies EIP-55 casing to a lowercase 40-digit hex string:
// a hex letter is uppercased when the corresponding nibble of
// keccak256(lowercase hex) is >= 8.
func checksumHex(lower string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte(lower)
	for i := 0; i < addressHexLen; i++ {
		c := out[i]
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}
