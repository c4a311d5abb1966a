package domain

import (
	"strings"

	dErrors "soulledger/pkg/domain-errors"
)

// ContentHash is a 32-byte content fingerprint in canonical lowercase form
// ("0x" + 64 hex digits). Hashes are globally unique across all souls ever
// minted; the registry enforces that invariant, this type only enforces shape.
type ContentHash string

const contentHashHexLen = 64

// ParseContentHash constructs a ContentHash from external input, normalizing
// casing so equality is string equality.
//
// Errors: CodeInvalidInput for malformed input; the zero hash is rejected.
func ParseContentHash(s string) (ContentHash, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "content hash cannot be empty")
	}
	if len(s) != contentHashHexLen+2 || (s[:2] != "0x" && s[:2] != "0X") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "content hash must be 0x followed by 64 hex digits")
	}
	lower := strings.ToLower(s[2:])
	allZero := true
	for i := 0; i < contentHashHexLen; i++ {
		c := lower[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "content hash contains non-hex characters")
		}
		if c != '0' {
			allZero = false
		}
	}
	if allZero {
		return "", dErrors.New(dErrors.CodeInvalidInput, "zero content hash is not allowed")
	}
	return ContentHash("0x" + lower), nil
}

// MustContentHash parses s and panics on failure. Test fixtures only.
func MustContentHash(s string) ContentHash {
	h, err := ParseContentHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

func (h ContentHash) String() string { return string(h) }

// IsNil reports whether the hash is unset.
func (h ContentHash) IsNil() bool { return h == "" }
