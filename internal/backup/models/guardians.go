package models

import (
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// MaxGuardians caps the guardian set so quorum checks stay cheap.
const MaxGuardians = 32

// DefaultThreshold is the quorum a fresh guardian set starts with.
const DefaultThreshold = 1

// Guardians is a soul's owner-managed recovery committee plus its delegated
// backup writers. The threshold never exceeds the guardian count; with no
// guardians the quorum is unreachable and only owner approval can pass a
// recovery.
type Guardians struct {
	SoulID     id.SoulID    `json:"soul_id"`
	Guardians  []id.Address `json:"guardians"`
	Threshold  int          `json:"threshold"`
	Backuppers []id.Address `json:"backuppers"`
}

// NewGuardians constructs the empty guardian set for a soul. Sets are
// materialized on first use rather than created explicitly.
func NewGuardians(soulID id.SoulID) *Guardians {
	return &Guardians{SoulID: soulID, Threshold: DefaultThreshold}
}

func (g *Guardians) Clone() *Guardians {
	copied := *g
	copied.Guardians = append([]id.Address(nil), g.Guardians...)
	copied.Backuppers = append([]id.Address(nil), g.Backuppers...)
	return &copied
}

// IsGuardian reports whether the address sits on the committee.
func (g *Guardians) IsGuardian(address id.Address) bool {
	return contains(g.Guardians, address)
}

// IsBackupper reports whether the address may write backups for the soul.
func (g *Guardians) IsBackupper(address id.Address) bool {
	return contains(g.Backuppers, address)
}

// CanAddGuardian checks whether the guardian can join the committee.
// Use with ApplyAddGuardian in Execute callbacks.
func (g *Guardians) CanAddGuardian(guardian id.Address) error {
	if guardian.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "guardian address cannot be empty")
	}
	if g.IsGuardian(guardian) {
		return dErrors.New(dErrors.CodeConflict, "address is already a guardian")
	}
	if len(g.Guardians) >= MaxGuardians {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "guardian set is capped at %d", MaxGuardians)
	}
	return nil
}

// ApplyAddGuardian adds the guardian. Call CanAddGuardian first.
func (g *Guardians) ApplyAddGuardian(guardian id.Address) {
	g.Guardians = append(g.Guardians, guardian)
}

// CanRemoveGuardian checks that the guardian is present and that removal
// would not push the threshold above the remaining count.
// Use with ApplyRemoveGuardian in Execute callbacks.
func (g *Guardians) CanRemoveGuardian(guardian id.Address) error {
	if !g.IsGuardian(guardian) {
		return dErrors.New(dErrors.CodeNotFound, "address is not a guardian")
	}
	if remaining := len(g.Guardians) - 1; remaining > 0 && g.Threshold > remaining {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "removal would leave %d guardians below the threshold of %d", remaining, g.Threshold)
	}
	return nil
}

// ApplyRemoveGuardian removes the guardian. Call CanRemoveGuardian first.
func (g *Guardians) ApplyRemoveGuardian(guardian id.Address) {
	g.Guardians = remove(g.Guardians, guardian)
}

// CanSetThreshold checks 1 <= n <= len(guardians).
// Use with ApplySetThreshold in Execute callbacks.
func (g *Guardians) CanSetThreshold(n int) error {
	if n < 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "threshold must be at least 1")
	}
	if n > len(g.Guardians) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "threshold of %d exceeds the %d guardians", n, len(g.Guardians))
	}
	return nil
}

// ApplySetThreshold sets the quorum. Call CanSetThreshold first.
func (g *Guardians) ApplySetThreshold(n int) {
	g.Threshold = n
}

// ApplySetBackupper grants or revokes delegated backup writes. Granting an
// existing backupper or revoking an absent one is a no-op.
func (g *Guardians) ApplySetBackupper(address id.Address, allowed bool) {
	if allowed {
		if !g.IsBackupper(address) {
			g.Backuppers = append(g.Backuppers, address)
		}
		return
	}
	g.Backuppers = remove(g.Backuppers, address)
}

func contains(addresses []id.Address, address id.Address) bool {
	for _, a := range addresses {
		if a == address {
			return true
		}
	}
	return false
}

func remove(addresses []id.Address, address id.Address) []id.Address {
	out := addresses[:0]
	for _, a := range addresses {
		if a != address {
			out = append(out, a)
		}
	}
	return out
}
