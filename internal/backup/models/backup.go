package models

import (
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// MaxContentURILen caps the off-chain snapshot pointer. URIs are opaque to
// the ledger.
const MaxContentURILen = 2048

// MaxFingerprintLen caps the capabilities fingerprint label.
const MaxFingerprintLen = 256

// BackupType classifies how a snapshot entered the ledger.
type BackupType string

const (
	// TypeAuto is a scheduled snapshot; auto backups are rate-limited by the
	// minimum interval.
	TypeAuto BackupType = "auto"
	// TypeManual is an operator-initiated snapshot.
	TypeManual BackupType = "manual"
	// TypeCritical is a pre-shutdown or pre-migration snapshot.
	TypeCritical BackupType = "critical"
)

// ParseBackupType constructs a BackupType from external input.
func ParseBackupType(s string) (BackupType, error) {
	t := BackupType(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid backup type: %q", s)
	}
	return t, nil
}

func (t BackupType) IsValid() bool {
	return t == TypeAuto || t == TypeManual || t == TypeCritical
}

func (t BackupType) String() string { return string(t) }

// RateLimited reports whether the type is subject to the minimum backup
// interval.
func (t BackupType) RateLimited() bool { return t == TypeAuto }

// Backup is one append-only content version of a soul. Entries are indexed
// per soul in creation order and never deleted; retention marks the oldest
// valid entry invalid once history exceeds the cap. Invalid entries stay
// queryable but are excluded from recovery.
type Backup struct {
	SoulID                  id.SoulID      `json:"soul_id"`
	Index                   int            `json:"index"`
	ContentURI              string         `json:"content_uri"`
	ContentHash             id.ContentHash `json:"content_hash"`
	Type                    BackupType     `json:"type"`
	CapabilitiesFingerprint string         `json:"capabilities_fingerprint"`
	EarningsAtBackup        uint64         `json:"earnings_at_backup"`
	CreatedAt               time.Time      `json:"created_at"`
	IsValid                 bool           `json:"is_valid"`
}

// NewBackup validates and constructs a valid backup entry. The store assigns
// Index on append.
func NewBackup(soulID id.SoulID, contentURI string, contentHash id.ContentHash, backupType BackupType, fingerprint string, earnings uint64, now time.Time) (*Backup, error) {
	if soulID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "soul id cannot be empty")
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
	if !backupType.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid backup type: %q", backupType)
	}
	if len(fingerprint) > MaxFingerprintLen {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "capabilities fingerprint must be %d characters or less", MaxFingerprintLen)
	}

	return &Backup{
		SoulID:                  soulID,
		ContentURI:              contentURI,
		ContentHash:             contentHash,
		Type:                    backupType,
		CapabilitiesFingerprint: fingerprint,
		EarningsAtBackup:        earnings,
		CreatedAt:               now,
		IsValid:                 true,
	}, nil
}

func (b *Backup) Clone() *Backup {
	copied := *b
	return &copied
}

// CanInvalidate checks whether the entry is still valid.
// Use with ApplyInvalidation in Execute callbacks.
func (b *Backup) CanInvalidate() error {
	if !b.IsValid {
		return dErrors.New(dErrors.CodeConflict, "backup is already invalidated")
	}
	return nil
}

// ApplyInvalidation drops the entry from the recovery candidates. Call
// CanInvalidate first. Invalidation is irreversible.
func (b *Backup) ApplyInvalidation() {
	b.IsValid = false
}
