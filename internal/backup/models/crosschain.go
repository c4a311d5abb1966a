package models

import (
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// CrossChainBackup asserts that a snapshot was replicated to another chain.
// The record is pure audit; the ledger performs no replication and never
// verifies the remote copy.
type CrossChainBackup struct {
	SoulID        id.SoulID      `json:"soul_id"`
	Index         int            `json:"index"`
	TargetChainID uint64         `json:"target_chain_id"`
	ContentURI    string         `json:"content_uri"`
	ContentHash   id.ContentHash `json:"content_hash"`
	CreatedAt     time.Time      `json:"created_at"`
	Recovered     bool           `json:"recovered"`
}

// NewCrossChainBackup validates and constructs a cross-chain audit record.
// The store assigns Index on append.
func NewCrossChainBackup(soulID id.SoulID, targetChainID uint64, contentURI string, contentHash id.ContentHash, now time.Time) (*CrossChainBackup, error) {
	if soulID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "soul id cannot be empty")
	}
	if targetChainID == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "target chain id cannot be zero")
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

	return &CrossChainBackup{
		SoulID:        soulID,
		TargetChainID: targetChainID,
		ContentURI:    contentURI,
		ContentHash:   contentHash,
		CreatedAt:     now,
	}, nil
}

func (c *CrossChainBackup) Clone() *CrossChainBackup {
	copied := *c
	return &copied
}
