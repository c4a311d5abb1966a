package handler

import (
	"time"

	"soulledger/internal/backup/models"
)

// BackupResponse is the HTTP form of one backup entry.
type BackupResponse struct {
	SoulID                  uint64    `json:"soul_id"`
	Index                   int       `json:"index"`
	ContentURI              string    `json:"content_uri"`
	ContentHash             string    `json:"content_hash"`
	Type                    string    `json:"type"`
	CapabilitiesFingerprint string    `json:"capabilities_fingerprint,omitempty"`
	EarningsAtBackup        uint64    `json:"earnings_at_backup"`
	CreatedAt               time.Time `json:"created_at"`
	IsValid                 bool      `json:"is_valid"`
}

// FromBackup converts a domain backup to its HTTP response.
func FromBackup(backup *models.Backup) *BackupResponse {
	return &BackupResponse{
		SoulID:                  uint64(backup.SoulID),
		Index:                   backup.Index,
		ContentURI:              backup.ContentURI,
		ContentHash:             backup.ContentHash.String(),
		Type:                    backup.Type.String(),
		CapabilitiesFingerprint: backup.CapabilitiesFingerprint,
		EarningsAtBackup:        backup.EarningsAtBackup,
		CreatedAt:               backup.CreatedAt,
		IsValid:                 backup.IsValid,
	}
}

// BackupsResponse is the HTTP response for GET /souls/{id}/backups. Entries
// are ordered by index.
type BackupsResponse struct {
	SoulID  uint64            `json:"soul_id"`
	Backups []*BackupResponse `json:"backups"`
}

// CrossChainResponse is the HTTP form of one cross-chain audit record.
type CrossChainResponse struct {
	SoulID        uint64    `json:"soul_id"`
	Index         int       `json:"index"`
	TargetChainID uint64    `json:"target_chain_id"`
	ContentURI    string    `json:"content_uri"`
	ContentHash   string    `json:"content_hash"`
	CreatedAt     time.Time `json:"created_at"`
	Recovered     bool      `json:"recovered"`
}

// FromCrossChain converts a domain cross-chain record to its HTTP response.
func FromCrossChain(record *models.CrossChainBackup) *CrossChainResponse {
	return &CrossChainResponse{
		SoulID:        uint64(record.SoulID),
		Index:         record.Index,
		TargetChainID: record.TargetChainID,
		ContentURI:    record.ContentURI,
		ContentHash:   record.ContentHash.String(),
		CreatedAt:     record.CreatedAt,
		Recovered:     record.Recovered,
	}
}

// CrossChainsResponse is the HTTP response for
// GET /souls/{id}/backups/crosschain.
type CrossChainsResponse struct {
	SoulID  uint64                `json:"soul_id"`
	Records []*CrossChainResponse `json:"records"`
}

// RecoveryResponse is the HTTP form of a recovery request.
type RecoveryResponse struct {
	ID          uint64     `json:"id"`
	SoulID      uint64     `json:"soul_id"`
	BackupIndex int        `json:"backup_index"`
	Requester   string     `json:"requester"`
	Approvals   []string   `json:"approvals"`
	Approved    bool       `json:"approved"`
	Executed    bool       `json:"executed"`
	CreatedAt   time.Time  `json:"created_at"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
}

// FromRecovery converts a domain recovery request to its HTTP response.
func FromRecovery(request *models.RecoveryRequest) *RecoveryResponse {
	resp := &RecoveryResponse{
		ID:          uint64(request.ID),
		SoulID:      uint64(request.SoulID),
		BackupIndex: request.BackupIndex,
		Requester:   request.Requester.String(),
		Approvals:   make([]string, len(request.Approvals)),
		Approved:    request.Approved,
		Executed:    request.Executed,
		CreatedAt:   request.CreatedAt,
	}
	for i, a := range request.Approvals {
		resp.Approvals[i] = a.String()
	}
	if !request.ExecutedAt.IsZero() {
		t := request.ExecutedAt
		resp.ExecutedAt = &t
	}
	return resp
}

// GuardiansResponse is the HTTP form of a soul's guardian set.
type GuardiansResponse struct {
	SoulID     uint64   `json:"soul_id"`
	Guardians  []string `json:"guardians"`
	Threshold  int      `json:"threshold"`
	Backuppers []string `json:"backuppers"`
}

// FromGuardians converts a domain guardian set to its HTTP response.
func FromGuardians(set *models.Guardians) *GuardiansResponse {
	resp := &GuardiansResponse{
		SoulID:     uint64(set.SoulID),
		Guardians:  make([]string, len(set.Guardians)),
		Threshold:  set.Threshold,
		Backuppers: make([]string, len(set.Backuppers)),
	}
	for i, g := range set.Guardians {
		resp.Guardians[i] = g.String()
	}
	for i, b := range set.Backuppers {
		resp.Backuppers[i] = b.String()
	}
	return resp
}
