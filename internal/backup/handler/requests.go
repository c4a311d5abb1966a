package handler

import (
	"strings"

	"soulledger/internal/backup/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// CreateBackupRequest is the HTTP request body for POST /souls/{id}/backups.
// The writer is the calling wallet.
type CreateBackupRequest struct {
	ContentURI              string `json:"content_uri"`
	ContentHash             string `json:"content_hash"`
	Type                    string `json:"type"`
	CapabilitiesFingerprint string `json:"capabilities_fingerprint"`
	Earnings                uint64 `json:"earnings"`

	parsedHash id.ContentHash
	parsedType models.BackupType
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateBackupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.ContentURI = strings.TrimSpace(r.ContentURI)
	if r.ContentURI == "" {
		return dErrors.New(dErrors.CodeValidation, "content_uri is required")
	}
	if len(r.ContentURI) > models.MaxContentURILen {
		return dErrors.Newf(dErrors.CodeValidation, "content_uri must be at most %d characters", models.MaxContentURILen)
	}

	r.ContentHash = strings.TrimSpace(r.ContentHash)
	if r.ContentHash == "" {
		return dErrors.New(dErrors.CodeValidation, "content_hash is required")
	}
	hash, err := id.ParseContentHash(r.ContentHash)
	if err != nil {
		return err
	}
	r.parsedHash = hash

	backupType, err := models.ParseBackupType(r.Type)
	if err != nil {
		return err
	}
	r.parsedType = backupType

	if len(r.CapabilitiesFingerprint) > models.MaxFingerprintLen {
		return dErrors.Newf(dErrors.CodeValidation, "capabilities_fingerprint must be at most %d characters", models.MaxFingerprintLen)
	}
	return nil
}

// ParsedContentHash returns the validated content hash.
func (r *CreateBackupRequest) ParsedContentHash() id.ContentHash { return r.parsedHash }

// ParsedType returns the validated backup type.
func (r *CreateBackupRequest) ParsedType() models.BackupType { return r.parsedType }

// CrossChainRequest is the HTTP request body for
// POST /souls/{id}/backups/crosschain.
type CrossChainRequest struct {
	TargetChainID uint64 `json:"target_chain_id"`
	ContentURI    string `json:"content_uri"`
	ContentHash   string `json:"content_hash"`

	parsedHash id.ContentHash
}

// Validate validates and parses the request.
func (r *CrossChainRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.TargetChainID == 0 {
		return dErrors.New(dErrors.CodeValidation, "target_chain_id is required")
	}

	r.ContentURI = strings.TrimSpace(r.ContentURI)
	if r.ContentURI == "" {
		return dErrors.New(dErrors.CodeValidation, "content_uri is required")
	}

	r.ContentHash = strings.TrimSpace(r.ContentHash)
	if r.ContentHash == "" {
		return dErrors.New(dErrors.CodeValidation, "content_hash is required")
	}
	hash, err := id.ParseContentHash(r.ContentHash)
	if err != nil {
		return err
	}
	r.parsedHash = hash
	return nil
}

// ParsedContentHash returns the validated content hash.
func (r *CrossChainRequest) ParsedContentHash() id.ContentHash { return r.parsedHash }

// RecoveryRequestBody is the HTTP request body for POST /souls/{id}/recovery
// and its emergency variant.
type RecoveryRequestBody struct {
	BackupIndex int `json:"backup_index"`
}

// Validate validates the request. Index zero is the first backup, so only
// negatives are rejected here.
func (r *RecoveryRequestBody) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.BackupIndex < 0 {
		return dErrors.New(dErrors.CodeValidation, "backup_index cannot be negative")
	}
	return nil
}

// GuardianRequest is the HTTP request body for POST /souls/{id}/guardians.
type GuardianRequest struct {
	Guardian string `json:"guardian"`

	parsedGuardian id.Address
}

// Validate validates and parses the request.
func (r *GuardianRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Guardian = strings.TrimSpace(r.Guardian)
	if r.Guardian == "" {
		return dErrors.New(dErrors.CodeValidation, "guardian is required")
	}
	guardian, err := id.ParseAddress(r.Guardian)
	if err != nil {
		return err
	}
	r.parsedGuardian = guardian
	return nil
}

// ParsedGuardian returns the validated guardian address.
func (r *GuardianRequest) ParsedGuardian() id.Address { return r.parsedGuardian }

// ThresholdRequest is the HTTP request body for
// PUT /souls/{id}/guardians/threshold.
type ThresholdRequest struct {
	Threshold int `json:"threshold"`
}

// Validate validates the request. The upper bound depends on the guardian
// count, which is the domain model's check.
func (r *ThresholdRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Threshold < 1 {
		return dErrors.New(dErrors.CodeValidation, "threshold must be at least 1")
	}
	return nil
}

// BackupperRequest is the HTTP request body for POST /souls/{id}/backuppers.
type BackupperRequest struct {
	Address string `json:"address"`
	Allowed bool   `json:"allowed"`

	parsedAddress id.Address
}

// Validate validates and parses the request.
func (r *BackupperRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Address = strings.TrimSpace(r.Address)
	if r.Address == "" {
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	address, err := id.ParseAddress(r.Address)
	if err != nil {
		return err
	}
	r.parsedAddress = address
	return nil
}

// ParsedAddress returns the validated backupper address.
func (r *BackupperRequest) ParsedAddress() id.Address { return r.parsedAddress }
