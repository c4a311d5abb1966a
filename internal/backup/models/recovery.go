package models

import (
	"time"

	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// RecoveryRequest asks to restore a soul from one of its valid backups.
// Requests are approved either by the soul's owner directly or by a quorum of
// its guardians, then executed at most once. Execution only records the
// decision; restoring content from the referenced backup is the consumer's
// responsibility.
type RecoveryRequest struct {
	ID          id.RecoveryID `json:"id"`
	SoulID      id.SoulID     `json:"soul_id"`
	BackupIndex int           `json:"backup_index"`
	Requester   id.Address    `json:"requester"`
	Approvals   []id.Address  `json:"approvals"`
	Approved    bool          `json:"approved"`
	Executed    bool          `json:"executed"`
	CreatedAt   time.Time     `json:"created_at"`
	ExecutedAt  time.Time     `json:"executed_at,omitempty"`
}

// NewRecoveryRequest validates and constructs a pending request. The store
// assigns ID on create; the service checks the backup exists and is valid.
func NewRecoveryRequest(soulID id.SoulID, backupIndex int, requester id.Address, now time.Time) (*RecoveryRequest, error) {
	if soulID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "soul id cannot be empty")
	}
	if backupIndex < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "backup index cannot be negative")
	}
	if requester.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requester address cannot be empty")
	}

	return &RecoveryRequest{
		SoulID:      soulID,
		BackupIndex: backupIndex,
		Requester:   requester,
		CreatedAt:   now,
	}, nil
}

func (r *RecoveryRequest) Clone() *RecoveryRequest {
	copied := *r
	copied.Approvals = append([]id.Address(nil), r.Approvals...)
	return &copied
}

// HasApproval reports whether the guardian already approved the request.
func (r *RecoveryRequest) HasApproval(guardian id.Address) bool {
	for _, a := range r.Approvals {
		if a == guardian {
			return true
		}
	}
	return false
}

// CanApprove checks whether the request still accepts approvals.
// Use with ApplyOwnerApproval or ApplyGuardianApproval in Execute callbacks.
func (r *RecoveryRequest) CanApprove() error {
	if r.Executed {
		return dErrors.New(dErrors.CodeConflict, "recovery request is already executed")
	}
	return nil
}

// ApplyOwnerApproval approves the request outright. Owner approval overrides
// the guardian quorum. Call CanApprove first.
func (r *RecoveryRequest) ApplyOwnerApproval() {
	r.Approved = true
}

// ApplyGuardianApproval records one guardian's approval, at most once per
// guardian, and approves the request when distinct approvals reach the
// threshold. Call CanApprove first.
func (r *RecoveryRequest) ApplyGuardianApproval(guardian id.Address, threshold int) {
	if !r.HasApproval(guardian) {
		r.Approvals = append(r.Approvals, guardian)
	}
	if threshold > 0 && len(r.Approvals) >= threshold {
		r.Approved = true
	}
}

// CanExecute checks whether the request is approved and still unexecuted.
// Use with ApplyExecution in Execute callbacks.
func (r *RecoveryRequest) CanExecute() error {
	if r.Executed {
		return dErrors.New(dErrors.CodeConflict, "recovery request is already executed")
	}
	if !r.Approved {
		return dErrors.New(dErrors.CodeInvariantViolation, "recovery request is not approved")
	}
	return nil
}

// ApplyExecution marks the request executed. Call CanExecute first.
func (r *RecoveryRequest) ApplyExecution(now time.Time) {
	r.Executed = true
	r.ExecutedAt = now
}
