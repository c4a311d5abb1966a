package handler

import (
	"strings"

	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// PurchaseRequest is the HTTP request body for POST /souls/{id}/purchase. The
// buyer is the calling wallet.
type PurchaseRequest struct {
	Payment uint64 `json:"payment"`
}

// Validate validates the request. Whether the payment covers the listing is
// the settlement's call.
func (r *PurchaseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Payment == 0 {
		return dErrors.New(dErrors.CodeValidation, "payment is required")
	}
	return nil
}

// CreateFragmentRequest is the HTTP request body for POST
// /souls/{id}/fragments.
type CreateFragmentRequest struct {
	SkillTag string `json:"skill_tag"`
	Value    uint64 `json:"value"`
	Debtor   string `json:"debtor"`

	parsedDebtor id.Address
}

// Validate validates and parses the request. Value bounds beyond presence are
// enforced by the domain model.
func (r *CreateFragmentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.SkillTag = strings.TrimSpace(r.SkillTag)
	if r.SkillTag == "" {
		return dErrors.New(dErrors.CodeValidation, "skill_tag is required")
	}
	if len(r.SkillTag) > models.MaxSkillTagLen {
		return dErrors.Newf(dErrors.CodeValidation, "skill_tag must be at most %d characters", models.MaxSkillTagLen)
	}
	if r.Value == 0 {
		return dErrors.New(dErrors.CodeValidation, "value is required")
	}

	r.Debtor = strings.TrimSpace(r.Debtor)
	if r.Debtor == "" {
		return dErrors.New(dErrors.CodeValidation, "debtor is required")
	}
	debtor, err := id.ParseAddress(r.Debtor)
	if err != nil {
		return err
	}
	r.parsedDebtor = debtor

	return nil
}

// ParsedDebtor returns the validated debtor address.
func (r *CreateFragmentRequest) ParsedDebtor() id.Address { return r.parsedDebtor }

// RepayFragmentRequest is the HTTP request body for POST
// /souls/{id}/fragments/{index}/repay.
type RepayFragmentRequest struct {
	Payment uint64 `json:"payment"`
}

// Validate validates the request.
func (r *RepayFragmentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Payment == 0 {
		return dErrors.New(dErrors.CodeValidation, "payment is required")
	}
	return nil
}

// ArchiveRequest is the HTTP request body for POST /souls/{id}/archive. A
// zero final balance is a legitimate archive.
type ArchiveRequest struct {
	FinalBalance uint64 `json:"final_balance"`
}

// Validate validates the request.
func (r *ArchiveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// ResurrectRequest is the HTTP request body for POST /souls/{id}/resurrect.
type ResurrectRequest struct {
	Payment uint64 `json:"payment"`
}

// Validate validates the request.
func (r *ResurrectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Payment == 0 {
		return dErrors.New(dErrors.CodeValidation, "payment is required")
	}
	return nil
}

// SetFeeRequest is the HTTP request body for PUT /market/fee. Zero is a
// legitimate fee, so the range check is the service's.
type SetFeeRequest struct {
	FeeBps uint64 `json:"fee_bps"`
}

// Validate validates the request.
func (r *SetFeeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}
