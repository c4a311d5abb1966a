package handler

import (
	"time"

	"soulledger/internal/staking/models"
	dErrors "soulledger/pkg/domain-errors"
)

// PlaceStakeRequest is the HTTP request body for POST /souls/{id}/stakes.
// The staker is the calling wallet.
type PlaceStakeRequest struct {
	Kind          string `json:"kind"`
	Amount        uint64 `json:"amount"`
	DurationHours uint64 `json:"duration_hours"`

	parsedKind models.Kind
}

// Validate validates and parses the request. Duration bounds are the
// service's, they are configuration rather than a wire concern.
func (r *PlaceStakeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	kind, err := models.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	r.parsedKind = kind
	if r.Amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	if r.DurationHours == 0 {
		return dErrors.New(dErrors.CodeValidation, "duration_hours is required")
	}
	if r.DurationHours > maxDurationHours {
		return dErrors.Newf(dErrors.CodeValidation, "duration_hours must be at most %d", maxDurationHours)
	}
	return nil
}

// maxDurationHours keeps the window inside the duration type's range; the
// service clamps further to its configured bounds.
const maxDurationHours uint64 = 1_000_000

// ParsedKind returns the validated stake kind.
func (r *PlaceStakeRequest) ParsedKind() models.Kind { return r.parsedKind }

// Duration returns the stake window as a duration.
func (r *PlaceStakeRequest) Duration() time.Duration {
	return time.Duration(r.DurationHours) * time.Hour
}

// SetFeeRequest is the HTTP request body for PUT /staking/fee. Zero is a
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
