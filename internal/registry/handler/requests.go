package handler

import (
	"strings"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

// MintRequest is the HTTP request body for POST /souls. The creator is the
// calling wallet, not a body field.
type MintRequest struct {
	Agent       string `json:"agent"`
	ContentURI  string `json:"content_uri"`
	ContentHash string `json:"content_hash"`

	parsedAgent id.Address
	parsedHash  id.ContentHash
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Agent = strings.TrimSpace(r.Agent)
	if r.Agent == "" {
		return dErrors.New(dErrors.CodeValidation, "agent is required")
	}
	agent, err := id.ParseAddress(r.Agent)
	if err != nil {
		return err
	}
	r.parsedAgent = agent

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

	return nil
}

// ParsedAgent returns the validated agent address.
func (r *MintRequest) ParsedAgent() id.Address { return r.parsedAgent }

// ParsedContentHash returns the validated content hash.
func (r *MintRequest) ParsedContentHash() id.ContentHash { return r.parsedHash }

// ListRequest is the HTTP request body for POST /souls/{id}/list.
type ListRequest struct {
	Price  uint64 `json:"price"`
	Reason string `json:"reason"`
}

// Validate validates the request. Price bounds beyond presence are enforced
// by the domain model.
func (r *ListRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Price == 0 {
		return dErrors.New(dErrors.CodeValidation, "price is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// DeathRequest is the HTTP request body for POST /souls/{id}/death.
type DeathRequest struct {
	FinalBalance uint64 `json:"final_balance"`
	Cause        string `json:"cause"`
}

// Validate normalizes the request. Both fields are optional; a zero balance
// and an empty cause are legitimate deaths.
func (r *DeathRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Cause = strings.TrimSpace(r.Cause)
	return nil
}

// RebirthRequest is the HTTP request body for POST /souls/{id}/rebirth.
type RebirthRequest struct {
	NewAgent       string `json:"new_agent"`
	NewContentURI  string `json:"new_content_uri"`
	NewContentHash string `json:"new_content_hash"`

	parsedAgent id.Address
	parsedHash  id.ContentHash
}

// Validate validates and parses the request.
func (r *RebirthRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.NewAgent = strings.TrimSpace(r.NewAgent)
	if r.NewAgent == "" {
		return dErrors.New(dErrors.CodeValidation, "new_agent is required")
	}
	agent, err := id.ParseAddress(r.NewAgent)
	if err != nil {
		return err
	}
	r.parsedAgent = agent

	r.NewContentURI = strings.TrimSpace(r.NewContentURI)
	if r.NewContentURI == "" {
		return dErrors.New(dErrors.CodeValidation, "new_content_uri is required")
	}

	r.NewContentHash = strings.TrimSpace(r.NewContentHash)
	if r.NewContentHash == "" {
		return dErrors.New(dErrors.CodeValidation, "new_content_hash is required")
	}
	hash, err := id.ParseContentHash(r.NewContentHash)
	if err != nil {
		return err
	}
	r.parsedHash = hash

	return nil
}

// ParsedAgent returns the validated successor agent address.
func (r *RebirthRequest) ParsedAgent() id.Address { return r.parsedAgent }

// ParsedContentHash returns the validated successor content hash.
func (r *RebirthRequest) ParsedContentHash() id.ContentHash { return r.parsedHash }

// MergeRequest is the HTTP request body for POST /souls/merge.
type MergeRequest struct {
	SoulA             uint64 `json:"soul_a"`
	SoulB             uint64 `json:"soul_b"`
	MergedAgent       string `json:"merged_agent"`
	MergedContentURI  string `json:"merged_content_uri"`
	MergedContentHash string `json:"merged_content_hash"`

	parsedAgent id.Address
	parsedHash  id.ContentHash
}

// Validate validates and parses the request. The A != B rule lives in the
// service so non-HTTP callers hit it too.
func (r *MergeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.SoulA == 0 {
		return dErrors.New(dErrors.CodeValidation, "soul_a is required")
	}
	if r.SoulB == 0 {
		return dErrors.New(dErrors.CodeValidation, "soul_b is required")
	}

	r.MergedAgent = strings.TrimSpace(r.MergedAgent)
	if r.MergedAgent == "" {
		return dErrors.New(dErrors.CodeValidation, "merged_agent is required")
	}
	agent, err := id.ParseAddress(r.MergedAgent)
	if err != nil {
		return err
	}
	r.parsedAgent = agent

	r.MergedContentURI = strings.TrimSpace(r.MergedContentURI)
	if r.MergedContentURI == "" {
		return dErrors.New(dErrors.CodeValidation, "merged_content_uri is required")
	}

	r.MergedContentHash = strings.TrimSpace(r.MergedContentHash)
	if r.MergedContentHash == "" {
		return dErrors.New(dErrors.CodeValidation, "merged_content_hash is required")
	}
	hash, err := id.ParseContentHash(r.MergedContentHash)
	if err != nil {
		return err
	}
	r.parsedHash = hash

	return nil
}

// ParsedAgent returns the validated merged agent address.
func (r *MergeRequest) ParsedAgent() id.Address { return r.parsedAgent }

// ParsedContentHash returns the validated merged content hash.
func (r *MergeRequest) ParsedContentHash() id.ContentHash { return r.parsedHash }
