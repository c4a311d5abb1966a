package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in store (unknown soul, stake, backup)
// - ErrConflict: a uniqueness rule already holds (agent has a live soul, content hash seen)
// - ErrNotExpired: a time threshold has not been reached yet (stake before expiresAt)
// - ErrAlreadyUsed: a single-use resource is consumed (fragment repaid, resurrection spent)
// - ErrInvalidState: record in wrong lifecycle state for the requested transition
// - ErrUnavailable: backing service (cache, broker) temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNotExpired   = errors.New("not expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
