package models

import (
	dErrors "soulledger/pkg/domain-errors"
)

// Status is the lifecycle state of a soul.
type Status string

const (
	StatusAlive  Status = "ALIVE"
	StatusListed Status = "LISTED"
	StatusDead   Status = "DEAD"
	StatusReborn Status = "REBORN"
	StatusMerged Status = "MERGED"
)

// transitions is the full lifecycle graph. LISTED→ALIVE (delist) is the only
// backward edge; REBORN and MERGED are terminal. DEAD souls can still be
// reborn or merged, which is how the lineage chain grows.
var transitions = map[Status][]Status{
	StatusAlive:  {StatusListed, StatusDead, StatusReborn, StatusMerged},
	StatusListed: {StatusAlive, StatusDead, StatusReborn, StatusMerged},
	StatusDead:   {StatusReborn, StatusMerged},
	StatusReborn: nil,
	StatusMerged: nil,
}

// CanTransitionTo reports whether the lifecycle graph permits moving from s
// to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ParseStatus creates a Status from a string, validating it.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid status: %s", s)
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusAlive, StatusListed, StatusDead, StatusReborn, StatusMerged:
		return true
	}
	return false
}

// IsLive reports whether the soul is an active identity (ALIVE or LISTED).
// At most one live soul may exist per agent address at any time.
func (s Status) IsLive() bool {
	return s == StatusAlive || s == StatusListed
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}
