package domain

import (
	"errors"
	"slices"
)

// ErrInvalidRuntimeTransition is returned for a status change the remote
// platform is not expected to make.
var ErrInvalidRuntimeTransition = errors.New("invalid runtime status transition")

// =============================================================================
// Runtime Status
// =============================================================================

// RuntimeStatus is the status of a remote runtime as reported by the platform.
type RuntimeStatus string

const (
	RuntimeStatusCreating   RuntimeStatus = "Creating"
	RuntimeStatusReady      RuntimeStatus = "Ready"
	RuntimeStatusError      RuntimeStatus = "Error"
	RuntimeStatusUpdating   RuntimeStatus = "Updating"
	RuntimeStatusUnReleased RuntimeStatus = "UnReleased"
	RuntimeStatusReleasing  RuntimeStatus = "Releasing"
	RuntimeStatusDeleting   RuntimeStatus = "Deleting"
)

// IsValid checks if the runtime status is known.
func (s RuntimeStatus) IsValid() bool {
	switch s {
	case RuntimeStatusCreating, RuntimeStatusReady, RuntimeStatusError, RuntimeStatusUpdating,
		RuntimeStatusUnReleased, RuntimeStatusReleasing, RuntimeStatusDeleting:
		return true
	default:
		return false
	}
}

// IsFailed returns true for the terminal failure state.
func (s RuntimeStatus) IsFailed() bool {
	return s == RuntimeStatusError
}

// IsInProgress returns true while the platform is still working.
func (s RuntimeStatus) IsInProgress() bool {
	return s == RuntimeStatusCreating || s == RuntimeStatusUpdating || s == RuntimeStatusReleasing
}

// validRuntimeTransitions defines the transitions the platform performs.
// Ready can move to Updating (in-place update) or Deleting.
var validRuntimeTransitions = map[RuntimeStatus][]RuntimeStatus{
	RuntimeStatusCreating:   {RuntimeStatusReady, RuntimeStatusError},
	RuntimeStatusUpdating:   {RuntimeStatusReady, RuntimeStatusUnReleased, RuntimeStatusError},
	RuntimeStatusUnReleased: {RuntimeStatusReleasing, RuntimeStatusReady, RuntimeStatusUpdating, RuntimeStatusError},
	RuntimeStatusReleasing:  {RuntimeStatusReady, RuntimeStatusError},
	RuntimeStatusReady:      {RuntimeStatusUpdating, RuntimeStatusUnReleased, RuntimeStatusDeleting},
	RuntimeStatusError:      {RuntimeStatusUpdating, RuntimeStatusDeleting},
	RuntimeStatusDeleting:   {},
}

// ValidateRuntimeTransition checks if a runtime status transition is expected.
// Staying in the same status is always valid.
func ValidateRuntimeTransition(from, to RuntimeStatus) error {
	if from == to {
		return nil
	}
	allowed, exists := validRuntimeTransitions[from]
	if !exists || !slices.Contains(allowed, to) {
		return ErrInvalidRuntimeTransition
	}
	return nil
}
