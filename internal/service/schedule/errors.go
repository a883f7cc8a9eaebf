package schedule

import "errors"

// Sentinel errors for the schedule service layer.
var (
	// ErrNotFound means the campaign does not exist.
	ErrNotFound = errors.New("campaign not found")

	// ErrInvalidState means the requested lifecycle transition is not legal
	// from the campaign's current state (e.g. cancelling a sending campaign).
	ErrInvalidState = errors.New("invalid campaign state for this operation")

	// ErrInvalidScheduleTime means the requested dispatch time is not
	// strictly in the future.
	ErrInvalidScheduleTime = errors.New("scheduled time must be in the future")
)
