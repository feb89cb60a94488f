package orchestrator

import "errors"

var (
	// ErrInvalidTrigger is returned when a trigger targets a hidden layer or a
	// missing or disabled effect. No instance is created.
	ErrInvalidTrigger = errors.New("invalid trigger")

	// ErrUnsupportedRenderer is returned alongside a Rejected instance when no
	// renderer on the target platform can handle the effect type.
	ErrUnsupportedRenderer = errors.New("unsupported renderer")

	// ErrInstanceNotFound is returned for operations on unknown or reaped instance IDs.
	ErrInstanceNotFound = errors.New("instance not found")
)
