package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMessageType is matched by decode errors for absent or unrecognised type tags.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrInvalidPayload is matched by decode errors for fields that violate their constraints.
	ErrInvalidPayload = errors.New("invalid payload")
)

// DecodeError describes why a raw payload was rejected.
// It is always caller-fixable and never retried automatically.
type DecodeError struct {
	Kind   error  // ErrUnknownMessageType or ErrInvalidPayload
	Field  string // Offending field path; empty for unknown message types
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s %s", e.Kind, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidPayload) and errors.Is(err, ErrUnknownMessageType).
func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func unknownType(tag string) *DecodeError {
	reason := "type tag is missing"
	if tag != "" {
		reason = fmt.Sprintf("unrecognised type tag %q", tag)
	}
	return &DecodeError{Kind: ErrUnknownMessageType, Reason: reason}
}

func invalid(field, reason string) *DecodeError {
	return &DecodeError{Kind: ErrInvalidPayload, Field: field, Reason: reason}
}
