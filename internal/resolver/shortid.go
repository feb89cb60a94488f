package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// maxListedMatches caps how many candidates FormatAmbiguousError prints.
const maxListedMatches = 10

// InstanceStore lists and fetches instance snapshots.
// Implemented by *blackboard.Client.
type InstanceStore interface {
	GetInstanceRecord(ctx context.Context, instanceID string) (*blackboard.InstanceRecord, error)
	ScanInstanceIDs(ctx context.Context) ([]string, error)
}

// ResolveInstanceID resolves a short ID prefix to a full instance UUID.
//
// A full UUID is returned as-is once its snapshot is confirmed to exist.
// Shorter inputs must be at least MinShortIDLength characters and match
// exactly one stored snapshot.
func ResolveInstanceID(ctx context.Context, store InstanceStore, shortID string) (string, error) {
	if _, err := uuid.Parse(shortID); err == nil {
		if _, err := store.GetInstanceRecord(ctx, shortID); err != nil {
			if blackboard.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify instance existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	ids, err := store.ScanInstanceIDs(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to search for instance: %w", err)
	}

	prefix := strings.ToLower(shortID)
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no instances matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no instances found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple instances matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d instances", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists the matching IDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: ambiguous short ID '%s' matches %d instances:\n", err.ShortID, len(err.Matches))

	shown := err.Matches
	if len(shown) > maxListedMatches {
		shown = shown[:maxListedMatches]
	}
	for _, id := range shown {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if rest := len(err.Matches) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "  ...and %d more\n", rest)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the instance.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
