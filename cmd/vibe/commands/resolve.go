package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/internal/resolver"
)

// resolveInstance expands a short instance ID, printing a formatted error
// when it is unknown or ambiguous.
func resolveInstance(ctx context.Context, store resolver.InstanceStore, shortID string) (string, error) {
	fullID, err := resolver.ResolveInstanceID(ctx, store, shortID)
	if err == nil {
		return fullID, nil
	}

	if resolver.IsNotFoundError(err) {
		return "", printer.Error(
			fmt.Sprintf("instance with ID '%s' not found", shortID),
			"No stored snapshot matches this ID. Snapshots expire after the retention window.",
			[]string{"List recent instances:\n  vibe status"},
		)
	}
	var ambErr *resolver.AmbiguousError
	if errors.As(err, &ambErr) {
		return "", printer.Error(
			fmt.Sprintf("ambiguous instance ID '%s'", shortID),
			resolver.FormatAmbiguousError(ambErr),
			[]string{"Use a longer prefix or the full UUID"},
		)
	}
	return "", printer.Error("invalid instance ID", err.Error(), nil)
}
