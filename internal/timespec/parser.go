// Package timespec parses the --since style time bounds accepted by the CLI.
package timespec

import (
	"fmt"
	"time"
)

// Parse parses a time specification into a Unix timestamp in milliseconds,
// relative to the current time. See ParseAt.
func Parse(spec string) (int64, error) {
	return ParseAt(spec, time.Now())
}

// ParseAt parses a time specification relative to now. Two forms are accepted:
//   - Go durations ("90s", "1h30m"), meaning that long before now
//   - RFC3339 timestamps ("2025-10-29T13:00:00Z")
func ParseAt(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid time specification: %s (duration must not be negative)", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// ParseSince parses an optional --since flag. An empty flag means no lower
// bound and yields 0.
func ParseSince(since string) (int64, error) {
	if since == "" {
		return 0, nil
	}
	ms, err := Parse(since)
	if err != nil {
		return 0, fmt.Errorf("invalid --since: %w", err)
	}
	return ms, nil
}
