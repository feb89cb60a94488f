package inspect

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/dyluth/vibelayer/pkg/blackboard"
)

// OutputFormat specifies how to format list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a human-readable table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// Store reads instance snapshots and status history.
// Implemented by *blackboard.Client.
type Store interface {
	GetInstanceRecord(ctx context.Context, instanceID string) (*blackboard.InstanceRecord, error)
	ListInstanceRecords(ctx context.Context) ([]*blackboard.InstanceRecord, error)
	ListHistory(ctx context.Context, sinceMs int64, limit int) ([]blackboard.HistoryEntry, error)
}

// FilterCriteria defines filtering options for instance listings.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64  // Created at or after, 0 = no filter
	State            string // Exact lifecycle state, empty = no filter
	EffectID         string // Glob pattern for effect ID, empty = no filter
	LayerID          string // Exact layer ID, empty = no filter
}

func (fc *FilterCriteria) matches(r *blackboard.InstanceRecord) bool {
	if fc.SinceTimestampMs > 0 && r.CreatedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.State != "" && r.State != fc.State {
		return false
	}
	if fc.EffectID != "" {
		matched, err := path.Match(fc.EffectID, r.EffectID)
		if err != nil || !matched {
			return false
		}
	}
	if fc.LayerID != "" && r.LayerID != fc.LayerID {
		return false
	}
	return true
}

// ListInstances writes the stored instance snapshots matching filters,
// oldest first. A nil filters value matches everything.
func ListInstances(ctx context.Context, store Store, instanceName string, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	all, err := store.ListInstanceRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to list instances: %w", err)
	}

	records := make([]*blackboard.InstanceRecord, 0, len(all))
	for _, r := range all {
		if filters == nil || filters.matches(r) {
			records = append(records, r)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAtMs == records[j].CreatedAtMs {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAtMs < records[j].CreatedAtMs
	})

	switch format {
	case OutputFormatDefault:
		FormatInstanceTable(w, records, instanceName)
		return nil
	case OutputFormatJSONL:
		return FormatJSONL(w, records)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// ListHistory writes status history entries at or after sinceMs. A positive
// limit keeps only the most recent entries.
func ListHistory(ctx context.Context, store Store, sinceMs int64, limit int, format OutputFormat, w io.Writer) error {
	entries, err := store.ListHistory(ctx, sinceMs, limit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	switch format {
	case OutputFormatDefault:
		FormatHistoryTable(w, entries)
		return nil
	case OutputFormatJSONL:
		return FormatJSONL(w, entries)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
