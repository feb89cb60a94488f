package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
)

// FormatInstanceTable writes instance snapshots as a table with columns ID,
// STATE, EFFECT, SLOT, PLATFORM, SCORE, AGE and REASON.
// Returns the number of instances formatted.
func FormatInstanceTable(w io.Writer, records []*blackboard.InstanceRecord, instanceName string) int {
	return formatInstanceTable(w, records, instanceName, time.Now())
}

func formatInstanceTable(w io.Writer, records []*blackboard.InstanceRecord, instanceName string, now time.Time) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No effect instances found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Effect instances for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-10s %-10s %-16s %-14s %-8s %-6s %-8s %s\n",
		"ID", "STATE", "EFFECT", "SLOT", "PLATFORM", "SCORE", "AGE", "REASON")
	fmt.Fprintf(w, "%-10s %-10s %-16s %-14s %-8s %-6s %-8s %s\n",
		"----------", "----------", "----------------", "--------------", "--------", "------", "--------", "--------------------")

	for _, r := range records {
		fmt.Fprintf(w, "%-10s %s %-16s %-14s %-8s %-6s %-8s %s\n",
			formatID(r.ID),
			formatState(r.State, 10),
			truncate(r.EffectID, 16),
			truncate(fmt.Sprintf("%s@%d", r.LayerID, r.ZIndex), 14),
			orDash(r.Platform),
			formatScore(r.Score),
			formatAge(r.CreatedAtMs, now),
			truncate(orDash(r.Reason), 40),
		)
	}

	fmt.Fprintf(w, "\n%d %s found\n", len(records), plural(len(records), "instance"))
	return len(records)
}

// FormatHistoryTable writes status history entries oldest first.
// Returns the number of entries formatted.
func FormatHistoryTable(w io.Writer, entries []blackboard.HistoryEntry) int {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No status history found")
		return 0
	}

	fmt.Fprintf(w, "%-23s %-10s %-16s %-10s %s\n", "TIME", "INSTANCE", "EFFECT", "STATE", "REASON")
	fmt.Fprintf(w, "%-23s %-10s %-16s %-10s %s\n",
		"-----------------------", "----------", "----------------", "----------", "--------------------")

	for _, e := range entries {
		fmt.Fprintf(w, "%-23s %-10s %-16s %s %s\n",
			time.UnixMilli(e.AtMs).UTC().Format("2006-01-02 15:04:05.000"),
			formatID(e.InstanceID),
			truncate(e.EffectID, 16),
			formatState(e.State, 10),
			orDash(e.Reason),
		)
	}

	fmt.Fprintf(w, "\n%d %s\n", len(entries), plural(len(entries), "transition"))
	return len(entries)
}

// FormatJSONL writes each item as a single JSON object on its own line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as pretty-printed JSON followed by a newline.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// formatID truncates IDs to their first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return orDash(id)
}

// formatState pads before colouring so escape codes do not break alignment.
func formatState(state string, width int) string {
	if state == "" {
		state = "-"
	}
	padding := ""
	if n := width - len(state); n > 0 {
		padding = strings.Repeat(" ", n)
	}
	return printer.State(state) + padding
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', 2, 64)
}

// formatAge shows the time since createdAtMs as "12s ago", "3m ago", etc.
func formatAge(createdAtMs int64, now time.Time) string {
	if createdAtMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(createdAtMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
