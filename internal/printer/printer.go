package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// stateColors maps effect lifecycle states to their display colour.
var stateColors = map[string]*color.Color{
	"queued":    faint,
	"rendering": cyan,
	"stopped":   green,
	"rejected":  yellow,
	"failed":    red,
}

// Stderr is where Error, ErrorWithContext and Warning write. Tests may replace it.
var Stderr io.Writer = os.Stderr

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Print(msg)
}

// Warning prints a warning message to Stderr in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(Stderr, msg)
}

// State renders an effect lifecycle state in its colour. Unknown states are
// returned unchanged.
func State(state string) string {
	c, ok := stateColors[state]
	if !ok {
		return state
	}
	return c.Sprint(state)
}

// Score renders a brand score, red when it is below threshold.
func Score(score, threshold float64) string {
	s := fmt.Sprintf("%.2f", score)
	if score < threshold {
		return red.Sprint(s)
	}
	return green.Sprint(s)
}

// Error prints a formatted error with title, explanation and suggestions to
// Stderr and returns an error carrying only the title, for Cobra.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value context printed between the
// explanation and the suggestions. Context keys are printed in sorted order.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(Stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(Stderr)
		for _, k := range keys {
			fmt.Fprintf(Stderr, "  %s: %s\n", k, context[k])
		}
	}

	writeSuggestions(Stderr, suggestions)

	// Cobra runs with SilenceErrors, so the title is not printed twice
	return fmt.Errorf("%s", title)
}

func writeSuggestions(w io.Writer, suggestions []string) {
	switch len(suggestions) {
	case 0:
		return
	case 1:
		fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(w, "\nEither:\n")
		for i, suggestion := range suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
		}
	}
}
