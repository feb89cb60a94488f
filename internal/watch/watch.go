// Package watch follows effect activity on the status channel for the CLI.
package watch

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/dyluth/vibelayer/pkg/protocol"
)

// pollInterval is how often PollForInstance re-reads the snapshot.
const pollInterval = 200 * time.Millisecond

// OutputFormat specifies how streamed events are written.
type OutputFormat string

const (
	// OutputFormatDefault writes one human-readable line per event
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes each status message as received
	OutputFormatJSON OutputFormat = "json"
)

// StatusSource opens subscriptions to the status channel.
// Implemented by *blackboard.Client.
type StatusSource interface {
	SubscribeStatus(ctx context.Context) (*blackboard.Subscription[[]byte], error)
}

// InstanceStore reads instance snapshots.
// Implemented by *blackboard.Client.
type InstanceStore interface {
	GetInstanceRecord(ctx context.Context, instanceID string) (*blackboard.InstanceRecord, error)
}

var stateIcons = map[protocol.EffectState]string{
	protocol.StateQueued:    "⏳",
	protocol.StateRendering: "🎬",
	protocol.StateStopped:   "⏹️",
	protocol.StateRejected:  "🚫",
	protocol.StateFailed:    "❌",
}

// FormatStatus renders a status message as a single line without a timestamp.
func FormatStatus(msg protocol.Message) string {
	status, ok := msg.Payload.(*protocol.SystemStatus)
	if !ok {
		return fmt.Sprintf("❓ Unexpected %s message", msg.Type())
	}

	if e := status.Effect; e != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s", stateIcons[e.State], titleCase(string(e.State)))
		if e.EffectID != "" {
			fmt.Fprintf(&b, ": effect=%s", e.EffectID)
		}
		if e.LayerID != "" {
			fmt.Fprintf(&b, " layer=%s", e.LayerID)
		}
		if e.InstanceID != "" {
			fmt.Fprintf(&b, " instance=%s", e.InstanceID)
		}
		if e.Score != nil {
			fmt.Fprintf(&b, " score=%.2f", *e.Score)
		}
		if e.Reason != "" {
			fmt.Fprintf(&b, " (%s)", e.Reason)
		}
		return b.String()
	}

	p := status.Performance
	line := fmt.Sprintf("📊 Performance: fps=%.1f latency=%.1fms memory=%.1fMB", p.FPS, p.Latency, p.MemoryUsage)
	if len(status.Services) > 0 {
		names := make([]string, 0, len(status.Services))
		for name := range status.Services {
			names = append(names, name)
		}
		sort.Strings(names)
		services := make([]string, len(names))
		for i, name := range names {
			services[i] = fmt.Sprintf("%s=%s", name, status.Services[name])
		}
		line += " services[" + strings.Join(services, " ") + "]"
	}
	return line
}

// StreamStatus writes every status message to w until ctx is cancelled.
// Undecodable messages are reported inline and skipped.
func StreamStatus(ctx context.Context, src StatusSource, format OutputFormat, w io.Writer) error {
	sub, err := src.SubscribeStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to status events: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case raw, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if format == OutputFormatJSON {
				fmt.Fprintf(w, "%s\n", raw)
				continue
			}

			msg, err := protocol.Decode(raw)
			if err != nil {
				fmt.Fprintf(w, "[%s] ⚠️  Undecodable status message: %v\n", time.Now().Format("15:04:05"), err)
				continue
			}
			fmt.Fprintf(w, "[%s] %s\n", time.UnixMilli(msg.Timestamp).Format("15:04:05"), FormatStatus(msg))

		case err, ok := <-sub.Errors():
			if ok {
				return fmt.Errorf("status subscription failed: %w", err)
			}
		}
	}
}

// WaitForTrigger reads sub until an event for triggerID leaves the queued
// state, and returns that event. The subscription must be opened before the
// trigger is published.
func WaitForTrigger(ctx context.Context, sub *blackboard.Subscription[[]byte], triggerID string, timeout time.Duration) (*protocol.EffectStatus, error) {
	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for trigger %s after %v", triggerID, timeout)

		case raw, ok := <-sub.Events():
			if !ok {
				return nil, fmt.Errorf("status subscription closed")
			}
			msg, err := protocol.Decode(raw)
			if err != nil {
				continue
			}
			status, ok := msg.Payload.(*protocol.SystemStatus)
			if !ok || status.Effect == nil || status.Effect.TriggerID != triggerID {
				continue
			}
			if status.Effect.State != protocol.StateQueued {
				return status.Effect, nil
			}

		case err, ok := <-sub.Errors():
			if ok {
				return nil, fmt.Errorf("status subscription failed: %w", err)
			}
		}
	}
}

// PollForInstance polls an instance snapshot until it reaches a terminal
// state, and returns it.
func PollForInstance(ctx context.Context, store InstanceStore, instanceID string, timeout time.Duration) (*blackboard.InstanceRecord, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for instance %s after %v", instanceID, timeout)

		case <-ticker.C:
			record, err := store.GetInstanceRecord(ctx, instanceID)
			if err != nil {
				if blackboard.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query instance: %w", err)
			}
			if isTerminal(protocol.EffectState(record.State)) {
				return record, nil
			}
		}
	}
}

func isTerminal(s protocol.EffectState) bool {
	return s == protocol.StateStopped || s == protocol.StateRejected || s == protocol.StateFailed
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
