package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/vibelayer/internal/inspect"
	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/internal/timespec"
	"github.com/spf13/cobra"
)

type statusOptions struct {
	output   string
	since    string
	state    string
	effectID string
	layerID  string
	history  bool
	limit    int
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	sopts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status [INSTANCE_ID]",
		Short: "Inspect effect instances and their lifecycle history",
		Long: `Inspect effect instances in list or get mode.

List Mode (no INSTANCE_ID):
  Displays stored instance snapshots as a table or JSONL stream.
  With --history, displays recent lifecycle transitions instead.

Get Mode (with INSTANCE_ID):
  Displays one instance snapshot as pretty-printed JSON.
  Supports short IDs (e.g., "3f2a9c" instead of full UUID).

Examples:
  vibe status
  vibe status --state rendering --layer overlay
  vibe status --since 10m --output jsonl | jq .score
  vibe status --history --limit 20
  vibe status 3f2a9c`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts, sopts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&sopts.output, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	flags.StringVar(&sopts.since, "since", "", "Show entries after time (duration or RFC3339)")
	flags.StringVar(&sopts.state, "state", "", "Filter by lifecycle state")
	flags.StringVar(&sopts.effectID, "effect", "", "Filter by effect ID")
	flags.StringVar(&sopts.layerID, "layer", "", "Filter by layer ID")
	flags.BoolVar(&sopts.history, "history", false, "Show lifecycle history instead of snapshots")
	flags.IntVar(&sopts.limit, "limit", 50, "Maximum history entries to show (0 for all)")
	return cmd
}

func runStatus(cmd *cobra.Command, opts *rootOptions, sopts *statusOptions, args []string) error {
	isGetMode := len(args) > 0

	var format inspect.OutputFormat
	var sinceMs int64
	if !isGetMode {
		var err error
		format, err = inspect.ParseOutputFormat(sopts.output)
		if err != nil {
			return printer.Error(
				"invalid output format",
				fmt.Sprintf("Unknown format: %s", sopts.output),
				[]string{"Valid formats: default, jsonl"},
			)
		}
		sinceMs, err = timespec.ParseSince(sopts.since)
		if err != nil {
			return printer.Error("invalid time filter", err.Error(), nil)
		}
	}

	ctx := context.Background()
	client, err := opts.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()

	if isGetMode {
		instanceID, err := resolveInstance(ctx, client, args[0])
		if err != nil {
			return err
		}
		if err := inspect.GetInstance(ctx, client, instanceID, out); err != nil {
			if inspect.IsNotFound(err) {
				return printer.Error(err.Error(), "The snapshot expired while it was being read.", nil)
			}
			return fmt.Errorf("failed to get instance: %w", err)
		}
		return nil
	}

	if sopts.history {
		return inspect.ListHistory(ctx, client, sinceMs, sopts.limit, format, out)
	}

	filters := &inspect.FilterCriteria{
		SinceTimestampMs: sinceMs,
		State:            sopts.state,
		EffectID:         sopts.effectID,
		LayerID:          sopts.layerID,
	}
	return inspect.ListInstances(ctx, client, client.InstanceName(), format, filters, out)
}
