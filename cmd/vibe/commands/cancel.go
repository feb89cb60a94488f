package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/internal/watch"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/spf13/cobra"
)

func newCancelCommand(opts *rootOptions) *cobra.Command {
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cancel INSTANCE_ID",
		Short: "Cancel a queued or rendering effect instance",
		Long: `Ask the orchestrator to cancel an effect instance.

Cancelling an instance that already finished is a no-op. Short IDs of at
least six characters are accepted.

Examples:
  vibe cancel 3f2a9c
  vibe cancel 3f2a9c --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			instanceID, err := resolveInstance(ctx, client, args[0])
			if err != nil {
				return err
			}

			control := blackboard.ControlCommand{Action: blackboard.ControlCancel, InstanceID: instanceID}
			if err := client.PublishControl(ctx, control); err != nil {
				return fmt.Errorf("failed to publish cancel: %w", err)
			}

			if !wait {
				printer.Success("Cancel requested for %s\n", instanceID)
				return nil
			}

			record, err := watch.PollForInstance(ctx, client, instanceID, timeout)
			if err != nil {
				return printer.Error(
					"instance did not stop",
					err.Error(),
					[]string{"Check that vibed is running for this instance:\n  vibe watch"},
				)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", instanceID, printer.State(record.State))
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait until the instance reaches a terminal state")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long --wait blocks")
	return cmd
}
