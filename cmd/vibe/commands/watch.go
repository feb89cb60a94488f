package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/internal/watch"
	"github.com/spf13/cobra"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream effect lifecycle and performance events",
		Long: `Stream system:status messages published by vibed.

Output Formats:
  default - One human-readable line per event
  json    - Each status message as received, one per line

Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := watch.OutputFormat(output)
			if format != watch.OutputFormatDefault && format != watch.OutputFormatJSON {
				return printer.Error(
					"invalid output format",
					fmt.Sprintf("Unknown format: %s", output),
					[]string{"Valid formats: default, json"},
				)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			return watch.StreamStatus(ctx, client, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "default", "Output format: default or json")
	return cmd
}
