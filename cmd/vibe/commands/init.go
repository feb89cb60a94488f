package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/internal/scaffold"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Write starter vibelayer.yml and brand-kit.yml files",
		Long: `Write starter configuration for a VibeLayer deployment.

Creates, in DIR (default: current directory):
  • vibelayer.yml - Daemon and CLI configuration with every default spelled out
  • brand-kit.yml - Starter brand kit for "vibe brand set"

Use --force to overwrite existing files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			files, err := scaffold.Initialize(dir, force)
			if err != nil {
				var existing *scaffold.ExistingFilesError
				if errors.As(err, &existing) {
					return printer.Error(
						"already initialized",
						fmt.Sprintf("Found existing: %s", strings.Join(existing.Files, ", ")),
						[]string{"Use 'vibe init --force' to overwrite existing configuration"},
					)
				}
				return fmt.Errorf("initialization failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Created:")
			for _, f := range files {
				fmt.Fprintf(out, "  ✓ %s\n", filepath.ToSlash(f.Path))
			}
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. Adjust vibelayer.yml (brand threshold, renderers, Redis URL)")
			fmt.Fprintln(out, "  2. Apply the brand kit:  vibe brand set CREATOR_ID --file brand-kit.yml")
			fmt.Fprintln(out, "  3. Start the daemon:     vibed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing vibelayer.yml and brand-kit.yml")
	return cmd
}
