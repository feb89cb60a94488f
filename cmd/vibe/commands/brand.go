package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newBrandCommand(opts *rootOptions) *cobra.Command {
	brandCmd := &cobra.Command{
		Use:   "brand",
		Short: "Manage creator brand kits",
	}
	brandCmd.AddCommand(
		newBrandSetCommand(opts),
		newBrandShowCommand(opts),
	)
	return brandCmd
}

func newBrandSetCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set OWNER_ID --file kit.yml",
		Short: "Save a creator's active brand kit from a YAML file",
		Long: `Save a creator's active brand kit.

The file is YAML with the same shape "vibe brand show" prints. Fields
missing from the file keep the values of the default VibeLayer kit.

Example kit.yml:
  id: acme
  name: Acme Streams
  colors:
    primary: "#ff5500"
    secondary: "#222222"
    accent: "#00aaff"
    background: "#ffffff"
    text: "#111111"
  fonts:
    primary: Montserrat
    secondary: Fira Code
  guidelines:
    tonality: energetic`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return printer.Error(
					"brand kit file is required",
					"",
					[]string{"Pass a YAML file:\n  vibe brand set " + args[0] + " --file kit.yml"},
				)
			}

			kit, err := readBrandKit(file)
			if err != nil {
				return printer.Error("failed to read brand kit", err.Error(), nil)
			}

			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.SaveBrandKit(ctx, args[0], kit); err != nil {
				return printer.Error(
					"failed to save brand kit",
					err.Error(),
					[]string{"Every colour role and both fonts must be set, and tonality must be one of professional, casual, energetic, calm"},
				)
			}

			printer.Success("Brand kit %s is now active for %s\n", kit.ID, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the brand kit YAML file (required)")
	return cmd
}

func newBrandShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show OWNER_ID",
		Short: "Print a creator's active brand kit as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			kit, err := client.ActiveBrandKit(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to read brand kit: %w", err)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(kit); err != nil {
				return fmt.Errorf("failed to encode brand kit: %w", err)
			}
			return enc.Close()
		},
	}
}

// readBrandKit decodes a brand kit file over the default kit.
func readBrandKit(path string) (*blackboard.BrandKit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	kit := blackboard.DefaultBrandKit()
	if err := yaml.Unmarshal(data, kit); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return kit, nil
}
