package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newLayerCommand(opts *rootOptions) *cobra.Command {
	layerCmd := &cobra.Command{
		Use:   "layer",
		Short: "Create and inspect creator layers",
	}
	layerCmd.AddCommand(
		newLayerCreateCommand(opts),
		newLayerShowCommand(opts),
		newLayerVisibilityCommand(opts),
	)
	return layerCmd
}

func newLayerCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		id     string
		owner  string
		zIndex int
		hidden bool
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a layer owned by a creator",
		Long: `Create a new layer on the blackboard.

The z-index decides paint order and the render slot effects on this layer
compete for. Layers are visible unless --hidden is given.

Examples:
  vibe layer create overlay --owner creator-1 --z 2
  vibe layer create lower-third --owner creator-1 --id lt-1 --hidden`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return printer.Error(
					"owner is required",
					"Every layer belongs to exactly one creator.",
					[]string{"Pass the creator ID:\n  vibe layer create NAME --owner creator-1"},
				)
			}
			if id == "" {
				id = uuid.New().String()
			}

			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			layer := &blackboard.Layer{
				ID:      id,
				OwnerID: owner,
				Name:    args[0],
				ZIndex:  zIndex,
				Visible: !hidden,
			}
			if err := client.CreateLayer(ctx, layer); err != nil {
				return printer.Error(
					"failed to create layer",
					err.Error(),
					[]string{"Choose a different --id, or inspect the existing layer:\n  vibe layer show " + id},
				)
			}

			fmt.Fprintln(cmd.OutOrStdout(), layer.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Layer ID (generated if omitted)")
	cmd.Flags().StringVar(&owner, "owner", "", "Creator ID that owns the layer (required)")
	cmd.Flags().IntVar(&zIndex, "z", 0, "Z-index of the layer")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Create the layer hidden")
	return cmd
}

func newLayerShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show LAYER_ID",
		Short: "Show a layer and its attached effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			layer, err := client.GetLayerWithEffects(ctx, args[0])
			if blackboard.IsNotFound(err) {
				return layerNotFound(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read layer: %w", err)
			}

			writeLayer(cmd.OutOrStdout(), layer)
			return nil
		},
	}
}

func newLayerVisibilityCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visibility LAYER_ID true|false",
		Short: "Show or hide a layer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			visible, err := parseBool(args[1])
			if err != nil {
				return printer.Error("invalid visibility", err.Error(), nil)
			}

			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.SetLayerVisibility(ctx, args[0], visible)
			if blackboard.IsNotFound(err) {
				return layerNotFound(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to update layer: %w", err)
			}

			word := "visible"
			if !visible {
				word = "hidden"
			}
			printer.Success("Layer %s is now %s\n", args[0], word)
			return nil
		},
	}
}

func writeLayer(w io.Writer, layer *blackboard.Layer) {
	fmt.Fprintf(w, "Layer:   %s\n", layer.ID)
	fmt.Fprintf(w, "Name:    %s\n", layer.Name)
	fmt.Fprintf(w, "Owner:   %s\n", layer.OwnerID)
	fmt.Fprintf(w, "Z-index: %d\n", layer.ZIndex)
	fmt.Fprintf(w, "Visible: %t\n", layer.Visible)

	if len(layer.Effects) == 0 {
		fmt.Fprintln(w, "Effects: none")
		return
	}
	fmt.Fprintln(w, "Effects:")
	for _, e := range layer.Effects {
		status := "enabled"
		if !e.Enabled {
			status = "disabled"
		}
		line := fmt.Sprintf("  - %s (%s, %s", e.ID, e.Type, status)
		if e.DurationMs > 0 {
			line += fmt.Sprintf(", %dms", e.DurationMs)
		}
		fmt.Fprintln(w, line+")")
		if len(e.Parameters) > 0 {
			fmt.Fprintf(w, "      params: %s\n", strings.Join(paramKeys(e.Parameters), ", "))
		}
	}
}

func layerNotFound(id string) error {
	return printer.Error(
		fmt.Sprintf("layer '%s' not found", id),
		"The specified layer does not exist on the blackboard.",
		[]string{"Create it first:\n  vibe layer create NAME --owner CREATOR --id " + id},
	)
}
