package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/spf13/cobra"
)

func newEffectCommand(opts *rootOptions) *cobra.Command {
	effectCmd := &cobra.Command{
		Use:   "effect",
		Short: "Attach and toggle effect definitions",
	}
	effectCmd.AddCommand(
		newEffectAttachCommand(opts),
		newEffectEnableCommand(opts),
	)
	return effectCmd
}

func newEffectAttachCommand(opts *rootOptions) *cobra.Command {
	var (
		layerID    string
		effectType string
		duration   time.Duration
		params     []string
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:   "attach EFFECT_ID",
		Short: "Attach an effect definition to a layer",
		Long: `Attach a new effect definition to an existing layer.

Parameters are given as key=value pairs. Values that parse as JSON keep
their type (numbers, booleans, arrays, objects); anything else is stored
as a string.

Effect types: particle, filter, animation, transition

Examples:
  vibe effect attach sparkle --layer overlay --type particle --duration 3s
  vibe effect attach glow --layer overlay --type filter --param radius=4 --param 'colors=["#6366f1"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if layerID == "" {
				return printer.Error(
					"layer is required",
					"Effects are always attached to exactly one layer.",
					[]string{"Pass the layer ID:\n  vibe effect attach EFFECT_ID --layer LAYER_ID --type particle"},
				)
			}

			parameters, err := parseParams(params)
			if err != nil {
				return printer.Error("invalid effect parameters", err.Error(), nil)
			}

			effect := &blackboard.Effect{
				ID:         args[0],
				LayerID:    layerID,
				Type:       blackboard.EffectType(effectType),
				Parameters: parameters,
				DurationMs: duration.Milliseconds(),
				Enabled:    !disabled,
			}
			if err := effect.Validate(); err != nil {
				return printer.Error(
					"invalid effect",
					err.Error(),
					[]string{"Valid types: particle, filter, animation, transition"},
				)
			}

			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.AttachEffect(ctx, effect)
			switch {
			case err == nil:
			case blackboard.IsNotFound(err):
				return layerNotFound(layerID)
			case errors.Is(err, blackboard.ErrAlreadyExists):
				return printer.Error(
					fmt.Sprintf("effect '%s' already exists", effect.ID),
					"Effect IDs are unique across all layers.",
					[]string{"Choose a different effect ID"},
				)
			default:
				return fmt.Errorf("failed to attach effect: %w", err)
			}

			printer.Success("Attached %s effect %s to layer %s\n", effect.Type, effect.ID, layerID)
			return nil
		},
	}

	cmd.Flags().StringVar(&layerID, "layer", "", "Layer ID to attach to (required)")
	cmd.Flags().StringVar(&effectType, "type", string(blackboard.EffectParticle), "Effect type")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Default duration (0 uses the renderer default)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Effect parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Attach the effect disabled")
	return cmd
}

func newEffectEnableCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enable EFFECT_ID true|false",
		Short: "Enable or disable an attached effect",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseBool(args[1])
			if err != nil {
				return printer.Error("invalid enabled value", err.Error(), nil)
			}

			ctx := context.Background()
			client, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.SetEffectEnabled(ctx, args[0], enabled)
			if blackboard.IsNotFound(err) {
				return printer.Error(
					fmt.Sprintf("effect '%s' not found", args[0]),
					"The specified effect is not attached to any layer.",
					[]string{"Attach it first:\n  vibe effect attach " + args[0] + " --layer LAYER_ID"},
				)
			}
			if err != nil {
				return fmt.Errorf("failed to update effect: %w", err)
			}

			word := "enabled"
			if !enabled {
				word = "disabled"
			}
			printer.Success("Effect %s %s\n", args[0], word)
			return nil
		},
	}
}
