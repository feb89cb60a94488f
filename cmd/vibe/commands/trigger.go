package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/vibelayer/internal/printer"
	"github.com/dyluth/vibelayer/internal/watch"
	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/dyluth/vibelayer/pkg/protocol"
	"github.com/spf13/cobra"
)

// defaultPlatform is the ingress platform used when --platform is omitted.
const defaultPlatform = "web"

type triggerOptions struct {
	creator   string
	platform  string
	intensity float64
	duration  time.Duration
	params    []string
	colors    []string
	fonts     []string
	tone      string
	wait      bool
	timeout   time.Duration
}

func newTriggerCommand(opts *rootOptions) *cobra.Command {
	topts := &triggerOptions{}

	cmd := &cobra.Command{
		Use:   "trigger EFFECT_ID",
		Short: "Send an effect trigger to the orchestrator",
		Long: `Send an effect:trigger message on a creator's ingress channel.

The trigger is scored against the creator's brand kit by vibed. Content
attributes (--color, --font, --tone) are what the brand gate measures;
they are merged into the trigger parameters.

With --wait, the command blocks until the orchestrator reports the
trigger as rendering, rejected or failed, and exits non-zero unless it
is rendering.

Examples:
  vibe trigger sparkle --creator creator-1
  vibe trigger sparkle --creator creator-1 --intensity 0.6 --duration 2s
  vibe trigger sparkle --creator creator-1 --color "#6366f1" --font Inter --tone "business launch" --wait`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(cmd, opts, topts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&topts.creator, "creator", "", "Creator ID sending the trigger (required)")
	flags.StringVar(&topts.platform, "platform", defaultPlatform, "Platform the trigger arrives from")
	flags.Float64Var(&topts.intensity, "intensity", 1.0, "Effect intensity in [0, 1]")
	flags.DurationVar(&topts.duration, "duration", 0, "Override the effect duration")
	flags.StringArrayVar(&topts.params, "param", nil, "Trigger parameter as key=value (repeatable)")
	flags.StringSliceVar(&topts.colors, "color", nil, "Colour used by the effect content (repeatable)")
	flags.StringSliceVar(&topts.fonts, "font", nil, "Font used by the effect content (repeatable)")
	flags.StringVar(&topts.tone, "tone", "", "Tone of the effect content")
	flags.BoolVar(&topts.wait, "wait", false, "Wait for the orchestrator's admission decision")
	flags.DurationVar(&topts.timeout, "timeout", 10*time.Second, "How long --wait blocks")
	return cmd
}

// buildTrigger assembles the effect:trigger message from flags.
func (t *triggerOptions) buildTrigger(effectID string) (protocol.Message, error) {
	params, err := parseParams(t.params)
	if err != nil {
		return protocol.Message{}, err
	}
	if len(t.colors) > 0 {
		params[protocol.ParamColors] = stringList(t.colors)
	}
	if len(t.fonts) > 0 {
		params[protocol.ParamFonts] = stringList(t.fonts)
	}
	if t.tone != "" {
		params[protocol.ParamTone] = t.tone
	}
	if len(params) == 0 {
		params = nil
	}

	var duration *int64
	if t.duration > 0 {
		ms := t.duration.Milliseconds()
		duration = &ms
	}

	return protocol.NewEffectTrigger(effectID, t.intensity, duration, params), nil
}

func runTrigger(cmd *cobra.Command, opts *rootOptions, topts *triggerOptions, effectID string) error {
	if topts.creator == "" {
		return printer.Error(
			"creator is required",
			"Triggers are sent on behalf of a creator, whose brand kit gates them.",
			[]string{"Pass the creator ID:\n  vibe trigger " + effectID + " --creator creator-1"},
		)
	}

	msg, err := topts.buildTrigger(effectID)
	if err != nil {
		return printer.Error("invalid trigger parameters", err.Error(), nil)
	}
	payload, err := protocol.Encode(msg)
	if err != nil {
		return printer.Error("invalid trigger", err.Error(), []string{"Intensity must be between 0 and 1"})
	}

	ctx := context.Background()
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	client, err := opts.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	// Subscribe before publishing so the admission event cannot be missed
	var sub *blackboard.Subscription[[]byte]
	if topts.wait {
		sub, err = client.SubscribeStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to status events: %w", err)
		}
		defer sub.Close()
	}

	if err := client.PublishIngress(ctx, topts.creator, topts.platform, payload); err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg.ID)

	if !topts.wait {
		return nil
	}

	status, err := watch.WaitForTrigger(ctx, sub, msg.ID, topts.timeout)
	if err != nil {
		return printer.Error(
			"no admission decision received",
			err.Error(),
			[]string{"Check that vibed is running for this instance:\n  vibe watch"},
		)
	}

	return reportAdmission(cmd, status, cfg.Orchestrator.BrandThreshold)
}

func reportAdmission(cmd *cobra.Command, status *protocol.EffectStatus, threshold float64) error {
	details := map[string]string{"Effect": status.EffectID}
	if status.InstanceID != "" {
		details["Instance"] = status.InstanceID
	}
	if status.Reason != "" {
		details["Reason"] = status.Reason
	}
	if status.Score != nil {
		details["Brand score"] = fmt.Sprintf("%.2f", *status.Score)
	}

	switch status.State {
	case protocol.StateRendering:
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s on layer %s (instance %s)\n",
			printer.State(string(status.State)), status.EffectID, status.LayerID, status.InstanceID)
		if status.Score != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Brand score: %s\n", printer.Score(*status.Score, threshold))
			// Advisory mode admits content scoring under the threshold
			if *status.Score < threshold {
				printer.Warning("%s scored below the brand threshold of %.2f\n", status.EffectID, threshold)
			}
		}
		return nil
	case protocol.StateRejected:
		return printer.ErrorWithContext(
			"effect rejected",
			fmt.Sprintf("The orchestrator rejected %s.", status.EffectID),
			details,
			nil,
		)
	default:
		return printer.ErrorWithContext(
			fmt.Sprintf("effect %s", status.State),
			fmt.Sprintf("The effect %s did not start rendering.", status.EffectID),
			details,
			nil,
		)
	}
}
