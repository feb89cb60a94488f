package blackboard

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Layer is a creator-owned visual layer. Its z-index determines paint order and
// is not required to be unique. A layer is mutated only through visibility
// changes and effect attachment.
type Layer struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"owner_id"`   // Creator that owns this layer
	Name      string   `json:"name"`
	ZIndex    int      `json:"z_index"`
	Visible   bool     `json:"visible"`
	EffectIDs []string `json:"effect_ids"` // Attached effects in attach order
	Effects   []Effect `json:"effects,omitempty"` // Populated by LayerForEffect / GetLayerWithEffects
}

// Effect is an effect definition attached to exactly one layer.
// LayerID is a back-reference, the layer does not own the effect's lifetime.
type Effect struct {
	ID         string         `json:"id"`
	LayerID    string         `json:"layer_id"`
	Type       EffectType     `json:"type"`
	Parameters map[string]any `json:"parameters"`
	DurationMs int64          `json:"duration_ms,omitempty"` // 0 means renderer default
	Enabled    bool           `json:"enabled"`
}

// EffectType classifies what kind of rendering an effect needs.
type EffectType string

const (
	EffectParticle   EffectType = "particle"
	EffectFilter     EffectType = "filter"
	EffectAnimation  EffectType = "animation"
	EffectTransition EffectType = "transition"

	// EffectShader is understood by renderers but cannot be attached to layers.
	EffectShader EffectType = "shader"
)

// Validate checks that the type can be attached to a layer.
func (t EffectType) Validate() error {
	switch t {
	case EffectParticle, EffectFilter, EffectAnimation, EffectTransition:
		return nil
	default:
		return fmt.Errorf("unknown effect type: %q", t)
	}
}

// FindEffect returns the layer's effect with the given ID.
func (l *Layer) FindEffect(effectID string) (*Effect, bool) {
	for i := range l.Effects {
		if l.Effects[i].ID == effectID {
			return &l.Effects[i], true
		}
	}
	return nil, false
}

// Validate checks if the Layer has valid field values.
func (l *Layer) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("layer ID cannot be empty")
	}
	if l.OwnerID == "" {
		return fmt.Errorf("layer owner_id cannot be empty")
	}
	if l.Name == "" {
		return fmt.Errorf("layer name cannot be empty")
	}
	return nil
}

// Validate checks if the Effect has valid field values.
func (e *Effect) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("effect ID cannot be empty")
	}
	if e.LayerID == "" {
		return fmt.Errorf("effect layer_id cannot be empty")
	}
	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid effect type: %w", err)
	}
	if e.DurationMs < 0 {
		return fmt.Errorf("invalid duration: must be >= 0, got %d", e.DurationMs)
	}
	return nil
}

// BrandKit is a creator's active brand profile.
type BrandKit struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Colors     ColorPalette    `json:"colors" yaml:"colors"`
	Fonts      BrandFonts      `json:"fonts" yaml:"fonts"`
	Logo       string          `json:"logo,omitempty" yaml:"logo,omitempty"`
	Guidelines BrandGuidelines `json:"guidelines" yaml:"guidelines"`
}

// ColorPalette holds the five named colour roles of a brand.
type ColorPalette struct {
	Primary    string `json:"primary" yaml:"primary"`
	Secondary  string `json:"secondary" yaml:"secondary"`
	Accent     string `json:"accent" yaml:"accent"`
	Background string `json:"background" yaml:"background"`
	Text       string `json:"text" yaml:"text"`
}

// Roles returns the palette colours in role order.
func (p ColorPalette) Roles() []string {
	return []string{p.Primary, p.Secondary, p.Accent, p.Background, p.Text}
}

// BrandFonts holds the two named font roles of a brand.
type BrandFonts struct {
	Primary   string `json:"primary" yaml:"primary"`
	Secondary string `json:"secondary" yaml:"secondary"`
}

// BrandGuidelines holds the brand tonality and advisory usage notes.
// Usage lists are advisory only and never scored.
type BrandGuidelines struct {
	ColorUsage []string `json:"color_usage" yaml:"color_usage"`
	FontUsage  []string `json:"font_usage" yaml:"font_usage"`
	Tonality   Tonality `json:"tonality" yaml:"tonality"`
}

// Tonality is the declared voice of a brand.
type Tonality string

const (
	TonalityProfessional Tonality = "professional"
	TonalityCasual       Tonality = "casual"
	TonalityEnergetic    Tonality = "energetic"
	TonalityCalm         Tonality = "calm"
)

// Validate checks that the Tonality is a valid enum value.
func (t Tonality) Validate() error {
	switch t {
	case TonalityProfessional, TonalityCasual, TonalityEnergetic, TonalityCalm:
		return nil
	default:
		return fmt.Errorf("unknown tonality: %q", t)
	}
}

// Validate checks if the BrandKit has valid field values.
func (k *BrandKit) Validate() error {
	if k.ID == "" {
		return fmt.Errorf("brand kit ID cannot be empty")
	}
	for i, c := range k.Colors.Roles() {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("brand kit colour role %d cannot be empty", i)
		}
	}
	if k.Fonts.Primary == "" || k.Fonts.Secondary == "" {
		return fmt.Errorf("brand kit must declare both primary and secondary fonts")
	}
	if err := k.Guidelines.Tonality.Validate(); err != nil {
		return fmt.Errorf("invalid tonality: %w", err)
	}
	return nil
}

// DefaultBrandKit returns the brand kit applied to creators who have not saved one.
func DefaultBrandKit() *BrandKit {
	return &BrandKit{
		ID:   "default",
		Name: "VibeLayer Default",
		Colors: ColorPalette{
			Primary:    "#6366f1",
			Secondary:  "#8b5cf6",
			Accent:     "#06b6d4",
			Background: "#ffffff",
			Text:       "#1f2937",
		},
		Fonts: BrandFonts{
			Primary:   "Inter",
			Secondary: "JetBrains Mono",
		},
		Guidelines: BrandGuidelines{
			ColorUsage: []string{"Use primary for main actions", "Use secondary for highlights"},
			FontUsage:  []string{"Use primary for body text", "Use secondary for code"},
			Tonality:   TonalityProfessional,
		},
	}
}

// Creator is the last known connection of a creator client.
type Creator struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	SubscriptionTier string `json:"subscription_tier"`
	ConnectedAtMs    int64  `json:"connected_at_ms"`
}

// InstanceRecord is the blackboard mirror of an orchestrator effect instance.
// Records expire after the orchestrator's retention window.
type InstanceRecord struct {
	ID          string   `json:"id"` // UUID assigned by the orchestrator
	TriggerID   string   `json:"trigger_id"`
	EffectID    string   `json:"effect_id"`
	LayerID     string   `json:"layer_id"`
	ZIndex      int      `json:"z_index"`
	Platform    string   `json:"platform"`
	Renderer    string   `json:"renderer,omitempty"`
	State       string   `json:"state"`
	Reason      string   `json:"reason,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	CreatedAtMs int64    `json:"created_at_ms"`
	UpdatedAtMs int64    `json:"updated_at_ms"`
}

// Validate checks if the InstanceRecord has valid field values.
func (r *InstanceRecord) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid instance ID: not a valid UUID")
	}
	if r.State == "" {
		return fmt.Errorf("instance state cannot be empty")
	}
	return nil
}

// RenderAction is the instruction sent to a renderer backend.
type RenderAction string

const (
	RenderActionRender RenderAction = "render"
	RenderActionStop   RenderAction = "stop"
)

// RenderCommand is published to a platform's render channel.
type RenderCommand struct {
	Action     RenderAction   `json:"action"`
	InstanceID string         `json:"instance_id"`
	EffectID   string         `json:"effect_id,omitempty"`
	LayerID    string         `json:"layer_id,omitempty"`
	ZIndex     int            `json:"z_index,omitempty"`
	Type       EffectType     `json:"type,omitempty"`
	Intensity  float64        `json:"intensity,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// AckStatus is a backend's report on a render command.
type AckStatus string

const (
	AckCompleted AckStatus = "completed"
	AckFailed    AckStatus = "failed"
)

// RenderAck is published by renderer backends when a render completes or fails.
type RenderAck struct {
	Platform   string    `json:"platform"`
	InstanceID string    `json:"instance_id"`
	Status     AckStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Validate checks if the RenderAck has valid field values.
func (a *RenderAck) Validate() error {
	if a.Platform == "" {
		return fmt.Errorf("ack platform cannot be empty")
	}
	if a.InstanceID == "" {
		return fmt.Errorf("ack instance_id cannot be empty")
	}
	if a.Status != AckCompleted && a.Status != AckFailed {
		return fmt.Errorf("unknown ack status: %q", a.Status)
	}
	return nil
}

// ControlAction is an operator instruction to the orchestrator.
type ControlAction string

const (
	// ControlCancel cancels a queued or rendering effect instance.
	ControlCancel ControlAction = "cancel"
)

// ControlCommand is published on the control channel by operators and the CLI.
type ControlCommand struct {
	Action     ControlAction `json:"action"`
	InstanceID string        `json:"instance_id"`
}

// Validate checks if the ControlCommand has valid field values.
func (c *ControlCommand) Validate() error {
	if c.Action != ControlCancel {
		return fmt.Errorf("unknown control action: %q", c.Action)
	}
	if !isValidUUID(c.InstanceID) {
		return fmt.Errorf("invalid instance ID: not a valid UUID")
	}
	return nil
}

// IngressEvent is a raw client message received on an ingress channel.
// Creator and platform are taken from the channel name; the payload is
// decoded by the protocol package.
type IngressEvent struct {
	CreatorID string
	Platform  string
	Payload   []byte
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
