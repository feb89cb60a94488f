package blackboard

import (
	"fmt"
	"strings"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several VibeLayer deployments can share a single Redis server.
//
// Key pattern: vibelayer:{instance_name}:{entity}:{id}
// Channel pattern: vibelayer:{instance_name}:{channel}

const keyPrefix = "vibelayer"

// LayerKey returns the Redis key for a layer hash.
// Pattern: vibelayer:{instance_name}:layer:{layer_id}
func LayerKey(instanceName, layerID string) string {
	return fmt.Sprintf("%s:%s:layer:%s", keyPrefix, instanceName, layerID)
}

// LayerEffectsKey returns the Redis key for the ordered list of effect IDs attached to a layer.
// Pattern: vibelayer:{instance_name}:layer:{layer_id}:effects
func LayerEffectsKey(instanceName, layerID string) string {
	return fmt.Sprintf("%s:%s:layer:%s:effects", keyPrefix, instanceName, layerID)
}

// EffectKey returns the Redis key for an effect hash.
// Pattern: vibelayer:{instance_name}:effect:{effect_id}
func EffectKey(instanceName, effectID string) string {
	return fmt.Sprintf("%s:%s:effect:%s", keyPrefix, instanceName, effectID)
}

// BrandKitKey returns the Redis key holding a creator's active brand kit.
// Pattern: vibelayer:{instance_name}:brand_kit:{owner_id}
func BrandKitKey(instanceName, ownerID string) string {
	return fmt.Sprintf("%s:%s:brand_kit:%s", keyPrefix, instanceName, ownerID)
}

// CreatorKey returns the Redis key for a creator session hash.
// Pattern: vibelayer:{instance_name}:creator:{creator_id}
func CreatorKey(instanceName, creatorID string) string {
	return fmt.Sprintf("%s:%s:creator:%s", keyPrefix, instanceName, creatorID)
}

// InstanceKey returns the Redis key for an effect instance snapshot.
// Pattern: vibelayer:{instance_name}:instance:{instance_id}
func InstanceKey(instanceName, instanceID string) string {
	return fmt.Sprintf("%s:%s:instance:%s", keyPrefix, instanceName, instanceID)
}

// InstanceKeyPattern returns the SCAN pattern matching every instance snapshot.
func InstanceKeyPattern(instanceName string) string {
	return fmt.Sprintf("%s:%s:instance:*", keyPrefix, instanceName)
}

// HistoryKey returns the Redis key for the lifecycle history ZSET.
// Pattern: vibelayer:{instance_name}:history
func HistoryKey(instanceName string) string {
	return fmt.Sprintf("%s:%s:history", keyPrefix, instanceName)
}

// IngressChannel returns the channel a creator's client publishes messages on.
// Pattern: vibelayer:{instance_name}:ingress:{creator_id}:{platform}
func IngressChannel(instanceName, creatorID, platform string) string {
	return fmt.Sprintf("%s:%s:ingress:%s:%s", keyPrefix, instanceName, creatorID, platform)
}

// IngressPattern returns the PSUBSCRIBE pattern matching every ingress channel.
func IngressPattern(instanceName string) string {
	return fmt.Sprintf("%s:%s:ingress:*", keyPrefix, instanceName)
}

// ParseIngressChannel extracts the creator and platform from an ingress channel name.
func ParseIngressChannel(instanceName, channel string) (creatorID, platform string, err error) {
	prefix := fmt.Sprintf("%s:%s:ingress:", keyPrefix, instanceName)
	rest, ok := strings.CutPrefix(channel, prefix)
	if !ok {
		return "", "", fmt.Errorf("channel %q is not an ingress channel", channel)
	}
	creatorID, platform, ok = strings.Cut(rest, ":")
	if !ok || creatorID == "" || platform == "" || strings.Contains(platform, ":") {
		return "", "", fmt.Errorf("malformed ingress channel %q", channel)
	}
	return creatorID, platform, nil
}

// StatusEventsChannel returns the channel carrying outbound system:status messages.
// Pattern: vibelayer:{instance_name}:status_events
func StatusEventsChannel(instanceName string) string {
	return fmt.Sprintf("%s:%s:status_events", keyPrefix, instanceName)
}

// RenderChannel returns the channel a platform's renderer backend consumes commands from.
// Pattern: vibelayer:{instance_name}:render:{platform}
func RenderChannel(instanceName, platform string) string {
	return fmt.Sprintf("%s:%s:render:%s", keyPrefix, instanceName, platform)
}

// RenderAcksChannel returns the channel renderer backends report completion on.
// Pattern: vibelayer:{instance_name}:render_acks
func RenderAcksChannel(instanceName string) string {
	return fmt.Sprintf("%s:%s:render_acks", keyPrefix, instanceName)
}

// ControlChannel returns the channel carrying operator control commands.
// Pattern: vibelayer:{instance_name}:control
func ControlChannel(instanceName string) string {
	return fmt.Sprintf("%s:%s:control", keyPrefix, instanceName)
}
