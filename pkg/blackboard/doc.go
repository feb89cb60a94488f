// Package blackboard provides type-safe Go definitions and the Redis schema for
// VibeLayer's shared state.
//
// # Overview
//
// The blackboard is the Redis-backed store where the orchestrator daemon, the
// renderer backends and the vibe CLI meet. It holds creator layers and the
// effects attached to them, each creator's active brand kit, creator sessions,
// snapshots of effect instances and a short lifecycle history. It also carries
// the Pub/Sub channels that connect clients to the orchestrator and the
// orchestrator to the renderers.
//
// # Core Concepts
//
// Layers are creator-owned overlay surfaces with a z-index and a visibility
// flag. Effects are definitions attached to exactly one layer, in attach order.
//
// Brand kits describe a creator's palette, fonts and tonality. A creator who
// has not saved one gets DefaultBrandKit.
//
// Instance records mirror the orchestrator's in-memory effect instances and
// expire after the retention window.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several deployments can share one Redis server without interference.
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	layer := &blackboard.Layer{ID: "overlay", OwnerID: "creator-1", Name: "Overlay", ZIndex: 10, Visible: true}
//	if err := client.CreateLayer(ctx, layer); err != nil {
//		log.Fatal(err)
//	}
//
//	effect := &blackboard.Effect{ID: "confetti", LayerID: "overlay", Type: blackboard.EffectParticle, Enabled: true}
//	if err := client.AttachEffect(ctx, effect); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// Layers: vibelayer:{instance_name}:layer:{layer_id} (hash)
// Layer effects: vibelayer:{instance_name}:layer:{layer_id}:effects (list)
// Effects: vibelayer:{instance_name}:effect:{effect_id} (hash)
// Brand kits: vibelayer:{instance_name}:brand_kit:{owner_id} (JSON string)
// Creators: vibelayer:{instance_name}:creator:{creator_id} (hash)
// Instances: vibelayer:{instance_name}:instance:{instance_id} (hash, TTL)
// History: vibelayer:{instance_name}:history (ZSET)
//
// Pub/Sub channels:
//
// Ingress: vibelayer:{instance_name}:ingress:{creator_id}:{platform}
// Status events: vibelayer:{instance_name}:status_events
// Render commands: vibelayer:{instance_name}:render:{platform}
// Render acks: vibelayer:{instance_name}:render_acks
// Control: vibelayer:{instance_name}:control
package blackboard
