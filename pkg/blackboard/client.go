package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrAlreadyExists is returned when creating an entity whose ID is taken.
var ErrAlreadyExists = errors.New("already exists")

// subscriptionBuffer is the capacity of a subscription's events channel.
const subscriptionBuffer = 32

// Client provides instance-scoped Redis operations for the blackboard.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	historyCap   int64
}

// NewClient creates a new blackboard client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		historyCap:   DefaultHistoryCap,
	}, nil
}

// InstanceName returns the namespace this client operates in.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateLayer writes a new layer. The layer starts with no attached effects;
// any EffectIDs on the argument are ignored.
func (c *Client) CreateLayer(ctx context.Context, l *Layer) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid layer: %w", err)
	}

	key := LayerKey(c.instanceName, l.ID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check layer existence: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("layer %s: %w", l.ID, ErrAlreadyExists)
	}

	if err := c.rdb.HSet(ctx, key, LayerToHash(l)).Err(); err != nil {
		return fmt.Errorf("failed to write layer to Redis: %w", err)
	}
	return nil
}

// GetLayer retrieves a layer and its ordered effect IDs.
// Returns (nil, redis.Nil) if the layer doesn't exist.
func (c *Client) GetLayer(ctx context.Context, layerID string) (*Layer, error) {
	hashData, err := c.rdb.HGetAll(ctx, LayerKey(c.instanceName, layerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read layer from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	layer, err := HashToLayer(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize layer: %w", err)
	}

	effectIDs, err := c.rdb.LRange(ctx, LayerEffectsKey(c.instanceName, layerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read layer effects: %w", err)
	}
	layer.EffectIDs = append(layer.EffectIDs, effectIDs...)

	return layer, nil
}

// GetLayerWithEffects retrieves a layer with its effect definitions populated
// in attach order. Effect IDs whose definitions are missing are skipped.
func (c *Client) GetLayerWithEffects(ctx context.Context, layerID string) (*Layer, error) {
	layer, err := c.GetLayer(ctx, layerID)
	if err != nil {
		return nil, err
	}

	layer.Effects = make([]Effect, 0, len(layer.EffectIDs))
	for _, id := range layer.EffectIDs {
		effect, err := c.GetEffect(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		layer.Effects = append(layer.Effects, *effect)
	}

	return layer, nil
}

// SetLayerVisibility shows or hides a layer.
// Returns redis.Nil if the layer doesn't exist.
func (c *Client) SetLayerVisibility(ctx context.Context, layerID string, visible bool) error {
	key := LayerKey(c.instanceName, layerID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check layer existence: %w", err)
	}
	if exists == 0 {
		return redis.Nil
	}

	if err := c.rdb.HSet(ctx, key, "visible", strconv.FormatBool(visible)).Err(); err != nil {
		return fmt.Errorf("failed to update layer visibility: %w", err)
	}
	return nil
}

// AttachEffect writes a new effect and appends it to its layer's effect list.
// The layer must exist and the effect ID must not already be attached anywhere.
func (c *Client) AttachEffect(ctx context.Context, e *Effect) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid effect: %w", err)
	}

	layerKey := LayerKey(c.instanceName, e.LayerID)
	effectKey := EffectKey(c.instanceName, e.ID)

	counts, err := c.rdb.Exists(ctx, layerKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check layer existence: %w", err)
	}
	if counts == 0 {
		return fmt.Errorf("layer %s: %w", e.LayerID, redis.Nil)
	}

	counts, err = c.rdb.Exists(ctx, effectKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check effect existence: %w", err)
	}
	if counts > 0 {
		return fmt.Errorf("effect %s: %w", e.ID, ErrAlreadyExists)
	}

	hash, err := EffectToHash(e)
	if err != nil {
		return fmt.Errorf("failed to serialize effect: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, effectKey, hash)
	pipe.RPush(ctx, LayerEffectsKey(c.instanceName, e.LayerID), e.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to attach effect: %w", err)
	}
	return nil
}

// GetEffect retrieves an effect definition by ID.
// Returns (nil, redis.Nil) if the effect doesn't exist.
func (c *Client) GetEffect(ctx context.Context, effectID string) (*Effect, error) {
	hashData, err := c.rdb.HGetAll(ctx, EffectKey(c.instanceName, effectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read effect from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	effect, err := HashToEffect(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize effect: %w", err)
	}
	return effect, nil
}

// SetEffectEnabled enables or disables an attached effect.
// Returns redis.Nil if the effect doesn't exist.
func (c *Client) SetEffectEnabled(ctx context.Context, effectID string, enabled bool) error {
	key := EffectKey(c.instanceName, effectID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check effect existence: %w", err)
	}
	if exists == 0 {
		return redis.Nil
	}

	if err := c.rdb.HSet(ctx, key, "enabled", strconv.FormatBool(enabled)).Err(); err != nil {
		return fmt.Errorf("failed to update effect: %w", err)
	}
	return nil
}

// LayerForEffect returns the layer an effect is attached to, with all of the
// layer's effects populated. Returns redis.Nil if the effect or its layer
// doesn't exist.
func (c *Client) LayerForEffect(ctx context.Context, effectID string) (*Layer, error) {
	effect, err := c.GetEffect(ctx, effectID)
	if err != nil {
		return nil, err
	}
	return c.GetLayerWithEffects(ctx, effect.LayerID)
}

// SaveBrandKit stores the active brand kit for a creator, replacing any previous one.
func (c *Client) SaveBrandKit(ctx context.Context, ownerID string, kit *BrandKit) error {
	if ownerID == "" {
		return fmt.Errorf("owner ID cannot be empty")
	}
	if err := kit.Validate(); err != nil {
		return fmt.Errorf("invalid brand kit: %w", err)
	}

	kitJSON, err := json.Marshal(kit)
	if err != nil {
		return fmt.Errorf("failed to marshal brand kit: %w", err)
	}

	if err := c.rdb.Set(ctx, BrandKitKey(c.instanceName, ownerID), kitJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to write brand kit to Redis: %w", err)
	}
	return nil
}

// ActiveBrandKit returns the creator's saved brand kit, or the default kit
// when none has been saved.
func (c *Client) ActiveBrandKit(ctx context.Context, ownerID string) (*BrandKit, error) {
	raw, err := c.rdb.Get(ctx, BrandKitKey(c.instanceName, ownerID)).Bytes()
	if IsNotFound(err) {
		return DefaultBrandKit(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read brand kit from Redis: %w", err)
	}

	var kit BrandKit
	if err := json.Unmarshal(raw, &kit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal brand kit: %w", err)
	}
	return &kit, nil
}

// RecordCreatorConnection stores the latest connection details of a creator.
func (c *Client) RecordCreatorConnection(ctx context.Context, creator *Creator) error {
	if creator.ID == "" {
		return fmt.Errorf("creator ID cannot be empty")
	}

	if err := c.rdb.HSet(ctx, CreatorKey(c.instanceName, creator.ID), CreatorToHash(creator)).Err(); err != nil {
		return fmt.Errorf("failed to write creator to Redis: %w", err)
	}
	return nil
}

// GetCreator retrieves a creator's last known connection.
// Returns (nil, redis.Nil) if the creator has never connected.
func (c *Client) GetCreator(ctx context.Context, creatorID string) (*Creator, error) {
	hashData, err := c.rdb.HGetAll(ctx, CreatorKey(c.instanceName, creatorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read creator from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	creator, err := HashToCreator(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize creator: %w", err)
	}
	return creator, nil
}

// SaveInstanceRecord writes an instance snapshot (full replacement).
// A positive ttl sets the snapshot to expire.
func (c *Client) SaveInstanceRecord(ctx context.Context, r *InstanceRecord, ttl time.Duration) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid instance record: %w", err)
	}

	key := InstanceKey(c.instanceName, r.ID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, InstanceRecordToHash(r))
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write instance record to Redis: %w", err)
	}
	return nil
}

// GetInstanceRecord retrieves an instance snapshot by ID.
// Returns (nil, redis.Nil) if the snapshot doesn't exist or has expired.
func (c *Client) GetInstanceRecord(ctx context.Context, instanceID string) (*InstanceRecord, error) {
	hashData, err := c.rdb.HGetAll(ctx, InstanceKey(c.instanceName, instanceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read instance record from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	record, err := HashToInstanceRecord(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize instance record: %w", err)
	}
	return record, nil
}

// ScanInstanceIDs returns the IDs of every stored instance snapshot.
func (c *Client) ScanInstanceIDs(ctx context.Context) ([]string, error) {
	prefix := InstanceKey(c.instanceName, "")

	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, InstanceKeyPattern(c.instanceName), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance records: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, strings.TrimPrefix(key, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

// ListInstanceRecords returns every stored instance snapshot.
// Snapshots that expire during the scan are skipped.
func (c *Client) ListInstanceRecords(ctx context.Context) ([]*InstanceRecord, error) {
	ids, err := c.ScanInstanceIDs(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*InstanceRecord, 0, len(ids))
	for _, id := range ids {
		record, err := c.GetInstanceRecord(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// AppendHistory records a lifecycle transition and trims the history to its cap.
func (c *Client) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	member, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := HistoryKey(c.instanceName)
	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: HistoryScore(entry.AtMs), Member: string(member)})
	pipe.ZRemRangeByRank(ctx, key, 0, -(c.historyCap + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListHistory returns history entries at or after sinceMs in time order.
// A positive limit keeps only the most recent entries.
func (c *Client) ListHistory(ctx context.Context, sinceMs int64, limit int) ([]HistoryEntry, error) {
	members, err := c.rdb.ZRangeByScore(ctx, HistoryKey(c.instanceName), &redis.ZRangeBy{
		Min: strconv.FormatInt(sinceMs, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if limit > 0 && len(members) > limit {
		members = members[len(members)-limit:]
	}

	entries := make([]HistoryEntry, 0, len(members))
	for _, m := range members {
		var entry HistoryEntry
		if err := json.Unmarshal([]byte(m), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PublishIngress publishes an encoded client message on a creator's ingress channel.
func (c *Client) PublishIngress(ctx context.Context, creatorID, platform string, payload []byte) error {
	channel := IngressChannel(c.instanceName, creatorID, platform)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish ingress message: %w", err)
	}
	return nil
}

// PublishStatus publishes an encoded system:status message.
func (c *Client) PublishStatus(ctx context.Context, payload []byte) error {
	if err := c.rdb.Publish(ctx, StatusEventsChannel(c.instanceName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

// PublishRenderCommand publishes a command to a platform's renderer backend.
func (c *Client) PublishRenderCommand(ctx context.Context, platform string, cmd RenderCommand) error {
	return c.publishJSON(ctx, RenderChannel(c.instanceName, platform), cmd, "render command")
}

// PublishRenderAck publishes a backend's completion report.
func (c *Client) PublishRenderAck(ctx context.Context, ack RenderAck) error {
	if err := ack.Validate(); err != nil {
		return fmt.Errorf("invalid render ack: %w", err)
	}
	return c.publishJSON(ctx, RenderAcksChannel(c.instanceName), ack, "render ack")
}

// PublishControl publishes an operator control command.
func (c *Client) PublishControl(ctx context.Context, cmd ControlCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid control command: %w", err)
	}
	return c.publishJSON(ctx, ControlChannel(c.instanceName), cmd, "control command")
}

func (c *Client) publishJSON(ctx context.Context, channel string, v any, what string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", what, err)
	}
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", what, err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription.
// Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan T {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors; the offending message is skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeIngress subscribes to every creator's ingress channel.
func (c *Client) SubscribeIngress(ctx context.Context) (*Subscription[IngressEvent], error) {
	pubsub := c.rdb.PSubscribe(ctx, IngressPattern(c.instanceName))
	return subscribe(ctx, pubsub, func(msg *redis.Message) (IngressEvent, error) {
		creatorID, platform, err := ParseIngressChannel(c.instanceName, msg.Channel)
		if err != nil {
			return IngressEvent{}, err
		}
		return IngressEvent{CreatorID: creatorID, Platform: platform, Payload: []byte(msg.Payload)}, nil
	})
}

// SubscribeStatus subscribes to outbound status events. Payloads are
// delivered raw for decoding by the protocol package.
func (c *Client) SubscribeStatus(ctx context.Context) (*Subscription[[]byte], error) {
	pubsub := c.rdb.Subscribe(ctx, StatusEventsChannel(c.instanceName))
	return subscribe(ctx, pubsub, func(msg *redis.Message) ([]byte, error) {
		return []byte(msg.Payload), nil
	})
}

// SubscribeRenderCommands subscribes to a platform's render channel.
// Used by renderer backends.
func (c *Client) SubscribeRenderCommands(ctx context.Context, platform string) (*Subscription[RenderCommand], error) {
	pubsub := c.rdb.Subscribe(ctx, RenderChannel(c.instanceName, platform))
	return subscribe(ctx, pubsub, unmarshalJSON[RenderCommand]("render command"))
}

// SubscribeRenderAcks subscribes to backend completion reports.
func (c *Client) SubscribeRenderAcks(ctx context.Context) (*Subscription[RenderAck], error) {
	pubsub := c.rdb.Subscribe(ctx, RenderAcksChannel(c.instanceName))
	return subscribe(ctx, pubsub, func(msg *redis.Message) (RenderAck, error) {
		ack, err := unmarshalJSON[RenderAck]("render ack")(msg)
		if err != nil {
			return ack, err
		}
		if err := ack.Validate(); err != nil {
			return ack, fmt.Errorf("invalid render ack: %w", err)
		}
		return ack, nil
	})
}

// SubscribeControl subscribes to operator control commands.
func (c *Client) SubscribeControl(ctx context.Context) (*Subscription[ControlCommand], error) {
	pubsub := c.rdb.Subscribe(ctx, ControlChannel(c.instanceName))
	return subscribe(ctx, pubsub, func(msg *redis.Message) (ControlCommand, error) {
		cmd, err := unmarshalJSON[ControlCommand]("control command")(msg)
		if err != nil {
			return cmd, err
		}
		if err := cmd.Validate(); err != nil {
			return cmd, fmt.Errorf("invalid control command: %w", err)
		}
		return cmd, nil
	})
}

func unmarshalJSON[T any](what string) func(*redis.Message) (T, error) {
	return func(msg *redis.Message) (T, error) {
		var v T
		if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
			return v, fmt.Errorf("failed to unmarshal %s: %w", what, err)
		}
		return v, nil
	}
}

// subscribe waits for the subscription to be confirmed by Redis, then pumps
// decoded messages into the returned Subscription until ctx is cancelled or
// Close is called.
func subscribe[T any](ctx context.Context, pubsub *redis.PubSub, decode func(*redis.Message) (T, error)) (*Subscription[T], error) {
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	eventsChan := make(chan T, subscriptionBuffer)
	errorsChan := make(chan error, subscriptionBuffer)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				event, err := decode(msg)
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
