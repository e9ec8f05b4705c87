package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"socialnet/internal/imtypes"
)

const broadcastChannel = "all"

// EventBus carries realtime events over Redis pub/sub: one channel per target user
// under a common prefix, plus a broadcast channel.
type EventBus struct {
	client *redis.Client
	prefix string
}

// NewEventBus creates an EventBus whose channels start with prefix.
func NewEventBus(client *redis.Client, prefix string) *EventBus {
	return &EventBus{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel an event travels on.
func (b *EventBus) Channel(event imtypes.Event) string {
	if event.Broadcast {
		return b.prefix + broadcastChannel
	}
	return b.prefix + strconv.FormatUint(uint64(event.TargetUserID), 10)
}

// Publish implements imtypes.Publisher.
func (b *EventBus) Publish(ctx context.Context, event imtypes.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件 %s 失败: %w", event.Name, err)
	}
	if err := b.client.Publish(ctx, b.Channel(event), payload).Err(); err != nil {
		return fmt.Errorf("发布事件 %s 到 Redis 失败: %w", event.Name, err)
	}
	return nil
}

// Subscribe forwards every event on the bus to sink until ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context, sink imtypes.Publisher) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("订阅 Redis 频道 %s* 失败: %w", b.prefix, err)
	}
	log.Printf("Redis event bus subscribed to %s*", b.prefix)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(ctx, msg.Channel, []byte(msg.Payload), sink)
		}
	}
}

func (b *EventBus) forward(ctx context.Context, channel string, payload []byte, sink imtypes.Publisher) {
	var event imtypes.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("无法解析频道 %s 上的事件: %v", channel, err)
		return
	}
	if err := sink.Publish(ctx, event); err != nil {
		log.Printf("Realtime event %s for user %d dropped: %v", event.Name, event.TargetUserID, err)
	}
}
