package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"socialnet/internal/imtypes"
)

const publishTimeout = 5 * time.Second

// EventBus publishes realtime events to a Kafka topic read by every chat server.
type EventBus struct {
	producer MessageProducer
	topic    string
}

// NewEventBus creates an EventBus writing to topic.
func NewEventBus(producer MessageProducer, topic string) *EventBus {
	return &EventBus{producer: producer, topic: topic}
}

// Publish implements imtypes.Publisher. Events are keyed by target user so that one
// user's events keep their order within a partition.
func (b *EventBus) Publish(ctx context.Context, event imtypes.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件 %s 失败: %w", event.Name, err)
	}

	key := []byte("broadcast")
	if !event.Broadcast {
		key = []byte(strconv.FormatUint(uint64(event.TargetUserID), 10))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.producer.SendMessage(ctx, b.topic, key, payload)
}
