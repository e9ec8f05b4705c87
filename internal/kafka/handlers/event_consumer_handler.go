package kafkahandlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"socialnet/internal/imtypes"
)

// EventConsumerLogic hands realtime events read from Kafka to the local hub.
type EventConsumerLogic struct {
	sink imtypes.Publisher
}

// NewEventConsumerLogic creates a new instance of EventConsumerLogic.
func NewEventConsumerLogic(sink imtypes.Publisher) *EventConsumerLogic {
	if sink == nil {
		log.Panic("event sink cannot be nil")
	}
	return &EventConsumerLogic{sink: sink}
}

// HandleEvent is the MessageHandler passed to the Kafka consumer.
// Undecodable messages are skipped; the single-use group never commits offsets.
func (h *EventConsumerLogic) HandleEvent(ctx context.Context, msg *kafka.Message) error {
	var event imtypes.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("Error unmarshalling realtime event (Value: '%s'): %v. This message will be skipped.", string(msg.Value), err)
		return nil
	}
	if event.Name == "" {
		log.Printf("Realtime event without a name at offset %v skipped.", msg.TopicPartition.Offset)
		return nil
	}

	// A full hub queue drops the event; retrying would only deliver it late.
	if err := h.sink.Publish(ctx, event); err != nil {
		log.Printf("Realtime event %s for user %d dropped: %v", event.Name, event.TargetUserID, err)
	}
	return nil
}
