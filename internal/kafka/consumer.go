package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"socialnet/internal/config"
)

const pollTimeoutMs = 500

// MessageHandler processes one consumed message. Errors are logged and the message is skipped.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// MessageConsumer defines the interface for a Kafka message consumer.
type MessageConsumer interface {
	Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error
	Close()
}

// confluentKafkaConsumer is an implementation of MessageConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer *kafka.Consumer
	cfg      config.KafkaConfig
	groupID  string
}

// NewConfluentKafkaConsumer creates a consumer; the underlying client is created by Consume
// once the group id is known.
func NewConfluentKafkaConsumer(cfg config.KafkaConfig) (MessageConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: no brokers configured")
	}
	return &confluentKafkaConsumer{cfg: cfg}, nil
}

// consumerConfig builds the client settings for a single-use group: it starts at the
// newest offset and never commits, since nobody resumes the group after this process.
func consumerConfig(cfg config.KafkaConfig, groupID string) *kafka.ConfigMap {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":        strings.Join(cfg.Brokers, ","),
		"group.id":                 groupID,
		"auto.offset.reset":        "latest",
		"enable.auto.commit":       false,
		"enable.auto.offset.store": false,
		"security.protocol":        cfg.Protocol,
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}
	return configMap
}

// Consume blocks reading topics until ctx is cancelled or the client hits a fatal error.
func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("kafka consumer: no topics specified")
	}
	c.groupID = groupID

	consumer, err := kafka.NewConsumer(consumerConfig(c.cfg, groupID))
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer for group %s: %w", groupID, err)
	}
	c.consumer = consumer

	if err := consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topics %v for group %s: %w", topics, groupID, err)
	}
	log.Printf("Kafka consumer %s subscribed to %v", groupID, topics)

	for ctx.Err() == nil {
		switch e := consumer.Poll(pollTimeoutMs).(type) {
		case nil:
		case *kafka.Message:
			if err := handler(ctx, e); err != nil {
				log.Printf("Kafka consumer %s: message at %v skipped: %v", groupID, e.TopicPartition, err)
			}
		case kafka.Error:
			if e.IsFatal() {
				return fmt.Errorf("kafka consumer %s: %w", groupID, e)
			}
			log.Printf("Kafka consumer %s error (code %d, retriable %t): %v", groupID, e.Code(), e.IsRetriable(), e)
		}
	}
	log.Printf("Kafka consumer %s stopped", groupID)
	return ctx.Err()
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		log.Printf("Error closing Kafka consumer %s: %v", c.groupID, err)
	}
	c.consumer = nil
}
