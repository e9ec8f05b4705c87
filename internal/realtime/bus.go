// Package realtime wires the event bus that carries events from the services to the
// WebSocket hub, in one process or across many.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
	"socialnet/internal/kafka"
	kafkahandlers "socialnet/internal/kafka/handlers"
	"socialnet/internal/redis"
	"socialnet/internal/websocket"
)

// Bus is the selected event bus: where services publish and, for the chat server,
// where the hub's events come from.
type Bus struct {
	Kind      string
	Publisher imtypes.Publisher

	consume func(ctx context.Context, sink imtypes.Publisher) error
	closers []func()
}

// Open selects the bus named by cfg.Realtime.Bus. hub is required for the local bus;
// redisClient for the redis bus.
func Open(cfg config.Config, hub *websocket.Hub, redisClient *goredis.Client) (*Bus, error) {
	switch cfg.Realtime.Bus {
	case config.BusLocal, "":
		if hub == nil {
			return nil, errors.New("local event bus needs a hub in this process")
		}
		return &Bus{Kind: config.BusLocal, Publisher: hub}, nil

	case config.BusKafka:
		producer, err := kafka.NewConfluentKafkaProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		bus := &Bus{
			Kind:      config.BusKafka,
			Publisher: kafka.NewEventBus(producer, cfg.Kafka.EventsTopic),
			closers:   []func(){producer.Close},
		}
		bus.consume = func(ctx context.Context, sink imtypes.Publisher) error {
			consumer, err := kafka.NewConfluentKafkaConsumer(cfg.Kafka)
			if err != nil {
				return err
			}
			defer consumer.Close()
			// Every instance needs every event, so each gets a group of its own.
			groupID := fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, uuid.NewString())
			logic := kafkahandlers.NewEventConsumerLogic(sink)
			return consumer.Consume(ctx, []string{cfg.Kafka.EventsTopic}, groupID, logic.HandleEvent)
		}
		return bus, nil

	case config.BusRedis:
		if redisClient == nil {
			return nil, errors.New("redis event bus needs REDIS.ADDR")
		}
		eventBus := redis.NewEventBus(redisClient, cfg.Redis.ChannelPrefix)
		return &Bus{
			Kind:      config.BusRedis,
			Publisher: eventBus,
			consume:   eventBus.Subscribe,
		}, nil

	default:
		return nil, fmt.Errorf("unknown realtime bus %q", cfg.Realtime.Bus)
	}
}

// Consume feeds events from the bus into sink until ctx is cancelled. For the local bus
// events already land in the hub, so it just waits.
func (b *Bus) Consume(ctx context.Context, sink imtypes.Publisher) error {
	if b.consume == nil {
		<-ctx.Done()
		return nil
	}
	log.Printf("Consuming realtime events from the %s bus", b.Kind)
	return b.consume(ctx, sink)
}

// Close releases the bus's producers.
func (b *Bus) Close() {
	for _, closeFn := range b.closers {
		closeFn()
	}
}
