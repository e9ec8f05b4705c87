package kafkahandlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/imtypes"
)

type sliceSink struct {
	events []imtypes.Event
}

func (s *sliceSink) Publish(_ context.Context, event imtypes.Event) error {
	s.events = append(s.events, event)
	return nil
}

func TestHandleEventForwardsToSink(t *testing.T) {
	sink := &sliceSink{}
	logic := NewEventConsumerLogic(sink)

	event, err := imtypes.NewEvent(imtypes.EventMessagesRead, map[string]interface{}{"friend_id": 2}, 7)
	require.NoError(t, err)
	value, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, logic.HandleEvent(context.Background(), &kafka.Message{Value: value}))
	require.Len(t, sink.events, 1)
	assert.Equal(t, uint(7), sink.events[0].TargetUserID)
	assert.Equal(t, imtypes.EventMessagesRead, sink.events[0].Name)
	assert.JSONEq(t, `{"friend_id":2}`, string(sink.events[0].Data))
}

func TestHandleEventSkipsGarbage(t *testing.T) {
	sink := &sliceSink{}
	logic := NewEventConsumerLogic(sink)

	assert.NoError(t, logic.HandleEvent(context.Background(), &kafka.Message{Value: []byte("not json")}))
	assert.NoError(t, logic.HandleEvent(context.Background(), &kafka.Message{Value: []byte(`{"data":{}}`)}))
	assert.Empty(t, sink.events)
}
