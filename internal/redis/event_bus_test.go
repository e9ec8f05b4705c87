package redis

import (
	"context"
	"testing"

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

func TestChannelNames(t *testing.T) {
	bus := NewEventBus(nil, "socialnet:user:")

	direct, err := imtypes.NewEvent(imtypes.EventNewMessage, "x", 12)
	require.NoError(t, err)
	assert.Equal(t, "socialnet:user:12", bus.Channel(direct))

	direct.Broadcast = true
	assert.Equal(t, "socialnet:user:all", bus.Channel(direct))
}

func TestForwardDecodesEvents(t *testing.T) {
	bus := NewEventBus(nil, "p:")
	sink := &sliceSink{}

	bus.forward(context.Background(), "p:3", []byte(`{"event":"new_message","data":{"id":1},"targetUserId":3}`), sink)
	bus.forward(context.Background(), "p:3", []byte(`garbage`), sink)

	require.Len(t, sink.events, 1)
	assert.Equal(t, imtypes.EventNewMessage, sink.events[0].Name)
	assert.Equal(t, uint(3), sink.events[0].TargetUserID)
}
