package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/config"
	"socialnet/internal/websocket"
)

func TestOpenLocalBusPublishesToHub(t *testing.T) {
	hub := websocket.NewHub(4, nil)
	bus, err := Open(config.Config{Realtime: config.RealtimeConfig{Bus: config.BusLocal}}, hub, nil)
	require.NoError(t, err)
	assert.Equal(t, config.BusLocal, bus.Kind)
	assert.Same(t, hub, bus.Publisher)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, bus.Consume(ctx, hub))
	bus.Close()
}

func TestOpenRejectsMisconfiguredBus(t *testing.T) {
	_, err := Open(config.Config{Realtime: config.RealtimeConfig{Bus: config.BusLocal}}, nil, nil)
	assert.Error(t, err)

	_, err = Open(config.Config{Realtime: config.RealtimeConfig{Bus: config.BusRedis}}, nil, nil)
	assert.Error(t, err)

	_, err = Open(config.Config{Realtime: config.RealtimeConfig{Bus: "carrier-pigeon"}}, nil, nil)
	assert.Error(t, err)
}
