package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/imtypes"
)

type presenceLog struct {
	mu     sync.Mutex
	events []string
}

func (p *presenceLog) OnConnect(_ context.Context, userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "connect")
}

func (p *presenceLog) OnDisconnect(_ context.Context, userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "disconnect")
}

func (p *presenceLog) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func TestHubTracksMultipleConnections(t *testing.T) {
	presence := &presenceLog{}
	hub := NewHub(16, presence)
	tab1 := newClient(hub, nil, 1, 4, nil)
	tab2 := newClient(hub, nil, 1, 4, nil)

	assert.True(t, hub.Register(tab1))
	assert.False(t, hub.Register(tab2))
	assert.Equal(t, 2, hub.ConnectionCount(1))

	assert.False(t, hub.Unregister(tab1))
	assert.True(t, hub.IsOnline(1))
	assert.True(t, hub.Unregister(tab2))
	assert.False(t, hub.IsOnline(1))

	// Unknown or already removed clients are ignored.
	assert.False(t, hub.Unregister(tab2))
	assert.False(t, hub.Unregister(newClient(hub, nil, 2, 4, nil)))

	assert.Equal(t, []string{"connect", "disconnect"}, presence.snapshot())
}

func TestHubDeliversToEveryConnectionOfTarget(t *testing.T) {
	hub := NewHub(16, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	tab1 := newClient(hub, nil, 1, 4, nil)
	tab2 := newClient(hub, nil, 1, 4, nil)
	other := newClient(hub, nil, 2, 4, nil)
	hub.Register(tab1)
	hub.Register(tab2)
	hub.Register(other)

	event, err := imtypes.NewEvent(imtypes.EventNewMessage, map[string]string{"content": "hi"}, 1)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, event))

	for _, c := range []*Client{tab1, tab2} {
		select {
		case raw := <-c.send:
			var frame imtypes.Frame
			require.NoError(t, json.Unmarshal(raw, &frame))
			assert.Equal(t, imtypes.EventNewMessage, frame.Event)
			assert.JSONEq(t, `{"content":"hi"}`, string(frame.Data))
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}

	// A user without a connection simply misses the event.
	missed, err := imtypes.NewEvent(imtypes.EventNewMessage, "x", 3)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, missed))

	broadcast, err := imtypes.NewEvent(imtypes.EventPostCreated, "p", 0)
	require.NoError(t, err)
	broadcast.Broadcast = true
	require.NoError(t, hub.Publish(ctx, broadcast))

	select {
	case raw := <-other.send:
		var frame imtypes.Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.Equal(t, imtypes.EventPostCreated, frame.Event)
	case <-time.After(time.Second):
		t.Fatal("broadcast not delivered")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(1, nil)
	event, err := imtypes.NewEvent(imtypes.EventNewMessage, "x", 1)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), event))
	assert.ErrorIs(t, hub.Publish(context.Background(), event), ErrQueueFull)
}

func TestSlowClientDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(16, nil)
	slow := newClient(hub, nil, 1, 1, nil)
	fast := newClient(hub, nil, 2, 4, nil)
	hub.Register(slow)
	hub.Register(fast)

	toSlow, _ := imtypes.NewEvent(imtypes.EventNewMessage, "x", 1)
	toFast, _ := imtypes.NewEvent(imtypes.EventNewMessage, "y", 2)
	hub.deliver(toSlow)
	hub.deliver(toSlow) // buffer full: dropped, client closed
	hub.deliver(toFast)

	assert.Len(t, slow.send, 1)
	assert.Len(t, fast.send, 1)
}

func TestDispatchRecoversFromPanics(t *testing.T) {
	hub := NewHub(1, nil)
	calls := 0
	client := newClient(hub, nil, 1, 1, func(ctx context.Context, userID uint, cmd imtypes.ClientCommand) error {
		calls++
		if cmd.Type == "boom" {
			panic("boom")
		}
		assert.Equal(t, uint(1), userID)
		assert.Equal(t, uint(5), cmd.FriendID)
		return nil
	})

	assert.NotPanics(t, func() { client.dispatch([]byte(`{"type":"boom"}`)) })
	client.dispatch([]byte(`not json`))
	client.dispatch([]byte(`{"type":"mark_read","friend_id":5}`))
	assert.Equal(t, 2, calls)
}
