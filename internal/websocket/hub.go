package websocket

import (
	"context"
	"errors"
	"log"
	"sync"

	"socialnet/internal/imtypes"
)

// ErrQueueFull is returned by Publish when the delivery queue cannot take another event.
var ErrQueueFull = errors.New("hub delivery queue is full")

const presenceStripes = 64

// PresenceHooks is told about a user's first live connection and about the moment the
// last one goes away.
type PresenceHooks interface {
	OnConnect(ctx context.Context, userID uint)
	OnDisconnect(ctx context.Context, userID uint)
}

// Hub maintains the set of active clients, keyed by user, and delivers events to them.
// A user may hold several connections at once (tabs, devices).
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}

	// Events waiting to be written to client send buffers.
	deliveries chan imtypes.Event

	presence PresenceHooks
	// Serializes presence hooks per user so a reconnect cannot overtake a disconnect.
	presenceMu [presenceStripes]sync.Mutex
}

// NewHub creates a new Hub. presence may be nil.
func NewHub(queueSize int, presence PresenceHooks) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		clients:    make(map[uint]map[*Client]struct{}),
		deliveries: make(chan imtypes.Event, queueSize),
		presence:   presence,
	}
}

// SetPresence installs the presence hooks. Call it before the hub serves connections.
func (h *Hub) SetPresence(presence PresenceHooks) {
	h.presence = presence
}

// Register adds the client and reports whether it is the user's first live connection.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	conns, ok := h.clients[client.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[client.UserID] = conns
	}
	conns[client] = struct{}{}
	first := len(conns) == 1
	h.mu.Unlock()

	log.Printf("客户端已注册: UserID %d (连接数 %d)", client.UserID, h.ConnectionCount(client.UserID))
	if first {
		h.runPresence(client.UserID, true)
	}
	return first
}

// Unregister removes the client and closes its send buffer. It reports whether the
// user has no live connection left; unknown clients are ignored.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	conns, ok := h.clients[client.UserID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	if _, ok := conns[client]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(conns, client)
	close(client.send)
	last := len(conns) == 0
	if last {
		delete(h.clients, client.UserID)
	}
	h.mu.Unlock()

	log.Printf("客户端已注销: UserID %d", client.UserID)
	if last {
		h.runPresence(client.UserID, false)
	}
	return last
}

// runPresence re-checks the connection count under the user's stripe lock, so only the
// transition that still holds is reported.
func (h *Hub) runPresence(userID uint, connected bool) {
	if h.presence == nil {
		return
	}
	lock := &h.presenceMu[userID%presenceStripes]
	lock.Lock()
	defer lock.Unlock()

	online := h.ConnectionCount(userID) > 0
	switch {
	case connected && online:
		h.presence.OnConnect(context.Background(), userID)
	case !connected && !online:
		h.presence.OnDisconnect(context.Background(), userID)
	}
}

// ConnectionCount returns the number of live connections of userID on this hub.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// IsOnline reports whether userID has at least one live connection on this hub.
func (h *Hub) IsOnline(userID uint) bool {
	return h.ConnectionCount(userID) > 0
}

// Publish queues the event for delivery without blocking the caller.
// It satisfies imtypes.Publisher, so services can use the hub directly in single-process mode.
func (h *Hub) Publish(ctx context.Context, event imtypes.Event) error {
	select {
	case h.deliveries <- event:
		return nil
	default:
		log.Printf("警告: Hub delivery queue is full. Dropping %s for user %d", event.Name, event.TargetUserID)
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Println("WebSocket Hub Run loop started.")
	for {
		select {
		case <-ctx.Done():
			log.Println("WebSocket Hub Run loop stopped.")
			return
		case event := <-h.deliveries:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event imtypes.Event) {
	frame, err := event.FrameBytes()
	if err != nil {
		log.Printf("错误: 无法序列化事件 %s: %v", event.Name, err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	if event.Broadcast {
		for _, conns := range h.clients {
			slow = appendSlow(slow, conns, frame)
		}
	} else {
		// A user without a live connection here simply misses the event.
		slow = appendSlow(slow, h.clients[event.TargetUserID], frame)
	}
	h.mu.RUnlock()

	for _, client := range slow {
		log.Printf("警告: UserID %d 的发送通道已满，断开该连接。", client.UserID)
		client.close()
	}
}

// appendSlow offers frame to every client and collects those whose send buffer is full.
// Callers hold at least the read lock, so no send buffer is closed underneath.
func appendSlow(slow []*Client, conns map[*Client]struct{}, frame []byte) []*Client {
	for client := range conns {
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	return slow
}
