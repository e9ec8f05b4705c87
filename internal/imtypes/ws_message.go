package imtypes

import (
	"context"
	"encoding/json"
)

// Realtime event names pushed to clients.
const (
	EventUserStatusChanged  = "user_status_changed"
	EventNewMessage         = "new_message"
	EventMessagesRead       = "messages_read"
	EventNewNotification    = "new_notification"
	EventPostCreated        = "post_created"
	EventPostLiked          = "post_liked"
	EventPostUnliked        = "post_unliked"
	EventPostCommented      = "post_commented"
	EventPostCommentDeleted = "post_comment_deleted"
	EventPostDeleted        = "post_deleted"
)

// Event is a named payload addressed to one user's presence channel, or to every
// connected user when Broadcast is set. It is the unit carried by the event bus.
type Event struct {
	Name         string          `json:"event"`
	Data         json.RawMessage `json:"data"`
	TargetUserID uint            `json:"targetUserId,omitempty"`
	Broadcast    bool            `json:"broadcast,omitempty"`
}

// Frame is what a client actually receives over its WebSocket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEvent marshals payload into an event for target.
func NewEvent(name string, payload interface{}, target uint) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data, TargetUserID: target}, nil
}

// FrameBytes encodes the client-facing frame for the event.
func (e Event) FrameBytes() ([]byte, error) {
	return json.Marshal(Frame{Event: e.Name, Data: e.Data})
}

// Publisher hands events to whatever carries them to live connections
// (the local hub, Kafka or Redis). Delivery is best effort: a target without
// a live connection simply misses the event.
// 将接口定义放在 imtypes 中以打破 websocket 和 services 之间的循环依赖。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
