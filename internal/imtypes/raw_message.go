package imtypes

// Client command types sent over the WebSocket.
const (
	CommandMarkRead    = "mark_read"
	CommandSendMessage = "send_message"
)

// ClientCommand is a frame sent by a client over its live connection.
// The sender is never taken from the frame; it is the authenticated user of the connection.
type ClientCommand struct {
	Type       string `json:"type"`
	FriendID   uint   `json:"friend_id,omitempty"`   // mark_read
	ReceiverID uint   `json:"receiver_id,omitempty"` // send_message
	Content    string `json:"content,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}
