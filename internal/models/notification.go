package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Notification types.
const (
	NotificationFriendRequest         = "friend_request"
	NotificationFriendRequestAccepted = "friend_request_accepted"
)

// Notification is a persisted inbox entry. friend_request notifications reference a
// Friendship through data.friendship_id and go stale once that request is no longer pending.
type Notification struct {
	BaseModel
	UserID  uint           `gorm:"not null;index" json:"user_id"`
	Type    string         `gorm:"type:varchar(50);not null;index" json:"type"`
	Message string         `gorm:"type:varchar(255);not null" json:"message"`
	Data    datatypes.JSON `json:"data,omitempty"`
	IsRead  bool           `gorm:"not null;default:false" json:"is_read"`
}

// TableName 指定 Notification 模型的表名。
func (Notification) TableName() string {
	return "notifications"
}

// FriendshipRef extracts data.friendship_id. ok is false when the payload is missing,
// unparsable or carries no positive id.
func (n *Notification) FriendshipRef() (id uint, ok bool) {
	if len(n.Data) == 0 {
		return 0, false
	}
	var payload struct {
		FriendshipID *float64 `json:"friendship_id"`
	}
	if err := json.Unmarshal(n.Data, &payload); err != nil || payload.FriendshipID == nil {
		return 0, false
	}
	if *payload.FriendshipID <= 0 {
		return 0, false
	}
	return uint(*payload.FriendshipID), true
}
