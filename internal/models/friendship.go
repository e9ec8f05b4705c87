package models

import "time"

// FriendshipStatus is the stored state of a friendship row.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// RelationStatus describes a friendship from one user's point of view.
type RelationStatus string

const (
	RelationNone            RelationStatus = "none"
	RelationFriends         RelationStatus = "friends"
	RelationRequestSent     RelationStatus = "request_sent"
	RelationRequestReceived RelationStatus = "request_received"
)

// Friendship is a friend request that becomes a friendship once accepted.
// PairLow/PairHigh hold the canonical ordering of the two users and carry a unique
// index, so at most one row exists per unordered pair whatever its direction or status.
type Friendship struct {
	BaseModel
	RequesterID uint             `gorm:"not null;index" json:"requester_id"`
	RequestedID uint             `gorm:"not null;index" json:"requested_id"`
	Status      FriendshipStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PairLow     uint             `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"-"`
	PairHigh    uint             `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"-"`
}

// TableName 指定 Friendship 模型的表名。
func (Friendship) TableName() string {
	return "friendships"
}

// EnsureCanonicalOrder fills PairLow/PairHigh from the requester and requested ids.
// This should be called before creating a Friendship record.
func (f *Friendship) EnsureCanonicalOrder() {
	f.PairLow, f.PairHigh = CanonicalPair(f.RequesterID, f.RequestedID)
}

// OtherUser returns the id of the participant that is not userID.
func (f *Friendship) OtherUser(userID uint) uint {
	if f.RequesterID == userID {
		return f.RequestedID
	}
	return f.RequesterID
}

// RelationFor derives the relation status as seen by viewer.
func (f *Friendship) RelationFor(viewer uint) RelationStatus {
	switch {
	case f == nil:
		return RelationNone
	case f.Status == FriendshipAccepted:
		return RelationFriends
	case f.RequesterID == viewer:
		return RelationRequestSent
	default:
		return RelationRequestReceived
	}
}

// FriendRequestView is a pending request together with the other party's public info.
type FriendRequestView struct {
	FriendshipID uint           `json:"friendship_id"`
	User         *UserBasicInfo `json:"user"`
	CreatedAt    time.Time      `json:"created_at"`
}
