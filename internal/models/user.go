package models

import "time"

// User represents an account.
// IsOnline and LastSeenAt are written only by the presence tracker.
type User struct {
	BaseModel
	Username     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Nickname     string     `gorm:"type:varchar(100)" json:"nickname,omitempty"`
	AvatarURL    string     `gorm:"type:varchar(255)" json:"avatar_url,omitempty"`
	Bio          string     `gorm:"type:text" json:"bio,omitempty"`
	IsOnline     bool       `gorm:"not null;default:false" json:"is_online"`
	LastSeenAt   *time.Time `json:"last_seen,omitempty"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// UserBasicInfo holds minimal public information about a user.
type UserBasicInfo struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// PublicInfo strips the user down to its public fields.
func (u *User) PublicInfo() *UserBasicInfo {
	return &UserBasicInfo{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		AvatarURL: u.AvatarURL,
	}
}

// FriendInfo is a friend entry as shown in a friends list or chat sidebar.
type FriendInfo struct {
	UserBasicInfo
	IsOnline    bool       `json:"is_online"`
	LastSeen    *time.Time `json:"last_seen"`
	UnreadCount int64      `json:"unread_count"`
}
