package models

// Conversation is the single messenger thread between two users.
// UserLowID/UserHighID are the canonical pair and are unique together.
type Conversation struct {
	BaseModel
	UserLowID     uint  `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_low_id"`
	UserHighID    uint  `gorm:"not null;uniqueIndex:idx_conversation_pair" json:"user_high_id"`
	LastMessageID *uint `gorm:"index" json:"last_message_id,omitempty"`
}

// TableName 指定 Conversation 模型的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// HasParticipant reports whether userID is one of the two users of the conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}
