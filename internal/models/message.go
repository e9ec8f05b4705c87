package models

// Message 代表存储在数据库中的聊天消息。
// Only IsRead changes after creation, and only through the receiver's read action.
type Message struct {
	BaseModel
	ConversationID uint   `gorm:"index;not null" json:"chat_id"`
	SenderID       uint   `gorm:"index;not null" json:"sender_id"`
	ReceiverID     uint   `gorm:"index;not null" json:"receiver_id"`
	Content        string `gorm:"type:text" json:"content"`
	ImageURL       string `gorm:"type:varchar(255)" json:"image_url,omitempty"`
	IsRead         bool   `gorm:"not null;default:false;index" json:"is_read"`

	Sender User `gorm:"foreignKey:SenderID" json:"-"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}
