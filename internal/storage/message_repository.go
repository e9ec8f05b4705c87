package storage

import (
	"context"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// MessageRepository 定义了消息数据操作的接口。
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListByConversation returns the whole history oldest first; id breaks created_at ties.
	ListByConversation(ctx context.Context, conversationID uint) ([]*models.Message, error)
	// MarkConversationRead flips unread messages of the conversation addressed to receiverID
	// and returns the ids it flipped.
	MarkConversationRead(ctx context.Context, conversationID, receiverID uint) ([]uint, error)
	// MarkReadFrom flips unread messages senderID sent to receiverID.
	MarkReadFrom(ctx context.Context, senderID, receiverID uint) ([]uint, error)
	// UnreadCountsBySender returns sender id -> unread count for messages addressed to receiverID.
	UnreadCountsBySender(ctx context.Context, receiverID uint) (map[uint]int64, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create 在数据库中创建一条新的消息记录。
func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 通过ID检索消息。
func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	// Preload Sender to get user information along with the message
	err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *gormMessageRepository) ListByConversation(ctx context.Context, conversationID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *gormMessageRepository) MarkConversationRead(ctx context.Context, conversationID, receiverID uint) ([]uint, error) {
	return r.markRead(ctx, r.db.WithContext(ctx).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, receiverID, false))
}

func (r *gormMessageRepository) MarkReadFrom(ctx context.Context, senderID, receiverID uint) ([]uint, error) {
	return r.markRead(ctx, r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, receiverID, false))
}

// markRead updates only the ids it selected, so the returned list is exactly what flipped
// even when another reader marks the same messages concurrently.
func (r *gormMessageRepository) markRead(ctx context.Context, scope *gorm.DB) ([]uint, error) {
	var ids []uint
	if err := scope.Model(&models.Message{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	var flipped []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			res := tx.Model(&models.Message{}).
				Where("id = ? AND is_read = ?", id, false).
				Update("is_read", true)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				flipped = append(flipped, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flipped, nil
}

func (r *gormMessageRepository) UnreadCountsBySender(ctx context.Context, receiverID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}
