package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialnet/internal/models"
)

// ConversationRepository 定义了会话数据操作的接口。
type ConversationRepository interface {
	GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error)
	// FindByUsers returns the conversation of the unordered pair, or nil, nil.
	FindByUsers(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error)
	// FindOrCreate resolves the pair's conversation, inserting it when absent.
	// Concurrent callers for the same pair end up with the same row. Run it outside
	// REPEATABLE READ transactions: their snapshot hides a row a rival just committed.
	FindOrCreate(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID, messageID uint) error
}

// gormConversationRepository 使用 GORM 实现 ConversationRepository。
type gormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository 创建一个新的基于 GORM 的 ConversationRepository。
func NewGormConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// GetConversationByID 通过ID检索会话。
func (r *gormConversationRepository) GetConversationByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).First(&conversation, id).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *gormConversationRepository) FindByUsers(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	low, high := models.CanonicalPair(userID1, userID2)
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conversation, nil
}

// FindOrCreate relies on the unique (user_low_id, user_high_id) index: the insert is a
// no-op when another writer got there first, and the follow-up select reads the winner.
func (r *gormConversationRepository) FindOrCreate(ctx context.Context, userID1, userID2 uint) (*models.Conversation, error) {
	existing, err := r.FindByUsers(ctx, userID1, userID2)
	if err != nil || existing != nil {
		return existing, err
	}

	low, high := models.CanonicalPair(userID1, userID2)
	candidate := &models.Conversation{UserLowID: low, UserHighID: high}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_low_id"}, {Name: "user_high_id"}},
			DoNothing: true,
		}).
		Create(candidate).Error
	if err != nil {
		return nil, err
	}

	conversation, err := r.FindByUsers(ctx, low, high)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return conversation, nil
}

func (r *gormConversationRepository) SetLastMessage(ctx context.Context, conversationID, messageID uint) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_id", messageID).Error
}
