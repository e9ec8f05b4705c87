package storage

import (
	"context"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// NotificationRepository defines the interface for notification inbox operations.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	// ListRecent returns the user's notifications newest first.
	ListRecent(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	ListByType(ctx context.Context, userIDs []uint, notificationType string) ([]models.Notification, error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uint) (bool, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type gormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based NotificationRepository.
func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormNotificationRepository) ListRecent(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&notifications).Error
	return notifications, err
}

func (r *gormNotificationRepository) ListByType(ctx context.Context, userIDs []uint, notificationType string) ([]models.Notification, error) {
	var notifications []models.Notification
	if len(userIDs) == 0 {
		return notifications, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ? AND type = ?", userIDs, notificationType).
		Find(&notifications).Error
	return notifications, err
}

func (r *gormNotificationRepository) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// MarkRead reports false when the notification does not belong to userID.
func (r *gormNotificationRepository) MarkRead(ctx context.Context, userID, notificationID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Count(&count).Error
	if err != nil || count == 0 {
		return false, err
	}
	err = r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update("is_read", true).Error
	return err == nil, err
}

func (r *gormNotificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
