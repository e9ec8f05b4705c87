package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/datatypes"

	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

const defaultNotificationLimit = 50

// NotificationService persists inbox notifications and pushes realtime events to
// users' presence channels.
type NotificationService interface {
	// Dispatch is fire-and-forget: failures are logged and never reach the caller.
	Dispatch(ctx context.Context, event string, payload interface{}, targetUserID uint)
	// Broadcast sends the event to every connected user.
	Broadcast(ctx context.Context, event string, payload interface{})
	CreateNotification(ctx context.Context, userID uint, notificationType, message string, data interface{}) (*models.Notification, error)
	// ListNotifications returns the newest notifications after dropping stale friend requests.
	ListNotifications(ctx context.Context, userID uint) ([]models.Notification, error)
	// CleanupStale deletes friend_request notifications whose request is no longer pending.
	CleanupStale(ctx context.Context, userID uint) (int64, error)
	RemoveFriendshipHistory(ctx context.Context, userA, userB, friendshipID uint) error
	MarkNotificationRead(ctx context.Context, userID, notificationID uint) error
	MarkAllNotificationsRead(ctx context.Context, userID uint) (int64, error)
}

type notificationService struct {
	notificationRepo storage.NotificationRepository
	friendshipRepo   storage.FriendshipRepository
	publisher        imtypes.Publisher
	listLimit        int
}

// NewNotificationService creates a new NotificationService instance.
func NewNotificationService(
	notificationRepo storage.NotificationRepository,
	friendshipRepo storage.FriendshipRepository,
	publisher imtypes.Publisher,
	listLimit int,
) NotificationService {
	if listLimit <= 0 {
		listLimit = defaultNotificationLimit
	}
	return &notificationService{
		notificationRepo: notificationRepo,
		friendshipRepo:   friendshipRepo,
		publisher:        publisher,
		listLimit:        listLimit,
	}
}

func (s *notificationService) Dispatch(ctx context.Context, event string, payload interface{}, targetUserID uint) {
	evt, err := imtypes.NewEvent(event, payload, targetUserID)
	if err != nil {
		log.Printf("序列化事件 %s 失败 (用户 %d): %v", event, targetUserID, err)
		return
	}
	s.publish(ctx, evt)
}

func (s *notificationService) Broadcast(ctx context.Context, event string, payload interface{}) {
	evt, err := imtypes.NewEvent(event, payload, 0)
	if err != nil {
		log.Printf("序列化广播事件 %s 失败: %v", event, err)
		return
	}
	evt.Broadcast = true
	s.publish(ctx, evt)
}

func (s *notificationService) publish(ctx context.Context, evt imtypes.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Printf("投递事件 %s 失败 (用户 %d): %v", evt.Name, evt.TargetUserID, err)
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, userID uint, notificationType, message string, data interface{}) (*models.Notification, error) {
	notification := &models.Notification{
		UserID:  userID,
		Type:    notificationType,
		Message: message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("序列化通知数据失败: %w", err)
		}
		notification.Data = datatypes.JSON(raw)
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("创建通知失败: %w", err)
	}

	s.Dispatch(ctx, imtypes.EventNewNotification, notification, userID)
	return notification, nil
}

func (s *notificationService) ListNotifications(ctx context.Context, userID uint) ([]models.Notification, error) {
	if _, err := s.CleanupStale(ctx, userID); err != nil {
		return nil, err
	}
	notifications, err := s.notificationRepo.ListRecent(ctx, userID, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("获取通知列表失败: %w", err)
	}
	return notifications, nil
}

func (s *notificationService) CleanupStale(ctx context.Context, userID uint) (int64, error) {
	requests, err := s.notificationRepo.ListByType(ctx, []uint{userID}, models.NotificationFriendRequest)
	if err != nil {
		return 0, fmt.Errorf("获取好友请求通知失败: %w", err)
	}

	var stale []uint
	for i := range requests {
		friendshipID, ok := requests[i].FriendshipRef()
		if !ok {
			stale = append(stale, requests[i].ID)
			continue
		}
		pending, err := s.friendshipRepo.FindPendingForRecipient(ctx, friendshipID, userID)
		if err != nil {
			return 0, fmt.Errorf("检查好友请求 %d 失败: %w", friendshipID, err)
		}
		if pending == nil {
			stale = append(stale, requests[i].ID)
		}
	}

	deleted, err := s.notificationRepo.DeleteByIDs(ctx, stale)
	if err != nil {
		return 0, fmt.Errorf("删除过期通知失败: %w", err)
	}
	if deleted > 0 {
		log.Printf("已清理用户 %d 的 %d 条过期好友请求通知", userID, deleted)
	}
	return deleted, nil
}

func (s *notificationService) RemoveFriendshipHistory(ctx context.Context, userA, userB, friendshipID uint) error {
	requests, err := s.notificationRepo.ListByType(ctx, []uint{userA, userB}, models.NotificationFriendRequest)
	if err != nil {
		return fmt.Errorf("获取好友请求通知失败: %w", err)
	}

	var ids []uint
	for i := range requests {
		if ref, ok := requests[i].FriendshipRef(); ok && ref == friendshipID {
			ids = append(ids, requests[i].ID)
		}
	}
	if _, err := s.notificationRepo.DeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("删除好友请求通知失败: %w", err)
	}
	return nil
}

func (s *notificationService) MarkNotificationRead(ctx context.Context, userID, notificationID uint) error {
	ok, err := s.notificationRepo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("标记通知已读失败: %w", err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) MarkAllNotificationsRead(ctx context.Context, userID uint) (int64, error) {
	count, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("标记全部通知已读失败: %w", err)
	}
	return count, nil
}
