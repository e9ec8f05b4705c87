package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"socialnet/internal/imtypes"
	"socialnet/internal/storage"
)

// StatusChangedPayload is the user_status_changed event body.
type StatusChangedPayload struct {
	UserID   uint       `json:"user_id"`
	Username string     `json:"username"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// PresenceService records online/offline transitions and tells friends about them.
// It is driven by the hub: OnConnect for a user's first live connection and
// OnDisconnect once the last one is gone.
type PresenceService interface {
	// OnConnect never fails the connection; store errors are logged and the fan-out skipped.
	OnConnect(ctx context.Context, userID uint)
	// OnDisconnect is a no-op for a user already marked offline.
	OnDisconnect(ctx context.Context, userID uint)
	OnlineFriends(ctx context.Context, userID uint) ([]uint, error)
}

type presenceService struct {
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
	notifier       NotificationService
}

// NewPresenceService creates a new PresenceService instance.
func NewPresenceService(
	userRepo storage.UserRepository,
	friendshipRepo storage.FriendshipRepository,
	notifier NotificationService,
) PresenceService {
	return &presenceService{
		userRepo:       userRepo,
		friendshipRepo: friendshipRepo,
		notifier:       notifier,
	}
}

func (s *presenceService) OnConnect(ctx context.Context, userID uint) {
	s.transition(ctx, userID, true)
}

func (s *presenceService) OnDisconnect(ctx context.Context, userID uint) {
	s.transition(ctx, userID, false)
}

func (s *presenceService) transition(ctx context.Context, userID uint, online bool) {
	now := time.Now()
	changed, err := s.userRepo.SetOnline(ctx, userID, online, now)
	if err != nil {
		log.Printf("更新用户 %d 在线状态 (%t) 失败: %v", userID, online, err)
		return
	}
	if !changed {
		return
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("获取用户 %d 信息失败，跳过状态广播: %v", userID, err)
		return
	}
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		log.Printf("获取用户 %d 的好友失败，跳过状态广播: %v", userID, err)
		return
	}

	payload := StatusChangedPayload{
		UserID:   userID,
		Username: user.Username,
		IsOnline: online,
	}
	if !online {
		payload.LastSeen = &now
	}
	for _, friendID := range friendIDs {
		s.notifier.Dispatch(ctx, imtypes.EventUserStatusChanged, payload, friendID)
	}
}

func (s *presenceService) OnlineFriends(ctx context.Context, userID uint) ([]uint, error) {
	friends, err := s.friendshipRepo.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取好友列表失败: %w", err)
	}
	var online []uint
	for i := range friends {
		if friends[i].IsOnline {
			online = append(online, friends[i].ID)
		}
	}
	return online, nil
}
