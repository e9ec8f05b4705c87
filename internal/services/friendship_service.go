package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// Decisions accepted by RespondToRequest.
const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

// ConversationEnsurer creates the messenger conversation of a freshly accepted friendship.
type ConversationEnsurer interface {
	ResolveOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error)
}

// FriendshipService is the friendship directory: requests, their resolution and friend lists.
type FriendshipService interface {
	// FindFriendship matches either ordering; nil, nil when the pair has no row.
	FindFriendship(ctx context.Context, userA, userB uint, status *models.FriendshipStatus) (*models.Friendship, error)
	FriendshipStatus(ctx context.Context, viewerID, otherID uint) (models.RelationStatus, error)
	ListFriends(ctx context.Context, userID uint) ([]models.FriendInfo, error)
	SendRequest(ctx context.Context, fromID, toID uint) (*models.Friendship, error)
	RespondToRequest(ctx context.Context, friendshipID, responderID uint, decision string) (*models.Friendship, error)
	CancelRequest(ctx context.Context, friendshipID, requesterID uint) error
	RemoveFriend(ctx context.Context, userID, friendID uint) error
	ListReceivedRequests(ctx context.Context, userID uint) ([]models.FriendRequestView, error)
	ListSentRequests(ctx context.Context, userID uint) ([]models.FriendRequestView, error)
}

type friendshipService struct {
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
	messageRepo    storage.MessageRepository
	conversations  ConversationEnsurer
	notifications  NotificationService
}

// NewFriendshipService creates a new FriendshipService instance.
func NewFriendshipService(
	userRepo storage.UserRepository,
	friendshipRepo storage.FriendshipRepository,
	messageRepo storage.MessageRepository,
	conversations ConversationEnsurer,
	notifications NotificationService,
) FriendshipService {
	return &friendshipService{
		userRepo:       userRepo,
		friendshipRepo: friendshipRepo,
		messageRepo:    messageRepo,
		conversations:  conversations,
		notifications:  notifications,
	}
}

func (s *friendshipService) FindFriendship(ctx context.Context, userA, userB uint, status *models.FriendshipStatus) (*models.Friendship, error) {
	friendship, err := s.friendshipRepo.Find(ctx, userA, userB, status)
	if err != nil {
		return nil, fmt.Errorf("查询好友关系失败: %w", err)
	}
	return friendship, nil
}

func (s *friendshipService) FriendshipStatus(ctx context.Context, viewerID, otherID uint) (models.RelationStatus, error) {
	if viewerID == otherID {
		return models.RelationNone, nil
	}
	friendship, err := s.FindFriendship(ctx, viewerID, otherID, nil)
	if err != nil {
		return "", err
	}
	return friendship.RelationFor(viewerID), nil
}

func (s *friendshipService) ListFriends(ctx context.Context, userID uint) ([]models.FriendInfo, error) {
	friends, err := s.friendshipRepo.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取好友列表失败: %w", err)
	}
	unread, err := s.messageRepo.UnreadCountsBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取未读消息数失败: %w", err)
	}

	infos := make([]models.FriendInfo, 0, len(friends))
	for i := range friends {
		infos = append(infos, models.FriendInfo{
			UserBasicInfo: *friends[i].PublicInfo(),
			IsOnline:      friends[i].IsOnline,
			LastSeen:      friends[i].LastSeenAt,
			UnreadCount:   unread[friends[i].ID],
		})
	}
	return infos, nil
}

func (s *friendshipService) SendRequest(ctx context.Context, fromID, toID uint) (*models.Friendship, error) {
	if fromID == toID {
		return nil, ErrSelfFriendship
	}

	requester, err := s.getUser(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getUser(ctx, toID); err != nil {
		return nil, err
	}

	existing, err := s.FindFriendship(ctx, fromID, toID, nil)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrFriendshipExists
	}

	friendship := &models.Friendship{
		RequesterID: fromID,
		RequestedID: toID,
		Status:      models.FriendshipPending,
	}
	if err := s.friendshipRepo.Create(ctx, friendship); err != nil {
		// A concurrent request for the same pair won the unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrFriendshipExists
		}
		return nil, fmt.Errorf("创建好友请求失败: %w", err)
	}

	_, err = s.notifications.CreateNotification(ctx, toID, models.NotificationFriendRequest,
		fmt.Sprintf("%s 向你发送了好友请求", requester.Username),
		map[string]interface{}{
			"friendship_id":      friendship.ID,
			"requester_id":       requester.ID,
			"requester_username": requester.Username,
		})
	if err != nil {
		log.Printf("为好友请求 %d 创建通知失败: %v", friendship.ID, err)
	}
	return friendship, nil
}

func (s *friendshipService) RespondToRequest(ctx context.Context, friendshipID, responderID uint, decision string) (*models.Friendship, error) {
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, ErrInvalidDecision
	}

	friendship, err := s.friendshipRepo.FindPendingForRecipient(ctx, friendshipID, responderID)
	if err != nil {
		return nil, fmt.Errorf("查询好友请求失败: %w", err)
	}
	if friendship == nil {
		return nil, ErrFriendRequestNotFound
	}

	// 写入以 status=pending 为条件：并发的取消或处理会让这里影响 0 行
	if decision == DecisionReject {
		deleted, err := s.friendshipRepo.Delete(ctx, friendship.ID, models.FriendshipPending)
		if err != nil {
			return nil, fmt.Errorf("拒绝好友请求失败: %w", err)
		}
		if !deleted {
			return nil, ErrFriendRequestNotFound
		}
		s.removeHistory(ctx, friendship)
		return friendship, nil
	}

	accepted, err := s.friendshipRepo.UpdateStatus(ctx, friendship.ID, models.FriendshipPending, models.FriendshipAccepted)
	if err != nil {
		return nil, fmt.Errorf("接受好友请求失败: %w", err)
	}
	if !accepted {
		return nil, ErrFriendRequestNotFound
	}
	friendship.Status = models.FriendshipAccepted

	// The conversation is also created lazily on first message, so a failure here is not fatal.
	if _, err := s.conversations.ResolveOrCreate(ctx, friendship.RequesterID, friendship.RequestedID); err != nil {
		log.Printf("为好友关系 %d 创建会话失败: %v", friendship.ID, err)
	}
	s.removeHistory(ctx, friendship)

	accepter, err := s.getUser(ctx, responderID)
	if err != nil {
		log.Printf("获取接受者 %d 信息失败: %v", responderID, err)
		return friendship, nil
	}
	_, err = s.notifications.CreateNotification(ctx, friendship.RequesterID, models.NotificationFriendRequestAccepted,
		fmt.Sprintf("%s 接受了你的好友请求", accepter.Username),
		map[string]interface{}{
			"friendship_id":     friendship.ID,
			"accepter_id":       accepter.ID,
			"accepter_username": accepter.Username,
		})
	if err != nil {
		log.Printf("为好友关系 %d 创建接受通知失败: %v", friendship.ID, err)
	}
	return friendship, nil
}

func (s *friendshipService) CancelRequest(ctx context.Context, friendshipID, requesterID uint) error {
	friendship, err := s.friendshipRepo.FindPendingForRequester(ctx, friendshipID, requesterID)
	if err != nil {
		return fmt.Errorf("查询好友请求失败: %w", err)
	}
	if friendship == nil {
		return ErrFriendRequestNotFound
	}
	deleted, err := s.friendshipRepo.Delete(ctx, friendship.ID, models.FriendshipPending)
	if err != nil {
		return fmt.Errorf("取消好友请求失败: %w", err)
	}
	if !deleted {
		return ErrFriendRequestNotFound
	}
	s.removeHistory(ctx, friendship)
	return nil
}

func (s *friendshipService) RemoveFriend(ctx context.Context, userID, friendID uint) error {
	if userID == friendID {
		return ErrSelfFriendship
	}
	accepted := models.FriendshipAccepted
	friendship, err := s.FindFriendship(ctx, userID, friendID, &accepted)
	if err != nil {
		return err
	}
	if friendship == nil {
		return ErrFriendshipNotFound
	}
	deleted, err := s.friendshipRepo.Delete(ctx, friendship.ID, models.FriendshipAccepted)
	if err != nil {
		return fmt.Errorf("删除好友关系失败: %w", err)
	}
	if !deleted {
		return ErrFriendshipNotFound
	}
	s.removeHistory(ctx, friendship)
	return nil
}

func (s *friendshipService) ListReceivedRequests(ctx context.Context, userID uint) ([]models.FriendRequestView, error) {
	requests, err := s.friendshipRepo.ListPendingReceived(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取收到的好友请求失败: %w", err)
	}
	return s.requestViews(ctx, userID, requests)
}

func (s *friendshipService) ListSentRequests(ctx context.Context, userID uint) ([]models.FriendRequestView, error) {
	requests, err := s.friendshipRepo.ListPendingSent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取发出的好友请求失败: %w", err)
	}
	return s.requestViews(ctx, userID, requests)
}

// requestViews attaches the public info of the other party to each pending request.
func (s *friendshipService) requestViews(ctx context.Context, userID uint, requests []models.Friendship) ([]models.FriendRequestView, error) {
	otherIDs := make([]uint, 0, len(requests))
	for i := range requests {
		otherIDs = append(otherIDs, requests[i].OtherUser(userID))
	}
	infos, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, otherIDs)
	if err != nil {
		return nil, fmt.Errorf("获取用户信息失败: %w", err)
	}
	byID := make(map[uint]*models.UserBasicInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}

	views := make([]models.FriendRequestView, 0, len(requests))
	for i := range requests {
		other, ok := byID[requests[i].OtherUser(userID)]
		if !ok {
			continue
		}
		views = append(views, models.FriendRequestView{
			FriendshipID: requests[i].ID,
			User:         other,
			CreatedAt:    requests[i].CreatedAt,
		})
	}
	return views, nil
}

func (s *friendshipService) removeHistory(ctx context.Context, friendship *models.Friendship) {
	err := s.notifications.RemoveFriendshipHistory(ctx, friendship.RequesterID, friendship.RequestedID, friendship.ID)
	if err != nil {
		log.Printf("清理好友关系 %d 的通知失败: %v", friendship.ID, err)
	}
}

func (s *friendshipService) getUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户 %d 失败: %w", userID, err)
	}
	return user, nil
}
