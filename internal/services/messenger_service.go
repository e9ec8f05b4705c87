package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// SendMessageInput is what a sender supplies for a direct message.
type SendMessageInput struct {
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
	ImageURL   string `json:"image_url,omitempty"`
}

// MessagePayload is a message as delivered to clients, both over HTTP and in new_message events.
type MessagePayload struct {
	ID         uint      `json:"id"`
	Content    string    `json:"content"`
	ImageURL   string    `json:"image_url,omitempty"`
	Sender     string    `json:"sender"`
	SenderID   uint      `json:"sender_id"`
	ReceiverID uint      `json:"receiver_id"`
	ChatID     uint      `json:"chat_id"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessagesReadPayload tells a sender which of its messages friendID has read.
type MessagesReadPayload struct {
	MessageIDs []uint `json:"message_ids"`
	FriendID   uint   `json:"friend_id"`
}

func newMessagePayload(msg *models.Message, senderName string) *MessagePayload {
	return &MessagePayload{
		ID:         msg.ID,
		Content:    msg.Content,
		ImageURL:   msg.ImageURL,
		Sender:     senderName,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		ChatID:     msg.ConversationID,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
	}
}

// MessengerService resolves the one conversation per pair of users and carries direct messages.
type MessengerService interface {
	// ResolveOrCreate returns the conversation of the unordered pair, creating it on first contact.
	ResolveOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	SendMessage(ctx context.Context, senderID uint, input SendMessageInput) (*MessagePayload, error)
	// ListMessages returns the conversation oldest first and marks everything addressed to
	// the viewer as read in the same transaction.
	ListMessages(ctx context.Context, viewerID, conversationID uint) ([]*MessagePayload, error)
	ConversationWith(ctx context.Context, viewerID, friendID uint) (*models.Conversation, error)
	MarkRead(ctx context.Context, currentUserID, friendID uint) ([]uint, error)
	UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error)
}

type messengerService struct {
	db               *gorm.DB
	userRepo         storage.UserRepository
	friendshipRepo   storage.FriendshipRepository
	conversationRepo storage.ConversationRepository
	messageRepo      storage.MessageRepository
	notifier         NotificationService
}

// NewMessengerService creates a new MessengerService instance.
func NewMessengerService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	friendshipRepo storage.FriendshipRepository,
	conversationRepo storage.ConversationRepository,
	messageRepo storage.MessageRepository,
	notifier NotificationService,
) MessengerService {
	return &messengerService{
		db:               db,
		userRepo:         userRepo,
		friendshipRepo:   friendshipRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		notifier:         notifier,
	}
}

func (s *messengerService) ResolveOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfConversation
	}
	conversation, err := s.conversationRepo.FindOrCreate(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("获取或创建会话失败: %w", err)
	}
	return conversation, nil
}

func (s *messengerService) SendMessage(ctx context.Context, senderID uint, input SendMessageInput) (*MessagePayload, error) {
	content := strings.TrimSpace(input.Content)
	imageURL := strings.TrimSpace(input.ImageURL)
	if content == "" && imageURL == "" {
		return nil, ErrEmptyMessage
	}
	if senderID == input.ReceiverID {
		return nil, ErrSelfConversation
	}

	sender, err := s.getUser(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getUser(ctx, input.ReceiverID); err != nil {
		return nil, err
	}
	if err := s.requireFriends(ctx, senderID, input.ReceiverID); err != nil {
		return nil, err
	}

	// 会话在事务外解析：REPEATABLE READ 事务内的普通 SELECT 看不到并发提交的会话行
	conversation, err := s.conversationRepo.FindOrCreate(ctx, senderID, input.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("获取或创建会话失败: %w", err)
	}

	message := &models.Message{
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     input.ReceiverID,
		Content:        content,
		ImageURL:       imageURL,
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txConversationRepo := storage.NewGormConversationRepository(tx)
		if err := storage.NewGormMessageRepository(tx).Create(ctx, message); err != nil {
			return fmt.Errorf("保存消息失败: %w", err)
		}
		if err := txConversationRepo.SetLastMessage(ctx, conversation.ID, message.ID); err != nil {
			return fmt.Errorf("更新会话最后消息失败: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	payload := newMessagePayload(message, sender.Username)
	s.notifier.Dispatch(ctx, imtypes.EventNewMessage, payload, input.ReceiverID)
	s.notifier.Dispatch(ctx, imtypes.EventNewMessage, payload, senderID)
	return payload, nil
}

func (s *messengerService) ListMessages(ctx context.Context, viewerID, conversationID uint) ([]*MessagePayload, error) {
	var (
		conversation *models.Conversation
		messages     []*models.Message
		readIDs      []uint
	)
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		conversation, err = storage.NewGormConversationRepository(tx).GetConversationByID(ctx, conversationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return fmt.Errorf("获取会话失败: %w", err)
		}
		if !conversation.HasParticipant(viewerID) {
			return ErrConversationNotFound
		}

		txMessageRepo := storage.NewGormMessageRepository(tx)
		if messages, err = txMessageRepo.ListByConversation(ctx, conversationID); err != nil {
			return fmt.Errorf("获取消息列表失败: %w", err)
		}
		if readIDs, err = txMessageRepo.MarkConversationRead(ctx, conversationID, viewerID); err != nil {
			return fmt.Errorf("标记消息已读失败: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	flipped := make(map[uint]struct{}, len(readIDs))
	for _, id := range readIDs {
		flipped[id] = struct{}{}
	}
	payloads := make([]*MessagePayload, 0, len(messages))
	for _, msg := range messages {
		if _, ok := flipped[msg.ID]; ok {
			msg.IsRead = true
		}
		payloads = append(payloads, newMessagePayload(msg, msg.Sender.Username))
	}

	if len(readIDs) > 0 {
		s.notifier.Dispatch(ctx, imtypes.EventMessagesRead,
			MessagesReadPayload{MessageIDs: readIDs, FriendID: viewerID},
			conversation.OtherParticipant(viewerID))
	}
	return payloads, nil
}

func (s *messengerService) ConversationWith(ctx context.Context, viewerID, friendID uint) (*models.Conversation, error) {
	if viewerID == friendID {
		return nil, ErrSelfConversation
	}
	if _, err := s.getUser(ctx, friendID); err != nil {
		return nil, err
	}

	conversation, err := s.conversationRepo.FindByUsers(ctx, viewerID, friendID)
	if err != nil {
		return nil, fmt.Errorf("获取会话失败: %w", err)
	}
	if conversation != nil {
		return conversation, nil
	}
	if err := s.requireFriends(ctx, viewerID, friendID); err != nil {
		return nil, err
	}
	return s.ResolveOrCreate(ctx, viewerID, friendID)
}

func (s *messengerService) MarkRead(ctx context.Context, currentUserID, friendID uint) ([]uint, error) {
	ids, err := s.messageRepo.MarkReadFrom(ctx, friendID, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("标记消息已读失败: %w", err)
	}
	if len(ids) > 0 {
		s.notifier.Dispatch(ctx, imtypes.EventMessagesRead,
			MessagesReadPayload{MessageIDs: ids, FriendID: currentUserID}, friendID)
	}
	return ids, nil
}

func (s *messengerService) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	counts, err := s.messageRepo.UnreadCountsBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("获取未读消息数失败: %w", err)
	}
	return counts, nil
}

func (s *messengerService) getUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户 %d 失败: %w", userID, err)
	}
	return user, nil
}

func (s *messengerService) requireFriends(ctx context.Context, userA, userB uint) error {
	accepted := models.FriendshipAccepted
	friendship, err := s.friendshipRepo.Find(ctx, userA, userB, &accepted)
	if err != nil {
		return fmt.Errorf("检查好友关系失败: %w", err)
	}
	if friendship == nil {
		return ErrNotFriends
	}
	return nil
}
