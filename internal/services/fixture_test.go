package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
	"socialnet/internal/storage/storagetest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []imtypes.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event imtypes.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// To returns the events named name addressed to userID.
func (p *recordingPublisher) To(userID uint, name string) []imtypes.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []imtypes.Event
	for _, e := range p.events {
		if e.Name == name && e.TargetUserID == userID && !e.Broadcast {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) Named(name string) []imtypes.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []imtypes.Event
	for _, e := range p.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func decode(t *testing.T, event imtypes.Event, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(event.Data, v))
}

type fixture struct {
	ctx context.Context
	db  *gorm.DB
	pub *recordingPublisher

	userRepo         storage.UserRepository
	friendshipRepo   storage.FriendshipRepository
	notificationRepo storage.NotificationRepository

	notifications NotificationService
	messenger     MessengerService
	friendships   FriendshipService
	presence      PresenceService
	users         UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storagetest.NewDB(t)
	pub := &recordingPublisher{}

	userRepo := storage.NewGormUserRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)
	conversationRepo := storage.NewGormConversationRepository(db)
	messageRepo := storage.NewGormMessageRepository(db)
	notificationRepo := storage.NewGormNotificationRepository(db)

	notifications := NewNotificationService(notificationRepo, friendshipRepo, pub, 50)
	messenger := NewMessengerService(db, userRepo, friendshipRepo, conversationRepo, messageRepo, notifications)
	friendships := NewFriendshipService(userRepo, friendshipRepo, messageRepo, messenger, notifications)

	return &fixture{
		ctx:              context.Background(),
		db:               db,
		pub:              pub,
		userRepo:         userRepo,
		friendshipRepo:   friendshipRepo,
		notificationRepo: notificationRepo,
		notifications:    notifications,
		messenger:        messenger,
		friendships:      friendships,
		presence:         NewPresenceService(userRepo, friendshipRepo, notifications),
		users:            NewUserService(userRepo, friendships, nil),
	}
}

func (f *fixture) postService(files imtypes.StorageService, scope string) PostService {
	return NewPostService(storage.NewGormPostRepository(f.db), f.friendshipRepo, files, f.notifications, scope)
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, PasswordHash: "x", Nickname: username}
	require.NoError(t, f.userRepo.Create(f.ctx, user))
	return user
}

func (f *fixture) befriend(t *testing.T, a, b *models.User) *models.Friendship {
	t.Helper()
	request, err := f.friendships.SendRequest(f.ctx, a.ID, b.ID)
	require.NoError(t, err)
	friendship, err := f.friendships.RespondToRequest(f.ctx, request.ID, b.ID, DecisionAccept)
	require.NoError(t, err)
	return friendship
}
