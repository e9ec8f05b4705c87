package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"socialnet/internal/models"
	"socialnet/internal/storage"
	"socialnet/internal/storage/storagetest"
)

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, PasswordHash: "x", Nickname: username}
	require.NoError(t, storage.NewGormUserRepository(db).Create(context.Background(), user))
	return user
}

func TestFriendshipFindIsSymmetric(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	repo := storage.NewGormFriendshipRepository(db)

	require.NoError(t, repo.Create(ctx, &models.Friendship{RequesterID: bob.ID, RequestedID: alice.ID, Status: models.FriendshipPending}))

	ab, err := repo.Find(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	ba, err := repo.Find(ctx, bob.ID, alice.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, ab)
	assert.Equal(t, ab.ID, ba.ID)

	accepted := models.FriendshipAccepted
	none, err := repo.Find(ctx, alice.ID, bob.ID, &accepted)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestFriendshipPairIsUnique(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	repo := storage.NewGormFriendshipRepository(db)

	require.NoError(t, repo.Create(ctx, &models.Friendship{RequesterID: alice.ID, RequestedID: bob.ID, Status: models.FriendshipPending}))
	err := repo.Create(ctx, &models.Friendship{RequesterID: bob.ID, RequestedID: alice.ID, Status: models.FriendshipPending})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestFriendListExcludesPendingAndSelf(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	repo := storage.NewGormFriendshipRepository(db)

	require.NoError(t, repo.Create(ctx, &models.Friendship{RequesterID: alice.ID, RequestedID: bob.ID, Status: models.FriendshipAccepted}))
	require.NoError(t, repo.Create(ctx, &models.Friendship{RequesterID: carol.ID, RequestedID: alice.ID, Status: models.FriendshipPending}))

	friends, err := repo.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	ids, err := repo.GetFriendIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, ids)
}

func TestConversationFindOrCreateConcurrent(t *testing.T) {
	db := storagetest.NewDB(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	repo := storage.NewGormConversationRepository(db)

	const workers = 8
	ids := make([]uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := repo.FindOrCreate(context.Background(), a, b)
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConversationFindOrCreateReadsRivalAfterLostInsert(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	repo := storage.NewGormConversationRepository(db)
	preempted := storagetest.PreemptConversationInsert(t, db)

	conv, err := repo.FindOrCreate(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.True(t, preempted())
	assert.NotZero(t, conv.ID)
	assert.Equal(t, alice.ID, conv.UserLowID)
	assert.Equal(t, bob.ID, conv.UserHighID)

	var count int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFriendshipWritesRequireExpectedStatus(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	repo := storage.NewGormFriendshipRepository(db)

	friendship := &models.Friendship{RequesterID: alice.ID, RequestedID: bob.ID, Status: models.FriendshipPending}
	require.NoError(t, repo.Create(ctx, friendship))

	deleted, err := repo.Delete(ctx, friendship.ID, models.FriendshipAccepted)
	require.NoError(t, err)
	assert.False(t, deleted)

	updated, err := repo.UpdateStatus(ctx, friendship.ID, models.FriendshipPending, models.FriendshipAccepted)
	require.NoError(t, err)
	assert.True(t, updated)
	updated, err = repo.UpdateStatus(ctx, friendship.ID, models.FriendshipPending, models.FriendshipAccepted)
	require.NoError(t, err)
	assert.False(t, updated)

	deleted, err = repo.Delete(ctx, friendship.ID, models.FriendshipPending)
	require.NoError(t, err)
	assert.False(t, deleted)
	deleted, err = repo.Delete(ctx, friendship.ID, models.FriendshipAccepted)
	require.NoError(t, err)
	assert.True(t, deleted)

	gone, err := repo.Find(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSetOnlineReportsTransitions(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	repo := storage.NewGormUserRepository(db)
	now := time.Now()

	changed, err := repo.SetOnline(ctx, alice.ID, true, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetOnline(ctx, alice.ID, true, now)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.SetOnline(ctx, alice.ID, false, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetOnline(ctx, alice.ID, false, now)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.SetOnline(ctx, 9999, true, now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestResetPresenceMarksEveryoneOffline(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	createUser(t, db, "carol")
	repo := storage.NewGormUserRepository(db)
	now := time.Now()

	_, err := repo.SetOnline(ctx, alice.ID, true, now)
	require.NoError(t, err)
	_, err = repo.SetOnline(ctx, bob.ID, true, now)
	require.NoError(t, err)

	reset, err := repo.ResetPresence(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reset)

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOnline)
	require.NotNil(t, got.LastSeenAt)
}

func TestMessagesOrderAndMarkRead(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	conv, err := storage.NewGormConversationRepository(db).FindOrCreate(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	repo := storage.NewGormMessageRepository(db)
	sentAt := time.Now().Truncate(time.Second)
	for i, content := range []string{"one", "two", "three"} {
		msg := &models.Message{ConversationID: conv.ID, SenderID: alice.ID, ReceiverID: bob.ID, Content: content}
		msg.CreatedAt = sentAt // identical timestamps, id decides
		if i == 2 {
			msg.SenderID, msg.ReceiverID = bob.ID, alice.ID
		}
		require.NoError(t, repo.Create(ctx, msg))
	}

	messages, err := repo.ListByConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "one", messages[0].Content)
	assert.Equal(t, "three", messages[2].Content)

	counts, err := repo.UnreadCountsBySender(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[alice.ID])

	flipped, err := repo.MarkReadFrom(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{messages[0].ID, messages[1].ID}, flipped)

	flipped, err = repo.MarkReadFrom(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, flipped)

	flipped, err = repo.MarkConversationRead(ctx, conv.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{messages[2].ID}, flipped)
}

func TestPostLikeIsIdempotent(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	repo := storage.NewGormPostRepository(db)

	post := &models.Post{OwnerID: alice.ID, Description: "hello"}
	require.NoError(t, repo.Create(ctx, post))

	added, err := repo.AddLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, added)

	counts, err := repo.Counts(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Likes)

	removed, err := repo.RemoveLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.RemoveLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}
