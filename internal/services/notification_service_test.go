package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"socialnet/internal/models"
)

func TestListNotificationsNewestFirstWithLimit(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	service := NewNotificationService(f.notificationRepo, f.friendshipRepo, f.pub, 2)

	for i := 1; i <= 3; i++ {
		_, err := service.CreateNotification(f.ctx, alice.ID, "system", fmt.Sprintf("note %d", i), nil)
		require.NoError(t, err)
	}

	notifications, err := service.ListNotifications(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, "note 3", notifications[0].Message)
	assert.Equal(t, "note 2", notifications[1].Message)
}

func TestStaleFriendRequestNotificationsAreCollected(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	live, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	stale := []models.Notification{
		{UserID: bob.ID, Type: models.NotificationFriendRequest, Message: "gone", Data: datatypes.JSON(`{"friendship_id": 777}`)},
		{UserID: bob.ID, Type: models.NotificationFriendRequest, Message: "garbled", Data: datatypes.JSON(`{"friendship_id": "x"}`)},
		{UserID: bob.ID, Type: models.NotificationFriendRequest, Message: "empty"},
		// Addressed to the requester, not the recipient of the pending request.
		{UserID: alice.ID, Type: models.NotificationFriendRequest, Message: "wrong side",
			Data: datatypes.JSON(fmt.Sprintf(`{"friendship_id": %d}`, live.ID))},
	}
	for i := range stale {
		require.NoError(t, f.notificationRepo.Create(f.ctx, &stale[i]))
	}

	deleted, err := f.notifications.CleanupStale(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	notifications, err := f.notifications.ListNotifications(f.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	ref, _ := notifications[0].FriendshipRef()
	assert.Equal(t, live.ID, ref)

	aliceNotes, err := f.notifications.ListNotifications(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceNotes)
}

func TestMarkNotificationsRead(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	first, err := f.notifications.CreateNotification(f.ctx, alice.ID, "system", "one", nil)
	require.NoError(t, err)
	_, err = f.notifications.CreateNotification(f.ctx, alice.ID, "system", "two", map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.notifications.MarkNotificationRead(f.ctx, bob.ID, first.ID), ErrNotificationNotFound)
	require.NoError(t, f.notifications.MarkNotificationRead(f.ctx, alice.ID, first.ID))

	count, err := f.notifications.MarkAllNotificationsRead(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	notifications, err := f.notifications.ListNotifications(f.ctx, alice.ID)
	require.NoError(t, err)
	for _, n := range notifications {
		assert.True(t, n.IsRead)
	}
}
