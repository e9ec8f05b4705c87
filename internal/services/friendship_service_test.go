package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

func TestSendRequestCreatesPendingFriendshipAndNotification(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	request, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipPending, request.Status)

	status, err := f.friendships.FriendshipStatus(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationRequestSent, status)
	status, err = f.friendships.FriendshipStatus(f.ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationRequestReceived, status)

	notifications, err := f.notifications.ListNotifications(f.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationFriendRequest, notifications[0].Type)
	ref, ok := notifications[0].FriendshipRef()
	require.True(t, ok)
	assert.Equal(t, request.ID, ref)

	events := f.pub.To(bob.ID, imtypes.EventNewNotification)
	require.Len(t, events, 1)
	var pushed models.Notification
	decode(t, events[0], &pushed)
	assert.Equal(t, notifications[0].ID, pushed.ID)
}

func TestSendRequestRejectsInvalidPairs(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	_, err := f.friendships.SendRequest(f.ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrSelfFriendship)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.friendships.SendRequest(f.ctx, alice.ID, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrFriendshipExists)
	_, err = f.friendships.SendRequest(f.ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrFriendshipExists)
}

func TestAcceptRequest(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	request, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.friendships.RespondToRequest(f.ctx, request.ID, alice.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrFriendRequestNotFound, "only the recipient may respond")
	_, err = f.friendships.RespondToRequest(f.ctx, request.ID, bob.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	accepted, err := f.friendships.RespondToRequest(f.ctx, request.ID, bob.ID, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipAccepted, accepted.Status)

	for _, pair := range [][2]uint{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		status, err := f.friendships.FriendshipStatus(f.ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, models.RelationFriends, status)
	}

	var conversations int64
	require.NoError(t, f.db.Model(&models.Conversation{}).Count(&conversations).Error)
	assert.Equal(t, int64(1), conversations)

	bobInbox, err := f.notifications.ListNotifications(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobInbox, "the answered request is removed from the inbox")

	aliceInbox, err := f.notifications.ListNotifications(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, models.NotificationFriendRequestAccepted, aliceInbox[0].Type)

	_, err = f.friendships.RespondToRequest(f.ctx, request.ID, bob.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrFriendRequestNotFound, "an accepted request is no longer pending")
}

func TestRejectRequestDeletesFriendship(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	request, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.friendships.RespondToRequest(f.ctx, request.ID, bob.ID, DecisionReject)
	require.NoError(t, err)

	friendship, err := f.friendships.FindFriendship(f.ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, friendship)

	var left int64
	require.NoError(t, f.db.Model(&models.Notification{}).Where("user_id = ?", bob.ID).Count(&left).Error)
	assert.Zero(t, left)

	// The pair is free again.
	_, err = f.friendships.SendRequest(f.ctx, bob.ID, alice.ID)
	assert.NoError(t, err)
}

func TestCancelRequest(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	request, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.friendships.CancelRequest(f.ctx, request.ID, bob.ID), ErrFriendRequestNotFound)
	require.NoError(t, f.friendships.CancelRequest(f.ctx, request.ID, alice.ID))

	status, err := f.friendships.FriendshipStatus(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationNone, status)

	notifications, err := f.notifications.ListNotifications(f.ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, notifications)
}

func TestRemoveFriend(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	f.befriend(t, alice, bob)

	assert.ErrorIs(t, f.friendships.RemoveFriend(f.ctx, alice.ID, alice.ID), ErrSelfFriendship)
	assert.ErrorIs(t, f.friendships.RemoveFriend(f.ctx, alice.ID, carol.ID), ErrFriendshipNotFound)

	require.NoError(t, f.friendships.RemoveFriend(f.ctx, bob.ID, alice.ID))
	friends, err := f.friendships.ListFriends(f.ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, friends)

	assert.ErrorIs(t, f.friendships.RemoveFriend(f.ctx, alice.ID, bob.ID), ErrFriendshipNotFound)
}

func TestListFriendsCarriesPresenceAndUnread(t *testing.T) {
	f := newFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	f.befriend(t, alice, bob)
	_, err := f.friendships.SendRequest(f.ctx, carol.ID, alice.ID)
	require.NoError(t, err)

	f.presence.OnConnect(f.ctx, bob.ID)
	for _, content := range []string{"hi", "there"} {
		_, err := f.messenger.SendMessage(f.ctx, bob.ID, SendMessageInput{ReceiverID: alice.ID, Content: content})
		require.NoError(t, err)
	}

	friends, err := f.friendships.ListFriends(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)
	assert.True(t, friends[0].IsOnline)
	assert.Equal(t, int64(2), friends[0].UnreadCount)

	received, err := f.friendships.ListReceivedRequests(f.ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, carol.ID, received[0].User.ID)

	sent, err := f.friendships.ListSentRequests(f.ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, alice.ID, sent[0].User.ID)
}

// racingFriendships runs interleave right after a pending request has been looked up,
// standing in for a concurrent caller that changes the row in between.
type racingFriendships struct {
	storage.FriendshipRepository
	interleave func(friendship *models.Friendship)
}

func (r *racingFriendships) FindPendingForRecipient(ctx context.Context, friendshipID, requestedID uint) (*models.Friendship, error) {
	friendship, err := r.FriendshipRepository.FindPendingForRecipient(ctx, friendshipID, requestedID)
	if err == nil && friendship != nil {
		r.interleave(friendship)
	}
	return friendship, err
}

func (r *racingFriendships) FindPendingForRequester(ctx context.Context, friendshipID, requesterID uint) (*models.Friendship, error) {
	friendship, err := r.FriendshipRepository.FindPendingForRequester(ctx, friendshipID, requesterID)
	if err == nil && friendship != nil {
		r.interleave(friendship)
	}
	return friendship, err
}

func (f *fixture) racingFriendshipService(interleave func(friendship *models.Friendship)) FriendshipService {
	repo := &racingFriendships{FriendshipRepository: f.friendshipRepo, interleave: interleave}
	return NewFriendshipService(f.userRepo, repo, storage.NewGormMessageRepository(f.db), f.messenger, f.notifications)
}

func TestAcceptLosesToConcurrentCancel(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	request, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	f.pub.Reset()

	racing := f.racingFriendshipService(func(friendship *models.Friendship) {
		require.NoError(t, f.friendships.CancelRequest(f.ctx, friendship.ID, alice.ID))
	})
	_, err = racing.RespondToRequest(f.ctx, request.ID, bob.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrFriendRequestNotFound)

	friendship, err := f.friendships.FindFriendship(f.ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, friendship)

	var conversations int64
	require.NoError(t, f.db.Model(&models.Conversation{}).Count(&conversations).Error)
	assert.Zero(t, conversations)
	assert.Empty(t, f.pub.To(alice.ID, imtypes.EventNewNotification))
}

func TestRejectLosesToConcurrentCancel(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	request, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	racing := f.racingFriendshipService(func(friendship *models.Friendship) {
		require.NoError(t, f.friendships.CancelRequest(f.ctx, friendship.ID, alice.ID))
	})
	_, err = racing.RespondToRequest(f.ctx, request.ID, bob.ID, DecisionReject)
	assert.ErrorIs(t, err, ErrFriendRequestNotFound)
}

func TestCancelLosesToConcurrentAccept(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	request, err := f.friendships.SendRequest(f.ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	racing := f.racingFriendshipService(func(friendship *models.Friendship) {
		_, err := f.friendships.RespondToRequest(f.ctx, friendship.ID, bob.ID, DecisionAccept)
		require.NoError(t, err)
	})
	assert.ErrorIs(t, racing.CancelRequest(f.ctx, request.ID, alice.ID), ErrFriendRequestNotFound)

	accepted := models.FriendshipAccepted
	friendship, err := f.friendships.FindFriendship(f.ctx, alice.ID, bob.ID, &accepted)
	require.NoError(t, err)
	require.NotNil(t, friendship)
	assert.Equal(t, request.ID, friendship.ID)
}
