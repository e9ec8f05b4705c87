package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// FriendshipRepository defines the interface for friendship data operations.
type FriendshipRepository interface {
	// Create inserts a row; a second row for the same unordered pair fails with gorm.ErrDuplicatedKey.
	Create(ctx context.Context, friendship *models.Friendship) error
	// Find matches either ordering of the pair; status narrows the match when non-nil.
	// Returns nil, nil when no row exists.
	Find(ctx context.Context, userA, userB uint, status *models.FriendshipStatus) (*models.Friendship, error)
	FindPendingForRecipient(ctx context.Context, friendshipID, requestedID uint) (*models.Friendship, error)
	FindPendingForRequester(ctx context.Context, friendshipID, requesterID uint) (*models.Friendship, error)
	// UpdateStatus moves the row from one status to another. It reports false when the
	// row is gone or no longer has status from.
	UpdateStatus(ctx context.Context, friendshipID uint, from, to models.FriendshipStatus) (bool, error)
	// Delete removes the row only while it still has the given status.
	Delete(ctx context.Context, friendshipID uint, status models.FriendshipStatus) (bool, error)
	ListFriends(ctx context.Context, userID uint) ([]models.User, error)
	GetFriendIDs(ctx context.Context, userID uint) ([]uint, error)
	ListPendingReceived(ctx context.Context, userID uint) ([]models.Friendship, error)
	ListPendingSent(ctx context.Context, userID uint) ([]models.Friendship, error)
}

type gormFriendshipRepository struct {
	db *gorm.DB
}

// NewGormFriendshipRepository creates a new GormFriendshipRepository.
func NewGormFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &gormFriendshipRepository{db: db}
}

// Create creates a new friendship record in the database.
func (r *gormFriendshipRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	friendship.EnsureCanonicalOrder()
	return r.db.WithContext(ctx).Create(friendship).Error
}

func (r *gormFriendshipRepository) Find(ctx context.Context, userA, userB uint, status *models.FriendshipStatus) (*models.Friendship, error) {
	low, high := models.CanonicalPair(userA, userB)
	query := r.db.WithContext(ctx).Where("pair_low = ? AND pair_high = ?", low, high)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var friendship models.Friendship
	if err := query.First(&friendship).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &friendship, nil
}

func (r *gormFriendshipRepository) FindPendingForRecipient(ctx context.Context, friendshipID, requestedID uint) (*models.Friendship, error) {
	return r.findPending(ctx, "requested_id", friendshipID, requestedID)
}

func (r *gormFriendshipRepository) FindPendingForRequester(ctx context.Context, friendshipID, requesterID uint) (*models.Friendship, error) {
	return r.findPending(ctx, "requester_id", friendshipID, requesterID)
}

func (r *gormFriendshipRepository) findPending(ctx context.Context, column string, friendshipID, userID uint) (*models.Friendship, error) {
	var friendship models.Friendship
	err := r.db.WithContext(ctx).
		Where("id = ? AND "+column+" = ? AND status = ?", friendshipID, userID, models.FriendshipPending).
		First(&friendship).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &friendship, nil
}

func (r *gormFriendshipRepository) UpdateStatus(ctx context.Context, friendshipID uint, from, to models.FriendshipStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("id = ? AND status = ?", friendshipID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormFriendshipRepository) Delete(ctx context.Context, friendshipID uint, status models.FriendshipStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", friendshipID, status).
		Delete(&models.Friendship{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListFriends returns every user joined to userID through an accepted friendship.
func (r *gormFriendshipRepository) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN friendships f ON (users.id = f.requester_id OR users.id = f.requested_id)").
		Where("f.status = ? AND (f.requester_id = ? OR f.requested_id = ?) AND users.id <> ?",
			models.FriendshipAccepted, userID, userID, userID).
		Order("users.username").
		Find(&users).Error
	return users, err
}

// GetFriendIDs retrieves a list of user IDs who are friends with the given userID.
func (r *gormFriendshipRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var idsPart1 []uint
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("requester_id = ? AND status = ?", userID, models.FriendshipAccepted).
		Pluck("requested_id", &idsPart1).Error
	if err != nil {
		return nil, err
	}

	var idsPart2 []uint
	err = r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("requested_id = ? AND status = ?", userID, models.FriendshipAccepted).
		Pluck("requester_id", &idsPart2).Error
	if err != nil {
		return nil, err
	}

	return append(idsPart1, idsPart2...), nil
}

func (r *gormFriendshipRepository) ListPendingReceived(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var requests []models.Friendship
	err := r.db.WithContext(ctx).
		Where("requested_id = ? AND status = ?", userID, models.FriendshipPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

func (r *gormFriendshipRepository) ListPendingSent(ctx context.Context, userID uint) ([]models.Friendship, error) {
	var requests []models.Friendship
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", userID, models.FriendshipPending).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}
