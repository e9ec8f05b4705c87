package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, passwordHash string) error
	// DeleteAccount removes the user and every row hanging off the account in one
	// transaction. It returns the stored file urls (avatar, post images, sent
	// attachments) that nothing references any more.
	DeleteAccount(ctx context.Context, id uint) ([]string, error)
	SearchUsers(ctx context.Context, query string, currentUserID uint, limit int) ([]models.User, error)
	GetMultipleBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error)
	// SetOnline records a presence transition. changed is false when the stored flag
	// already had the requested value; going online still refreshes last_seen then.
	SetOnline(ctx context.Context, id uint, online bool, at time.Time) (changed bool, err error)
	// ResetPresence marks every online user offline, for a process that starts without connections.
	ResetPresence(ctx context.Context, at time.Time) (int64, error)
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	return &user, nil
}

// GetByUsername retrieves a user by their username.
func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user record in the database.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Model(user).
		Select("nickname", "avatar_url", "bio").
		Updates(user).Error
}

func (r *gormUserRepository) UpdatePassword(ctx context.Context, id uint, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormUserRepository) DeleteAccount(ctx context.Context, id uint) ([]string, error) {
	var files []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if user.AvatarURL != "" {
			files = append(files, user.AvatarURL)
		}

		var posts []models.Post
		if err := tx.Select("id", "image_url").Where("owner_id = ?", id).Find(&posts).Error; err != nil {
			return err
		}
		postIDs := make([]uint, 0, len(posts))
		for _, post := range posts {
			postIDs = append(postIDs, post.ID)
			if post.ImageURL != "" {
				files = append(files, post.ImageURL)
			}
		}

		var attachments []string
		if err := tx.Model(&models.Message{}).
			Where("sender_id = ? AND image_url <> ''", id).
			Pluck("image_url", &attachments).Error; err != nil {
			return err
		}
		files = append(files, attachments...)

		var commentIDs []uint
		if err := tx.Model(&models.PostComment{}).Where("author_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}

		// 先删回复和点赞，再删帖子本身
		deletes := []struct {
			model interface{}
			query string
			args  []interface{}
		}{
			{&models.PostComment{}, "parent_id IN ?", []interface{}{commentIDs}},
			{&models.PostComment{}, "author_id = ? OR post_id IN ?", []interface{}{id, postIDs}},
			{&models.PostLike{}, "user_id = ? OR post_id IN ?", []interface{}{id, postIDs}},
			{&models.Post{}, "owner_id = ?", []interface{}{id}},
			{&models.Message{}, "sender_id = ? OR receiver_id = ?", []interface{}{id, id}},
			{&models.Conversation{}, "user_low_id = ? OR user_high_id = ?", []interface{}{id, id}},
			{&models.Notification{}, "user_id = ?", []interface{}{id}},
			{&models.Friendship{}, "requester_id = ? OR requested_id = ?", []interface{}{id, id}},
		}
		for _, d := range deletes {
			if err := tx.Where(d.query, d.args...).Delete(d.model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// SearchUsers does a case-insensitive match on username and nickname, excluding the caller.
func (r *gormUserRepository) SearchUsers(ctx context.Context, query string, currentUserID uint, limit int) ([]models.User, error) {
	var users []models.User
	searchTerm := "%" + strings.ToLower(query) + "%"
	if limit <= 0 {
		limit = 10
	}

	err := r.db.WithContext(ctx).
		Where("(LOWER(username) LIKE ? OR LOWER(nickname) LIKE ?) AND id != ?", searchTerm, searchTerm, currentUserID).
		Select("id", "username", "nickname", "avatar_url", "is_online", "last_seen_at").
		Order("username").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return users, nil
		}
		return nil, err
	}
	return users, nil
}

// GetMultipleBasicInfoByIDs retrieves minimal public user info for a list of user IDs.
func (r *gormUserRepository) GetMultipleBasicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserBasicInfo, error) {
	var basicInfos []*models.UserBasicInfo
	if len(userIDs) == 0 {
		return basicInfos, nil
	}

	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id", "username", "nickname", "avatar_url").
		Where("id IN ?", userIDs).
		Find(&basicInfos).Error
	if err != nil {
		return nil, err
	}
	return basicInfos, nil
}

func (r *gormUserRepository) SetOnline(ctx context.Context, id uint, online bool, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_online = ?", id, !online).
		Updates(map[string]interface{}{"is_online": online, "last_seen_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Nothing flipped: either the user is unknown or already in the requested state.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, gorm.ErrRecordNotFound
	}
	if online {
		err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", at).Error
		return false, err
	}
	return false, nil
}

func (r *gormUserRepository) ResetPresence(ctx context.Context, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("is_online = ?", true).
		Updates(map[string]interface{}{"is_online": false, "last_seen_at": at})
	return res.RowsAffected, res.Error
}
