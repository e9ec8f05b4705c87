package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialnet/internal/models"
)

// PostRepository covers posts together with their likes and comments.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// Delete removes the post along with its likes and comments.
	Delete(ctx context.Context, id uint) error
	// AddLike is idempotent; added is false when the user already liked the post.
	AddLike(ctx context.Context, postID, userID uint) (added bool, err error)
	RemoveLike(ctx context.Context, postID, userID uint) (removed bool, err error)
	Counts(ctx context.Context, postID uint) (models.PostCounts, error)
	CreateComment(ctx context.Context, comment *models.PostComment) error
	GetComment(ctx context.Context, id uint) (*models.PostComment, error)
	// DeleteComment removes the comment and its direct replies.
	DeleteComment(ctx context.Context, id uint) error
}

type gormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GORM-based PostRepository.
func NewGormPostRepository(db *gorm.DB) PostRepository {
	return &gormPostRepository{db: db}
}

func (r *gormPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *gormPostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *gormPostRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.PostLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
}

func (r *gormPostRepository) AddLike(ctx context.Context, postID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&models.PostLike{PostID: postID, UserID: userID})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormPostRepository) RemoveLike(ctx context.Context, postID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.PostLike{})
	return res.RowsAffected > 0, res.Error
}

func (r *gormPostRepository) Counts(ctx context.Context, postID uint) (models.PostCounts, error) {
	var counts models.PostCounts
	if err := r.db.WithContext(ctx).Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&counts.Likes).Error; err != nil {
		return counts, err
	}
	err := r.db.WithContext(ctx).Model(&models.PostComment{}).Where("post_id = ?", postID).Count(&counts.Comments).Error
	return counts, err
}

func (r *gormPostRepository) CreateComment(ctx context.Context, comment *models.PostComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *gormPostRepository) GetComment(ctx context.Context, id uint) (*models.PostComment, error) {
	var comment models.PostComment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *gormPostRepository) DeleteComment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", id).Delete(&models.PostComment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.PostComment{}, id).Error
	})
}
