package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"gorm.io/gorm"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// CreatePostInput carries the description and the optional uploaded image of a new post.
type CreatePostInput struct {
	Description string
	Image       io.Reader
	ImageSize   int64
	ImageName   string
	ImageMime   string
}

// PostEventPayload is the body of every post_* event.
type PostEventPayload struct {
	PostID    uint                `json:"post_id"`
	OwnerID   uint                `json:"owner_id"`
	ActorID   uint                `json:"actor_id"`
	Counts    models.PostCounts   `json:"counts"`
	Post      *models.Post        `json:"post,omitempty"`
	Comment   *models.PostComment `json:"comment,omitempty"`
	CommentID uint                `json:"comment_id,omitempty"`
}

// PostService manages image posts, likes and comments and announces the activity live.
type PostService interface {
	CreatePost(ctx context.Context, ownerID uint, input CreatePostInput) (*models.Post, error)
	DeletePost(ctx context.Context, userID, postID uint) error
	LikePost(ctx context.Context, userID, postID uint) (models.PostCounts, error)
	UnlikePost(ctx context.Context, userID, postID uint) (models.PostCounts, error)
	// AddComment attaches a reply to a reply to the top-level comment instead.
	AddComment(ctx context.Context, userID, postID uint, content string, parentID *uint) (*models.PostComment, error)
	// DeleteComment is allowed for the comment author and the post owner.
	DeleteComment(ctx context.Context, userID, commentID uint) error
}

type postService struct {
	postRepo       storage.PostRepository
	friendshipRepo storage.FriendshipRepository
	files          imtypes.StorageService
	notifier       NotificationService
	scope          string
}

// NewPostService creates a new PostService. scope is config.PostScopeFriends or config.PostScopeBroadcast.
func NewPostService(
	postRepo storage.PostRepository,
	friendshipRepo storage.FriendshipRepository,
	files imtypes.StorageService,
	notifier NotificationService,
	scope string,
) PostService {
	return &postService{
		postRepo:       postRepo,
		friendshipRepo: friendshipRepo,
		files:          files,
		notifier:       notifier,
		scope:          scope,
	}
}

func (s *postService) CreatePost(ctx context.Context, ownerID uint, input CreatePostInput) (*models.Post, error) {
	post := &models.Post{
		OwnerID:     ownerID,
		Description: strings.TrimSpace(input.Description),
	}

	if input.Image != nil {
		if !strings.HasPrefix(input.ImageMime, "image/") {
			return nil, ErrInvalidImage
		}
		fileInfo, err := s.files.UploadFile(ctx, input.Image, input.ImageSize, input.ImageName, input.ImageMime)
		if err != nil {
			return nil, fmt.Errorf("上传图片失败: %w", err)
		}
		post.ImageURL = fileInfo.URL
	}
	if post.ImageURL == "" && post.Description == "" {
		return nil, ErrEmptyPost
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.deleteFile(ctx, post.ImageURL)
		return nil, fmt.Errorf("创建帖子失败: %w", err)
	}

	s.emit(ctx, imtypes.EventPostCreated, PostEventPayload{
		PostID:  post.ID,
		OwnerID: ownerID,
		ActorID: ownerID,
		Post:    post,
	})
	return post, nil
}

func (s *postService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.OwnerID != userID {
		return ErrNotPostOwner
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("删除帖子失败: %w", err)
	}
	s.deleteFile(ctx, post.ImageURL)

	s.emit(ctx, imtypes.EventPostDeleted, PostEventPayload{
		PostID:  postID,
		OwnerID: post.OwnerID,
		ActorID: userID,
	})
	return nil
}

func (s *postService) LikePost(ctx context.Context, userID, postID uint) (models.PostCounts, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return models.PostCounts{}, err
	}
	added, err := s.postRepo.AddLike(ctx, postID, userID)
	if err != nil {
		return models.PostCounts{}, fmt.Errorf("点赞失败: %w", err)
	}
	counts, err := s.counts(ctx, postID)
	if err != nil {
		return counts, err
	}
	if added {
		s.emit(ctx, imtypes.EventPostLiked, PostEventPayload{
			PostID:  postID,
			OwnerID: post.OwnerID,
			ActorID: userID,
			Counts:  counts,
		})
	}
	return counts, nil
}

func (s *postService) UnlikePost(ctx context.Context, userID, postID uint) (models.PostCounts, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return models.PostCounts{}, err
	}
	removed, err := s.postRepo.RemoveLike(ctx, postID, userID)
	if err != nil {
		return models.PostCounts{}, fmt.Errorf("取消点赞失败: %w", err)
	}
	counts, err := s.counts(ctx, postID)
	if err != nil {
		return counts, err
	}
	if removed {
		s.emit(ctx, imtypes.EventPostUnliked, PostEventPayload{
			PostID:  postID,
			OwnerID: post.OwnerID,
			ActorID: userID,
			Counts:  counts,
		})
	}
	return counts, nil
}

func (s *postService) AddComment(ctx context.Context, userID, postID uint, content string, parentID *uint) (*models.PostComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.PostComment{PostID: postID, AuthorID: userID, Content: content}
	if parentID != nil {
		parent, err := s.getComment(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, ErrCommentNotFound
		}
		topLevel := parent.ID
		if parent.ParentID != nil {
			topLevel = *parent.ParentID
		}
		comment.ParentID = &topLevel
	}

	if err := s.postRepo.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("创建评论失败: %w", err)
	}
	counts, err := s.counts(ctx, postID)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, imtypes.EventPostCommented, PostEventPayload{
		PostID:    postID,
		OwnerID:   post.OwnerID,
		ActorID:   userID,
		Counts:    counts,
		Comment:   comment,
		CommentID: comment.ID,
	})
	return comment, nil
}

func (s *postService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.getComment(ctx, commentID)
	if err != nil {
		return err
	}
	post, err := s.getPost(ctx, comment.PostID)
	if err != nil {
		return err
	}
	if comment.AuthorID != userID && post.OwnerID != userID {
		return ErrCommentDeleteForbidden
	}

	if err := s.postRepo.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("删除评论失败: %w", err)
	}
	counts, err := s.counts(ctx, post.ID)
	if err != nil {
		return err
	}

	s.emit(ctx, imtypes.EventPostCommentDeleted, PostEventPayload{
		PostID:    post.ID,
		OwnerID:   post.OwnerID,
		ActorID:   userID,
		Counts:    counts,
		CommentID: commentID,
	})
	return nil
}

// emit sends a post event to the owner, the owner's friends and the actor, or to
// everybody when post events are configured as broadcast.
func (s *postService) emit(ctx context.Context, event string, payload PostEventPayload) {
	if s.scope == config.PostScopeBroadcast {
		s.notifier.Broadcast(ctx, event, payload)
		return
	}

	audience := map[uint]struct{}{payload.OwnerID: {}, payload.ActorID: {}}
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, payload.OwnerID)
	if err != nil {
		log.Printf("获取用户 %d 的好友失败，%s 仅发送给作者: %v", payload.OwnerID, event, err)
	}
	for _, id := range friendIDs {
		audience[id] = struct{}{}
	}
	for userID := range audience {
		s.notifier.Dispatch(ctx, event, payload, userID)
	}
}

func (s *postService) counts(ctx context.Context, postID uint) (models.PostCounts, error) {
	counts, err := s.postRepo.Counts(ctx, postID)
	if err != nil {
		return counts, fmt.Errorf("统计帖子 %d 失败: %w", postID, err)
	}
	return counts, nil
}

func (s *postService) getPost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("获取帖子 %d 失败: %w", postID, err)
	}
	return post, nil
}

func (s *postService) getComment(ctx context.Context, commentID uint) (*models.PostComment, error) {
	comment, err := s.postRepo.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("获取评论 %d 失败: %w", commentID, err)
	}
	return comment, nil
}

func (s *postService) deleteFile(ctx context.Context, url string) {
	if url == "" || s.files == nil {
		return
	}
	if err := s.files.DeleteFile(ctx, url); err != nil {
		log.Printf("删除文件 %s 失败: %v", url, err)
	}
}
