package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"socialnet/internal/auth"
	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

const (
	searchResultLimit = 20
	minPasswordLength = 6
)

// UserSearchResult is a search hit together with the searcher's relation to it.
type UserSearchResult struct {
	models.UserBasicInfo
	IsOnline bool                  `json:"is_online"`
	Status   models.RelationStatus `json:"friendship_status"`
}

// UserService 定义了用户相关服务的接口。
type UserService interface {
	GetUserProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID uint, nickname, avatarURL, bio string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, currentUserID uint) ([]UserSearchResult, error)
	// ChangePassword 需要验证旧密码。
	ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error
	// DeleteAccount 需要确认密码，删除账号及其好友关系、会话、通知和帖子。
	DeleteAccount(ctx context.Context, userID uint, password string) error
}

// userService 是 UserService 的实现。
type userService struct {
	userRepo    storage.UserRepository
	friendships FriendshipService
	files       imtypes.StorageService
}

// NewUserService 创建一个新的 UserService 实例。files 为 nil 时删除账号不清理文件。
func NewUserService(userRepo storage.UserRepository, friendships FriendshipService, files imtypes.StorageService) UserService {
	return &userService{userRepo: userRepo, friendships: friendships, files: files}
}

// GetUserProfile 获取用户的个人资料。
func (s *userService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户 %d 失败: %w", userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateUserProfile 更新用户的个人资料，空字段保持不变。
func (s *userService) UpdateUserProfile(ctx context.Context, userID uint, nickname, avatarURL, bio string) (*models.User, error) {
	user, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := false
	if nickname != "" && user.Nickname != nickname {
		user.Nickname = nickname
		updated = true
	}
	if avatarURL != "" && user.AvatarURL != avatarURL {
		user.AvatarURL = avatarURL
		updated = true
	}
	if bio != "" && user.Bio != bio {
		user.Bio = bio
		updated = true
	}
	if !updated {
		return user, nil
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("更新用户 %d 资料失败: %w", userID, err)
	}
	return user, nil
}

// SearchUsers matches usernames and nicknames and annotates each hit with the friendship status.
func (s *userService) SearchUsers(ctx context.Context, query string, currentUserID uint) ([]UserSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []UserSearchResult{}, nil
	}

	users, err := s.userRepo.SearchUsers(ctx, query, currentUserID, searchResultLimit)
	if err != nil {
		return nil, fmt.Errorf("搜索用户失败: %w", err)
	}

	results := make([]UserSearchResult, 0, len(users))
	for i := range users {
		status, err := s.friendships.FriendshipStatus(ctx, currentUserID, users[i].ID)
		if err != nil {
			return nil, err
		}
		results = append(results, UserSearchResult{
			UserBasicInfo: *users[i].PublicInfo(),
			IsOnline:      users[i].IsOnline,
			Status:        status,
		})
	}
	return results, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	user, err := s.verifyPassword(ctx, userID, oldPassword)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return ErrPasswordTooLong
	}
	if err != nil {
		return fmt.Errorf("密码哈希失败: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashedPassword); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("更新用户 %d 密码失败: %w", userID, err)
	}
	return nil
}

func (s *userService) DeleteAccount(ctx context.Context, userID uint, password string) error {
	if _, err := s.verifyPassword(ctx, userID, password); err != nil {
		return err
	}

	files, err := s.userRepo.DeleteAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("删除用户 %d 失败: %w", userID, err)
	}

	// 文件在提交之后删除，失败只记录日志
	if s.files != nil {
		for _, url := range files {
			if err := s.files.DeleteFile(ctx, url); err != nil {
				log.Printf("删除用户 %d 的文件 %s 失败: %v", userID, url, err)
			}
		}
	}
	return nil
}

func (s *userService) verifyPassword(ctx context.Context, userID uint, password string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户 %d 失败: %w", userID, err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}
