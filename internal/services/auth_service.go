package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Register(ctx context.Context, username, nickname, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (token string, user *models.User, err error)
	Logout(ctx context.Context, claims *auth.Claims) error
}

// authService 是 AuthService 的实现。
type authService struct {
	userRepo  storage.UserRepository
	authCfg   config.AuthConfig
	blacklist auth.TokenBlacklist
}

// NewAuthService 创建一个新的 AuthService 实例。blacklist 为 nil 时登出不吊销令牌。
func NewAuthService(userRepo storage.UserRepository, authCfg config.AuthConfig, blacklist auth.TokenBlacklist) AuthService {
	return &authService{
		userRepo:  userRepo,
		authCfg:   authCfg,
		blacklist: blacklist,
	}
}

// Register 处理用户注册逻辑。
func (s *authService) Register(ctx context.Context, username, nickname, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidRegistration
	}

	// 检查用户名是否存在
	_, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("检查用户名时出错: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	if nickname == "" {
		nickname = username
	}
	newUser := &models.User{
		Username:     username,
		Nickname:     nickname,
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return newUser, nil
}

// Login 处理用户登录逻辑。
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("通过用户名查找用户失败: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.authCfg)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	return token, user, nil
}

// Logout 吊销当前令牌。
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := auth.RevokeToken(ctx, claims, s.blacklist); err != nil {
		return fmt.Errorf("吊销令牌失败: %w", err)
	}
	return nil
}
