package service

import (
	"errors"

	"go.uber.org/zap"

	"licensehub/backend/internal/auth"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// AdminService 用户管理服务（仅超级管理员可用）
type AdminService struct {
	store     storage.Store
	authSvc   *auth.Service
	apiKeySvc *APIKeyService
	logger    *zap.Logger
}

// NewAdminService 创建管理服务
func NewAdminService(store storage.Store, authSvc *auth.Service, apiKeySvc *APIKeyService, logger *zap.Logger) *AdminService {
	return &AdminService{
		store:     store,
		authSvc:   authSvc,
		apiKeySvc: apiKeySvc,
		logger:    logger,
	}
}

// UserWithKey 用户及其API Key
type UserWithKey struct {
	User         domain.User    `json:"user"`
	APIKey       *domain.APIKey `json:"apiKey,omitempty"`
	LicenseCount int            `json:"licenseCount"`
}

// ListUsers 分页列出用户
func (s *AdminService) ListUsers(page, pageSize int, search string, role *domain.UserRole, isActive *bool) ([]domain.User, int, error) {
	return s.store.ListUsers(page, pageSize, search, role, isActive)
}

// CreateUser 创建用户并补发API Key
func (s *AdminService) CreateUser(username, password string, role domain.UserRole) (*UserWithKey, error) {
	user, err := s.authSvc.Register(auth.RegisterInput{
		Username: username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		return nil, err
	}

	apiKey, err := s.apiKeySvc.EnsureAPIKey(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin created user",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", string(user.Role)),
	)

	return &UserWithKey{User: *user, APIKey: apiKey}, nil
}

// GetUser 获取用户详情及其API Key
func (s *AdminService) GetUser(userID string) (*UserWithKey, error) {
	user, err := s.store.GetUserByID(userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	result := &UserWithKey{User: *user}
	if apiKey, err := s.store.GetAPIKeyByUserID(userID); err == nil {
		result.APIKey = apiKey
	}
	if count, err := s.store.CountLicensesByOwner(userID); err == nil {
		result.LicenseCount = count
	}
	return result, nil
}

// SetUserActive 启用或禁用用户
//
// 禁用后该用户的控制台登录和 API Key 认证都会被拒绝。
func (s *AdminService) SetUserActive(userID string, active bool) (*domain.User, error) {
	user, err := s.store.GetUserByID(userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	updated := *user
	updated.IsActive = active
	if err := s.store.UpdateUser(&updated); err != nil {
		return nil, err
	}

	s.logger.Info("admin set user active",
		zap.String("user_id", userID),
		zap.Bool("active", active),
	)

	return &updated, nil
}

// DeleteUser 删除用户，级联删除其授权与API Key
func (s *AdminService) DeleteUser(userID string) error {
	err := s.store.DeleteUser(userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	s.logger.Info("admin deleted user",
		zap.String("user_id", userID),
	)

	return nil
}
