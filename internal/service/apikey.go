package service

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// APIKeyService API Key业务逻辑服务
//
// 每个用户持有一把 API Key，用于机器端接口认证。密钥在用户
// 创建后由 EnsureAPIKey 补发，调用方无需显式申请。
type APIKeyService struct {
	store  storage.Store
	logger *zap.Logger
}

// NewAPIKeyService 创建API Key服务
func NewAPIKeyService(store storage.Store, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{
		store:  store,
		logger: logger,
	}
}

// EnsureAPIKey 确保用户持有API Key，不存在时补发
//
// 幂等：已有密钥时原样返回，不会轮换。
func (s *APIKeyService) EnsureAPIKey(userID string) (*domain.APIKey, error) {
	if apiKey, err := s.store.GetAPIKeyByUserID(userID); err == nil {
		return apiKey, nil
	}

	// 验证用户存在
	if _, err := s.store.GetUserByID(userID); err != nil {
		return nil, ErrUserNotFound
	}

	key, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	apiKey := &domain.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.SaveAPIKey(apiKey); err != nil {
		// 并发补发时另一个请求可能已经写入
		if existing, gerr := s.store.GetAPIKeyByUserID(userID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.logger.Info("issued api key",
		zap.String("user_id", userID),
	)

	return apiKey, nil
}

// GetAPIKey 获取用户的API Key
func (s *APIKeyService) GetAPIKey(userID string) (*domain.APIKey, error) {
	apiKey, err := s.store.GetAPIKeyByUserID(userID)
	if err != nil {
		return nil, err
	}
	return apiKey, nil
}

// RotateAPIKey 为用户轮换API Key，旧密钥立即失效
func (s *APIKeyService) RotateAPIKey(userID string) (*domain.APIKey, error) {
	current, err := s.EnsureAPIKey(userID)
	if err != nil {
		return nil, err
	}

	key, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	rotated := &domain.APIKey{
		ID:        current.ID,
		UserID:    current.UserID,
		Key:       key,
		CreatedAt: current.CreatedAt,
	}

	if err := s.store.SaveAPIKey(rotated); err != nil {
		return nil, err
	}

	s.logger.Info("rotated api key",
		zap.String("user_id", userID),
	)

	return rotated, nil
}

// ValidateAPIKey 验证API Key并返回对应的用户
//
// 验证通过后刷新最后使用时间，刷新失败只记日志，不影响本次请求。
func (s *APIKeyService) ValidateAPIKey(key string) (*domain.User, error) {
	if key == "" {
		return nil, ErrAPIKeyInvalid
	}

	apiKey, err := s.store.GetAPIKeyByKey(key)
	if err != nil {
		return nil, ErrAPIKeyInvalid
	}

	user, err := s.store.GetUserByID(apiKey.UserID)
	if err != nil {
		return nil, ErrAPIKeyInvalid
	}
	if !user.IsActive {
		return nil, ErrAPIKeyInvalid
	}

	if err := s.store.UpdateAPIKeyLastUsed(apiKey.ID); err != nil {
		s.logger.Warn("failed to update api key last used",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	return user, nil
}

// generateAPIKey 生成一个安全的随机API Key
//
// 返回值:
//   - string: 生成的API Key（48字符）
//   - error: 错误信息
func generateAPIKey() (string, error) {
	// 生成32字节的随机数据
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	// 使用base64编码并截取前48个字符
	key := base64.URLEncoding.EncodeToString(bytes)
	if len(key) > 48 {
		key = key[:48]
	}

	return key, nil
}
