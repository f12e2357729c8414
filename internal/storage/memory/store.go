package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// Store 使用内存保存用户与授权数据，主要用于开发验证和测试。
//
// 唯一性约束通过二级索引在持锁状态下强制执行，行为与数据库
// 唯一索引一致：冲突的插入返回对应的 Exists 错误。
type Store struct {
	mu           sync.RWMutex
	users        map[string]*domain.User // userID -> user
	byUsername   map[string]string       // lower(username) -> userID
	apiKeys      map[string]*domain.APIKey
	byAPIKey     map[string]string // key -> apiKeyID
	byAPIKeyUser map[string]string // userID -> apiKeyID

	licenses map[string]*domain.License
	byPhone  map[string]string // phone -> licenseID（全局唯一）
	byCode   map[string]string // code -> licenseID

	shopLicenses map[string]*domain.ShopLicense
	byShopCode   map[string]string // code -> shopLicenseID
	byOwnerShop  map[string]string // ownerID + "\x00" + shopID -> shopLicenseID

	packages     map[string]*domain.ExtensionPackage
	paymentInfos map[string]*domain.PaymentInfo

	blacklist         map[string]time.Time // jti -> 过期时间
	rateLimits        map[string]*rateLimitEntry
	rateLimitsCleanup time.Time
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:             make(map[string]*domain.User),
		byUsername:        make(map[string]string),
		apiKeys:           make(map[string]*domain.APIKey),
		byAPIKey:          make(map[string]string),
		byAPIKeyUser:      make(map[string]string),
		licenses:          make(map[string]*domain.License),
		byPhone:           make(map[string]string),
		byCode:            make(map[string]string),
		shopLicenses:      make(map[string]*domain.ShopLicense),
		byShopCode:        make(map[string]string),
		byOwnerShop:       make(map[string]string),
		packages:          make(map[string]*domain.ExtensionPackage),
		paymentInfos:      make(map[string]*domain.PaymentInfo),
		blacklist:         make(map[string]time.Time),
		rateLimits:        make(map[string]*rateLimitEntry),
		rateLimitsCleanup: time.Now().Add(5 * time.Minute),
	}
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		return storage.ErrUserNotFound
	}
	if _, exists := s.byUsername[strings.ToLower(user.Username)]; exists {
		return storage.ErrUsernameExists
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	stored := *user
	s.users[user.ID] = &stored
	s.byUsername[strings.ToLower(user.Username)] = user.ID
	return nil
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// GetUserByUsername 根据用户名获取用户（不区分大小写）
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return cloneUser(s.users[userID]), nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}

	newUsername := strings.ToLower(user.Username)
	oldUsername := strings.ToLower(old.Username)
	if oldUsername != newUsername {
		if _, exists := s.byUsername[newUsername]; exists {
			return storage.ErrUsernameExists
		}
		delete(s.byUsername, oldUsername)
		s.byUsername[newUsername] = user.ID
	}

	user.UpdatedAt = time.Now().UTC()
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	return nil
}

// ListUsers 列出用户（支持分页和过滤）
func (s *Store) ListUsers(page, pageSize int, search string, role *domain.UserRole, isActive *bool) ([]domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.User, 0)
	for _, user := range s.users {
		if search != "" && !containsIgnoreCase(user.Username, search) {
			continue
		}
		if role != nil && user.Role != *role {
			continue
		}
		if isActive != nil && user.IsActive != *isActive {
			continue
		}
		filtered = append(filtered, *user)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	total := len(filtered)
	start, end := pageBounds(page, pageSize, total)
	return filtered[start:end], total, nil
}

// DeleteUser 删除用户，并级联删除名下授权与 API Key
func (s *Store) DeleteUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	delete(s.users, userID)
	delete(s.byUsername, strings.ToLower(user.Username))

	// 级联：API Key
	if keyID, ok := s.byAPIKeyUser[userID]; ok {
		if key, ok := s.apiKeys[keyID]; ok {
			delete(s.byAPIKey, key.Key)
		}
		delete(s.apiKeys, keyID)
		delete(s.byAPIKeyUser, userID)
	}

	// 级联：手机号授权
	for id, lic := range s.licenses {
		if lic.OwnerID == userID {
			s.deleteLicenseLocked(id)
		}
	}

	// 级联：店铺授权
	for id, lic := range s.shopLicenses {
		if lic.OwnerID == userID {
			s.deleteShopLicenseLocked(id)
		}
	}

	return nil
}

// ========== API Key Repository ==========

// SaveAPIKey 保存API Key
func (s *Store) SaveAPIKey(apiKey *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byAPIKey[apiKey.Key]; ok && existingID != apiKey.ID {
		return storage.ErrAPIKeyExists
	}
	if existingID, ok := s.byAPIKeyUser[apiKey.UserID]; ok && existingID != apiKey.ID {
		return storage.ErrAPIKeyExists
	}

	if old, ok := s.apiKeys[apiKey.ID]; ok && old.Key != apiKey.Key {
		delete(s.byAPIKey, old.Key)
	}

	stored := *apiKey
	s.apiKeys[apiKey.ID] = &stored
	s.byAPIKey[apiKey.Key] = apiKey.ID
	s.byAPIKeyUser[apiKey.UserID] = apiKey.ID
	return nil
}

// GetAPIKeyByUserID 获取用户的API Key
func (s *Store) GetAPIKeyByUserID(userID string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, ok := s.byAPIKeyUser[userID]
	if !ok {
		return nil, storage.ErrAPIKeyNotFound
	}
	return cloneAPIKey(s.apiKeys[keyID]), nil
}

// GetAPIKeyByKey 根据令牌字符串获取API Key
func (s *Store) GetAPIKeyByKey(key string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, ok := s.byAPIKey[key]
	if !ok {
		return nil, storage.ErrAPIKeyNotFound
	}
	return cloneAPIKey(s.apiKeys[keyID]), nil
}

// UpdateAPIKeyLastUsed 更新API Key最后使用时间
func (s *Store) UpdateAPIKeyLastUsed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apiKey, ok := s.apiKeys[id]
	if !ok {
		return storage.ErrAPIKeyNotFound
	}

	now := time.Now().UTC()
	apiKey.LastUsedAt = &now
	return nil
}

// DeleteAPIKeyByUserID 删除用户的API Key
func (s *Store) DeleteAPIKeyByUserID(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyID, ok := s.byAPIKeyUser[userID]
	if !ok {
		return storage.ErrAPIKeyNotFound
	}

	if key, ok := s.apiKeys[keyID]; ok {
		delete(s.byAPIKey, key.Key)
	}
	delete(s.apiKeys, keyID)
	delete(s.byAPIKeyUser, userID)
	return nil
}

// ========== 工具方法 ==========

// Close 关闭存储连接
func (s *Store) Close() error {
	return nil
}

// Health 健康检查
func (s *Store) Health() error {
	return nil
}

// containsIgnoreCase 不区分大小写的字符串包含检查
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// cloneUser 返回用户记录的副本，见 cloneLicense 的不变量说明
func cloneUser(user *domain.User) *domain.User {
	cp := *user
	return &cp
}

// cloneAPIKey 返回 API Key 记录的副本
func cloneAPIKey(apiKey *domain.APIKey) *domain.APIKey {
	cp := *apiKey
	return &cp
}

// pageBounds 计算分页切片边界
func pageBounds(page, pageSize, total int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return start, end
}
