package hybrid

import (
	"fmt"
	"time"

	"licensehub/backend/internal/config"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
	"licensehub/backend/internal/storage/postgres"
	"licensehub/backend/internal/storage/redis"
	sqlstore "licensehub/backend/internal/storage/sql"
)

// 验证路径的缓存有效期。过期判断在服务层用实体自身的
// expired_at 完成，缓存只加速查找，不影响过期语义。
const licenseCacheTTL = 5 * time.Minute

// Store 混合存储实现，数据库持久化 + Redis 缓存
//
// 授权码查找和 API Key 认证走缓存，JWT 黑名单与限流计数
// 直接落在 Redis 上，其余操作透传给数据库存储。
type Store struct {
	db    storage.Store
	cache *redis.Cache
}

// NewStore 创建混合存储实例
func NewStore(dbCfg *config.DatabaseConfig, redisCfg *config.RedisConfig) (*Store, error) {
	var db storage.Store
	var err error

	switch dbCfg.Type {
	case "postgres", "postgresql":
		db, err = postgres.NewStore(dbCfg)
	case "mysql":
		db, err = sqlstore.NewStore("mysql", dbCfg.DSN,
			dbCfg.MaxOpenConns, dbCfg.MaxIdleConns, dbCfg.ConnMaxLifetime)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", dbCfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cache, err := redis.NewCache(redisCfg.Address, redisCfg.Password, redisCfg.DB)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{db: db, cache: cache}, nil
}

// ========== User Repository（透传） ==========

func (s *Store) CreateUser(user *domain.User) error {
	return s.db.CreateUser(user)
}

func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.db.GetUserByID(id)
}

func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	return s.db.GetUserByUsername(username)
}

func (s *Store) UpdateUser(user *domain.User) error {
	return s.db.UpdateUser(user)
}

func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.UpdateLastLogin(userID)
}

func (s *Store) ListUsers(page, pageSize int, search string, role *domain.UserRole, isActive *bool) ([]domain.User, int, error) {
	return s.db.ListUsers(page, pageSize, search, role, isActive)
}

func (s *Store) DeleteUser(userID string) error {
	// 删除前失效该用户 API Key 的缓存映射
	if apiKey, err := s.db.GetAPIKeyByUserID(userID); err == nil {
		s.cache.DeleteCachedAPIKeyUser(apiKey.Key)
	}
	return s.db.DeleteUser(userID)
}

// ========== API Key Repository ==========

// SaveAPIKey 保存API Key并失效旧的缓存映射
func (s *Store) SaveAPIKey(apiKey *domain.APIKey) error {
	if old, err := s.db.GetAPIKeyByUserID(apiKey.UserID); err == nil && old.Key != apiKey.Key {
		s.cache.DeleteCachedAPIKeyUser(old.Key)
	}
	if err := s.db.SaveAPIKey(apiKey); err != nil {
		return err
	}
	s.cache.CacheAPIKeyUser(apiKey.Key, apiKey.UserID, licenseCacheTTL)
	return nil
}

func (s *Store) GetAPIKeyByUserID(userID string) (*domain.APIKey, error) {
	return s.db.GetAPIKeyByUserID(userID)
}

// GetAPIKeyByKey 优先命中缓存映射
func (s *Store) GetAPIKeyByKey(key string) (*domain.APIKey, error) {
	if userID, err := s.cache.GetCachedAPIKeyUser(key); err == nil {
		if apiKey, err := s.db.GetAPIKeyByUserID(userID); err == nil && apiKey.Key == key {
			return apiKey, nil
		}
	}

	apiKey, err := s.db.GetAPIKeyByKey(key)
	if err != nil {
		return nil, err
	}
	s.cache.CacheAPIKeyUser(apiKey.Key, apiKey.UserID, licenseCacheTTL)
	return apiKey, nil
}

func (s *Store) UpdateAPIKeyLastUsed(id string) error {
	return s.db.UpdateAPIKeyLastUsed(id)
}

func (s *Store) DeleteAPIKeyByUserID(userID string) error {
	if apiKey, err := s.db.GetAPIKeyByUserID(userID); err == nil {
		s.cache.DeleteCachedAPIKeyUser(apiKey.Key)
	}
	return s.db.DeleteAPIKeyByUserID(userID)
}

// ========== License Repository ==========

func (s *Store) SaveLicense(license *domain.License) error {
	return s.db.SaveLicense(license)
}

func (s *Store) GetLicense(id string) (*domain.License, error) {
	return s.db.GetLicense(id)
}

// GetLicenseByCode 验证热路径，优先命中缓存
func (s *Store) GetLicenseByCode(code string) (*domain.License, error) {
	if license, err := s.cache.GetCachedLicense(code); err == nil {
		return license, nil
	}

	license, err := s.db.GetLicenseByCode(code)
	if err != nil {
		return nil, err
	}
	s.cache.CacheLicense(license, licenseCacheTTL)
	return license, nil
}

func (s *Store) GetLicenseByPhone(phone string) (*domain.License, error) {
	return s.db.GetLicenseByPhone(phone)
}

// GetLicenseByCodeAndPhone 验证热路径，优先命中缓存
func (s *Store) GetLicenseByCodeAndPhone(code, phone string) (*domain.License, error) {
	if license, err := s.cache.GetCachedLicense(code); err == nil {
		if license.PhoneNumber != phone {
			return nil, storage.ErrLicenseNotFound
		}
		return license, nil
	}

	license, err := s.db.GetLicenseByCodeAndPhone(code, phone)
	if err != nil {
		return nil, err
	}
	s.cache.CacheLicense(license, licenseCacheTTL)
	return license, nil
}

func (s *Store) ListLicensesByOwner(ownerID string) ([]domain.License, error) {
	return s.db.ListLicensesByOwner(ownerID)
}

func (s *Store) ListAllLicenses() ([]domain.License, error) {
	return s.db.ListAllLicenses()
}

func (s *Store) ListLicenses(filter storage.LicenseFilter) ([]domain.License, int, error) {
	return s.db.ListLicenses(filter)
}

func (s *Store) CountLicensesByOwner(ownerID string) (int, error) {
	return s.db.CountLicensesByOwner(ownerID)
}

// UpdateLicense 更新授权并失效缓存
func (s *Store) UpdateLicense(license *domain.License) error {
	if err := s.db.UpdateLicense(license); err != nil {
		return err
	}
	s.cache.DeleteCachedLicense(license.Code)
	return nil
}

// DeleteLicense 删除授权并失效缓存
func (s *Store) DeleteLicense(id string) error {
	license, err := s.db.GetLicense(id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteLicense(id); err != nil {
		return err
	}
	s.cache.DeleteCachedLicense(license.Code)
	return nil
}

// DeleteLicensesByOwner 批量删除授权并失效缓存
func (s *Store) DeleteLicensesByOwner(ownerID string) (int, error) {
	licenses, err := s.db.ListLicensesByOwner(ownerID)
	if err != nil {
		return 0, err
	}
	count, err := s.db.DeleteLicensesByOwner(ownerID)
	if err != nil {
		return 0, err
	}
	for _, license := range licenses {
		s.cache.DeleteCachedLicense(license.Code)
	}
	return count, nil
}

// ========== Shop License Repository ==========

func (s *Store) SaveShopLicense(license *domain.ShopLicense) error {
	return s.db.SaveShopLicense(license)
}

func (s *Store) GetShopLicense(id string) (*domain.ShopLicense, error) {
	return s.db.GetShopLicense(id)
}

// GetShopLicenseByCode 验证热路径，优先命中缓存
func (s *Store) GetShopLicenseByCode(code string) (*domain.ShopLicense, error) {
	if license, err := s.cache.GetCachedShopLicense(code); err == nil {
		return license, nil
	}

	license, err := s.db.GetShopLicenseByCode(code)
	if err != nil {
		return nil, err
	}
	s.cache.CacheShopLicense(license, licenseCacheTTL)
	return license, nil
}

func (s *Store) GetShopLicenseByOwnerAndShop(ownerID, shopID string) (*domain.ShopLicense, error) {
	return s.db.GetShopLicenseByOwnerAndShop(ownerID, shopID)
}

// GetShopLicenseByCodeAndShop 验证热路径，优先命中缓存
func (s *Store) GetShopLicenseByCodeAndShop(code, shopID string) (*domain.ShopLicense, error) {
	if license, err := s.cache.GetCachedShopLicense(code); err == nil {
		if license.ShopID != shopID {
			return nil, storage.ErrShopLicenseNotFound
		}
		return license, nil
	}

	license, err := s.db.GetShopLicenseByCodeAndShop(code, shopID)
	if err != nil {
		return nil, err
	}
	s.cache.CacheShopLicense(license, licenseCacheTTL)
	return license, nil
}

func (s *Store) ListShopLicensesByOwner(ownerID string) ([]domain.ShopLicense, error) {
	return s.db.ListShopLicensesByOwner(ownerID)
}

func (s *Store) ListAllShopLicenses() ([]domain.ShopLicense, error) {
	return s.db.ListAllShopLicenses()
}

func (s *Store) ListShopLicenses(filter storage.LicenseFilter) ([]domain.ShopLicense, int, error) {
	return s.db.ListShopLicenses(filter)
}

// UpdateShopLicense 更新店铺授权并失效缓存
func (s *Store) UpdateShopLicense(license *domain.ShopLicense) error {
	if err := s.db.UpdateShopLicense(license); err != nil {
		return err
	}
	s.cache.DeleteCachedShopLicense(license.Code)
	return nil
}

// DeleteShopLicense 删除店铺授权并失效缓存
func (s *Store) DeleteShopLicense(id string) error {
	license, err := s.db.GetShopLicense(id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteShopLicense(id); err != nil {
		return err
	}
	s.cache.DeleteCachedShopLicense(license.Code)
	return nil
}

// DeleteShopLicensesByOwner 批量删除店铺授权并失效缓存
func (s *Store) DeleteShopLicensesByOwner(ownerID string) (int, error) {
	licenses, err := s.db.ListShopLicensesByOwner(ownerID)
	if err != nil {
		return 0, err
	}
	count, err := s.db.DeleteShopLicensesByOwner(ownerID)
	if err != nil {
		return 0, err
	}
	for _, license := range licenses {
		s.cache.DeleteCachedShopLicense(license.Code)
	}
	return count, nil
}

// ========== Catalog Repository（透传） ==========

func (s *Store) SavePackage(pkg *domain.ExtensionPackage) error {
	return s.db.SavePackage(pkg)
}

func (s *Store) GetPackage(id string) (*domain.ExtensionPackage, error) {
	return s.db.GetPackage(id)
}

func (s *Store) ListPackages(activeOnly bool) ([]domain.ExtensionPackage, error) {
	return s.db.ListPackages(activeOnly)
}

func (s *Store) DeletePackage(id string) error {
	return s.db.DeletePackage(id)
}

func (s *Store) SavePaymentInfo(info *domain.PaymentInfo) error {
	return s.db.SavePaymentInfo(info)
}

func (s *Store) GetActivePaymentInfo() (*domain.PaymentInfo, error) {
	return s.db.GetActivePaymentInfo()
}

func (s *Store) ListPaymentInfos() ([]domain.PaymentInfo, error) {
	return s.db.ListPaymentInfos()
}

func (s *Store) DeletePaymentInfo(id string) error {
	return s.db.DeletePaymentInfo(id)
}

// ========== JWT / Rate Limit（Redis） ==========

func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	return s.cache.AddToBlacklist(jti, ttl)
}

func (s *Store) IsBlacklisted(jti string) (bool, error) {
	return s.cache.IsBlacklisted(jti)
}

func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	return s.cache.IncrementRateLimit(key, window)
}

func (s *Store) GetRateLimit(key string) (int64, error) {
	return s.cache.GetRateLimit(key)
}

// ========== 工具方法 ==========

// Close 关闭数据库与 Redis 连接
func (s *Store) Close() error {
	err := s.db.Close()
	if cerr := s.cache.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Health 检查数据库与 Redis 健康状态
func (s *Store) Health() error {
	if err := s.db.Health(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.cache.Health(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
