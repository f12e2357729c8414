package storage

import (
	"errors"
	"time"

	"licensehub/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameExists 用户名已存在错误
	ErrUsernameExists = errors.New("username already exists")
	// ErrAPIKeyNotFound API Key未找到错误
	ErrAPIKeyNotFound = errors.New("api key not found")
	// ErrAPIKeyExists API Key令牌冲突错误
	ErrAPIKeyExists = errors.New("api key already exists")
	// ErrLicenseNotFound 授权未找到错误
	ErrLicenseNotFound = errors.New("license not found")
	// ErrLicenseExists 手机号已登记错误（全局唯一约束命中）
	ErrLicenseExists = errors.New("license already exists")
	// ErrShopLicenseNotFound 店铺授权未找到错误
	ErrShopLicenseNotFound = errors.New("shop license not found")
	// ErrShopLicenseExists 店铺授权已登记错误（所有者内唯一约束命中）
	ErrShopLicenseExists = errors.New("shop license already exists")
	// ErrPackageNotFound 套餐未找到错误
	ErrPackageNotFound = errors.New("extension package not found")
	// ErrPaymentInfoNotFound 收款信息未找到错误
	ErrPaymentInfoNotFound = errors.New("payment info not found")
)

// LicenseFilter 控制台授权列表的查询条件
type LicenseFilter struct {
	OwnerID  string // 为空表示所有所有者（仅限超级管理员路径）
	Search   string // 标识（手机号/店铺ID）模糊匹配
	Expired  *bool  // nil 表示不过滤过期状态
	Page     int
	PageSize int
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
	ListUsers(page, pageSize int, search string, role *domain.UserRole, isActive *bool) ([]domain.User, int, error)
	DeleteUser(userID string) error // 级联删除名下授权与 API Key
}

// APIKeyRepository 定义API Key数据存取操作。
type APIKeyRepository interface {
	SaveAPIKey(apiKey *domain.APIKey) error
	GetAPIKeyByUserID(userID string) (*domain.APIKey, error)
	GetAPIKeyByKey(key string) (*domain.APIKey, error)
	UpdateAPIKeyLastUsed(id string) error
	DeleteAPIKeyByUserID(userID string) error
}

// LicenseRepository 定义手机号授权数据存取操作。
//
// SaveLicense 在手机号唯一约束命中时必须返回 ErrLicenseExists：
// 服务层的存在性预检查只是尽力而为，权威保证来自存储层约束。
type LicenseRepository interface {
	SaveLicense(license *domain.License) error
	GetLicense(id string) (*domain.License, error)
	GetLicenseByCode(code string) (*domain.License, error)
	GetLicenseByPhone(phone string) (*domain.License, error)
	GetLicenseByCodeAndPhone(code, phone string) (*domain.License, error)
	ListLicensesByOwner(ownerID string) ([]domain.License, error)
	ListAllLicenses() ([]domain.License, error)
	ListLicenses(filter LicenseFilter) ([]domain.License, int, error)
	CountLicensesByOwner(ownerID string) (int, error)
	UpdateLicense(license *domain.License) error
	DeleteLicense(id string) error
	DeleteLicensesByOwner(ownerID string) (int, error)
}

// ShopLicenseRepository 定义店铺授权数据存取操作。
//
// SaveShopLicense 在 (owner, shop_id) 唯一约束命中时必须返回
// ErrShopLicenseExists。
type ShopLicenseRepository interface {
	SaveShopLicense(license *domain.ShopLicense) error
	GetShopLicense(id string) (*domain.ShopLicense, error)
	GetShopLicenseByCode(code string) (*domain.ShopLicense, error)
	GetShopLicenseByOwnerAndShop(ownerID, shopID string) (*domain.ShopLicense, error)
	GetShopLicenseByCodeAndShop(code, shopID string) (*domain.ShopLicense, error)
	ListShopLicensesByOwner(ownerID string) ([]domain.ShopLicense, error)
	ListAllShopLicenses() ([]domain.ShopLicense, error)
	ListShopLicenses(filter LicenseFilter) ([]domain.ShopLicense, int, error)
	UpdateShopLicense(license *domain.ShopLicense) error
	DeleteShopLicense(id string) error
	DeleteShopLicensesByOwner(ownerID string) (int, error)
}

// CatalogRepository 定义套餐与收款信息数据存取操作。
type CatalogRepository interface {
	SavePackage(pkg *domain.ExtensionPackage) error
	GetPackage(id string) (*domain.ExtensionPackage, error)
	ListPackages(activeOnly bool) ([]domain.ExtensionPackage, error)
	DeletePackage(id string) error
	SavePaymentInfo(info *domain.PaymentInfo) error
	GetActivePaymentInfo() (*domain.PaymentInfo, error)
	ListPaymentInfos() ([]domain.PaymentInfo, error)
	DeletePaymentInfo(id string) error
}

// JWTRepository 定义 JWT 黑名单操作。
type JWTRepository interface {
	AddToBlacklist(jti string, ttl time.Duration) error
	IsBlacklisted(jti string) (bool, error)
}

// RateLimitRepository 定义限流操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	UserRepository
	APIKeyRepository
	LicenseRepository
	ShopLicenseRepository
	CatalogRepository
	JWTRepository
	RateLimitRepository

	// 工具方法
	Close() error
	Health() error
}
