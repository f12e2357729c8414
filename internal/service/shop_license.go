package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"licensehub/backend/internal/config"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ShopLicenseService 店铺授权业务逻辑服务
//
// 与手机号授权同构，但标识是店铺ID，唯一性按所有者划分：
// 不同所有者可以登记同一家店铺。
type ShopLicenseService struct {
	store  storage.Store
	cfg    config.LicenseConfig
	logger *zap.Logger
}

// NewShopLicenseService 创建店铺授权服务
func NewShopLicenseService(store storage.Store, cfg config.LicenseConfig, logger *zap.Logger) *ShopLicenseService {
	return &ShopLicenseService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// ShopCreateResult 店铺授权批量创建的结果
type ShopCreateResult struct {
	Created []domain.ShopLicense `json:"created"`
	Skipped []string             `json:"skipped"`
}

// Create 批量创建店铺授权
func (s *ShopLicenseService) Create(actor *domain.User, targetOwnerID string, shopIDs []string, days int) (*ShopCreateResult, error) {
	owner, err := s.resolveOwner(actor, targetOwnerID)
	if err != nil {
		return nil, err
	}

	cleaned := cleanIdentifiers(shopIDs)
	if len(cleaned) == 0 {
		return nil, ErrNoIdentifiers
	}
	if len(cleaned) > s.cfg.MaxBatch {
		return nil, ErrBatchTooLarge
	}
	if days <= 0 {
		return nil, ErrInvalidDays
	}

	now := time.Now().UTC()
	expiredAt := now.Add(time.Duration(days) * 24 * time.Hour)

	result := &ShopCreateResult{
		Created: make([]domain.ShopLicense, 0, len(cleaned)),
		Skipped: make([]string, 0),
	}

	for _, shopID := range cleaned {
		license := &domain.ShopLicense{
			ID:        uuid.New().String(),
			OwnerID:   owner.ID,
			Code:      uuid.New().String(),
			ShopID:    shopID,
			ExpiredAt: expiredAt,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.store.SaveShopLicense(license)
		if errors.Is(err, storage.ErrShopLicenseExists) {
			result.Skipped = append(result.Skipped, shopID)
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, *license)
	}

	s.logger.Info("created shop licenses",
		zap.String("owner_id", owner.ID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
	)

	return result, nil
}

// Get 获取单个店铺授权
func (s *ShopLicenseService) Get(actor *domain.User, id string) (*domain.ShopLicense, error) {
	license, err := s.store.GetShopLicense(id)
	if errors.Is(err, storage.ErrShopLicenseNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, license.OwnerID) {
		return nil, ErrNotOwner
	}
	return license, nil
}

// List 列出操作者可见的全部店铺授权
func (s *ShopLicenseService) List(actor *domain.User) ([]domain.ShopLicense, error) {
	if actor.IsSuper() {
		return s.store.ListAllShopLicenses()
	}
	return s.store.ListShopLicensesByOwner(actor.ID)
}

// ListPaged 按条件分页列出店铺授权
func (s *ShopLicenseService) ListPaged(actor *domain.User, filter storage.LicenseFilter) ([]domain.ShopLicense, int, error) {
	if !actor.IsSuper() {
		filter.OwnerID = actor.ID
	}
	return s.store.ListShopLicenses(filter)
}

// ShopLicenseUpdate 店铺授权更新输入
type ShopLicenseUpdate struct {
	ShopID string // 非空时变更店铺ID
	Days   int    // 大于 0 时按续期策略延长有效期
}

// Update 更新店铺授权
//
// 变更店铺ID时须保持所有者内唯一，目标店铺已登记则失败。
func (s *ShopLicenseService) Update(actor *domain.User, id string, update ShopLicenseUpdate) (*domain.ShopLicense, error) {
	license, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}

	if shopID := strings.TrimSpace(update.ShopID); shopID != "" {
		license.ShopID = shopID
	}
	if update.Days > 0 {
		license.ExpiredAt = s.extendedExpiry(license.ExpiredAt).
			Add(time.Duration(update.Days) * 24 * time.Hour)
	}

	if err := s.store.UpdateShopLicense(license); err != nil {
		return nil, err
	}

	return license, nil
}

// UpdateByCode 根据授权码更新店铺授权（机器 API 路径）
func (s *ShopLicenseService) UpdateByCode(actor *domain.User, code string, update ShopLicenseUpdate) (*domain.ShopLicense, error) {
	license, err := s.store.GetShopLicenseByCode(code)
	if errors.Is(err, storage.ErrShopLicenseNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, license.OwnerID) {
		return nil, ErrNotOwner
	}
	return s.Update(actor, license.ID, update)
}

// DeleteByCode 根据授权码删除店铺授权
func (s *ShopLicenseService) DeleteByCode(actor *domain.User, code string) error {
	license, err := s.store.GetShopLicenseByCode(code)
	if errors.Is(err, storage.ErrShopLicenseNotFound) {
		return ErrLicenseNotFound
	}
	if err != nil {
		return err
	}
	if !canAccess(actor, license.OwnerID) {
		return ErrNotOwner
	}
	return s.store.DeleteShopLicense(license.ID)
}

// extendedExpiry 按续期策略返回续期的基准时刻
func (s *ShopLicenseService) extendedExpiry(current time.Time) time.Time {
	now := time.Now().UTC()
	if s.cfg.ExtendPolicy == config.ExtendPolicyOverwrite {
		return now
	}
	if !now.Before(current) {
		return now
	}
	return current
}

// Delete 删除单个店铺授权
func (s *ShopLicenseService) Delete(actor *domain.User, id string) error {
	license, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	return s.store.DeleteShopLicense(license.ID)
}

// DeleteMany 批量删除指定ID的店铺授权，返回实际删除数量
func (s *ShopLicenseService) DeleteMany(actor *domain.User, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		if err := s.Delete(actor, id); err != nil {
			if errors.Is(err, ErrLicenseNotFound) || errors.Is(err, ErrNotOwner) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// DeleteAll 删除操作者名下全部店铺授权，返回删除数量
func (s *ShopLicenseService) DeleteAll(actor *domain.User) (int, error) {
	count, err := s.store.DeleteShopLicensesByOwner(actor.ID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("deleted all shop licenses",
		zap.String("owner_id", actor.ID),
		zap.Int("count", count),
	)

	return count, nil
}

// Verify 验证授权码与店铺ID的配对
func (s *ShopLicenseService) Verify(code, shopID string) (*VerifyResult, error) {
	if _, err := uuid.Parse(code); err != nil {
		return nil, ErrLicenseNotFound
	}

	license, err := s.store.GetShopLicenseByCodeAndShop(code, strings.TrimSpace(shopID))
	if errors.Is(err, storage.ErrShopLicenseNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Valid:     true,
		ExpiredAt: license.ExpiredAt.Unix(),
	}
	if license.IsExpired(time.Now().UTC()) {
		result.Valid = false
		return result, ErrLicenseExpired
	}
	return result, nil
}

// Total 返回系统内店铺授权总数（监控用）
func (s *ShopLicenseService) Total() (int, error) {
	_, total, err := s.store.ListShopLicenses(storage.LicenseFilter{Page: 1, PageSize: 1})
	return total, err
}

// resolveOwner 解析授权归属的所有者
func (s *ShopLicenseService) resolveOwner(actor *domain.User, targetOwnerID string) (*domain.User, error) {
	if targetOwnerID == "" || targetOwnerID == actor.ID {
		return actor, nil
	}
	if !actor.IsSuper() {
		return nil, ErrNotOwner
	}
	owner, err := s.store.GetUserByID(targetOwnerID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return owner, nil
}
