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

// LicenseService 手机号授权业务逻辑服务
type LicenseService struct {
	store  storage.Store
	cfg    config.LicenseConfig
	logger *zap.Logger
}

// NewLicenseService 创建授权服务
func NewLicenseService(store storage.Store, cfg config.LicenseConfig, logger *zap.Logger) *LicenseService {
	return &LicenseService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// CreateResult 批量创建的结果
//
// Created 与 Skipped 合计等于清洗去重后的输入数量：已登记的
// 标识被跳过而不是报错，重复提交同一批标识是幂等的。
type CreateResult struct {
	Created []domain.License `json:"created"`
	Skipped []string         `json:"skipped"`
}

// VerifyResult 验证结果
type VerifyResult struct {
	Valid     bool  `json:"valid"`
	ExpiredAt int64 `json:"expired_at"` // Unix 秒
}

// Create 批量创建授权
//
// targetOwnerID 非空且不等于操作者时仅超级管理员可用。
// 标识先去除首尾空白、丢弃空串、按首次出现去重，数量超过
// 配置上限时整批拒绝。
func (s *LicenseService) Create(actor *domain.User, targetOwnerID string, identifiers []string, days int) (*CreateResult, error) {
	owner, err := s.resolveOwner(actor, targetOwnerID)
	if err != nil {
		return nil, err
	}

	cleaned := cleanIdentifiers(identifiers)
	if len(cleaned) == 0 {
		return nil, ErrNoIdentifiers
	}
	if len(cleaned) > s.cfg.MaxBatch {
		return nil, ErrBatchTooLarge
	}

	validity, err := s.resolveValidity(owner, len(cleaned), days)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiredAt := now.Add(validity)

	result := &CreateResult{
		Created: make([]domain.License, 0, len(cleaned)),
		Skipped: make([]string, 0),
	}

	for _, phone := range cleaned {
		license := &domain.License{
			ID:          uuid.New().String(),
			OwnerID:     owner.ID,
			Code:        uuid.New().String(),
			PhoneNumber: phone,
			ExpiredAt:   expiredAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		err := s.store.SaveLicense(license)
		if errors.Is(err, storage.ErrLicenseExists) {
			// 已登记的手机号跳过，存储层约束是权威判定
			result.Skipped = append(result.Skipped, phone)
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, *license)
	}

	s.logger.Info("created licenses",
		zap.String("owner_id", owner.ID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
	)

	return result, nil
}

// Get 获取单个授权，非所有者且非超级管理员时拒绝
func (s *LicenseService) Get(actor *domain.User, id string) (*domain.License, error) {
	license, err := s.store.GetLicense(id)
	if errors.Is(err, storage.ErrLicenseNotFound) {
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

// List 列出操作者可见的全部授权（超级管理员可见全部）
func (s *LicenseService) List(actor *domain.User) ([]domain.License, error) {
	if actor.IsSuper() {
		return s.store.ListAllLicenses()
	}
	return s.store.ListLicensesByOwner(actor.ID)
}

// ListPaged 按条件分页列出授权
//
// 普通用户的查询强制限定在自己名下。
func (s *LicenseService) ListPaged(actor *domain.User, filter storage.LicenseFilter) ([]domain.License, int, error) {
	if !actor.IsSuper() {
		filter.OwnerID = actor.ID
	}
	return s.store.ListLicenses(filter)
}

// Extend 按配置的续期策略延长授权有效期
//
// additive 策略下未过期授权在原有效期上叠加，已过期授权从当前
// 时刻重新起算；overwrite 策略一律覆盖为 now + days。
func (s *LicenseService) Extend(actor *domain.User, id string, days int) (*domain.License, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}

	license, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}

	license.ExpiredAt = s.nextExpiry(s.extendedExpiry(license.ExpiredAt), days)

	if err := s.store.UpdateLicense(license); err != nil {
		return nil, err
	}

	s.logger.Info("extended license",
		zap.String("license_id", license.ID),
		zap.Int("days", days),
		zap.Time("expired_at", license.ExpiredAt),
	)

	return license, nil
}

// ExtendByCode 根据授权码续期（机器 API 路径）
func (s *LicenseService) ExtendByCode(actor *domain.User, code string, days int) (*domain.License, error) {
	license, err := s.store.GetLicenseByCode(code)
	if errors.Is(err, storage.ErrLicenseNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, license.OwnerID) {
		return nil, ErrNotOwner
	}
	return s.Extend(actor, license.ID, days)
}

// extendedExpiry 按续期策略返回续期的基准时刻
func (s *LicenseService) extendedExpiry(current time.Time) time.Time {
	now := time.Now().UTC()
	if s.cfg.ExtendPolicy == config.ExtendPolicyOverwrite {
		return now
	}
	// additive：已过期从现在起算，未过期保持原有效期作为基准
	if !now.Before(current) {
		return now
	}
	return current
}

// nextExpiry 在基准时刻上叠加天数
func (s *LicenseService) nextExpiry(base time.Time, days int) time.Time {
	return base.Add(time.Duration(days) * 24 * time.Hour)
}

// Delete 删除单个授权
func (s *LicenseService) Delete(actor *domain.User, id string) error {
	license, err := s.Get(actor, id)
	if err != nil {
		return err
	}
	return s.store.DeleteLicense(license.ID)
}

// DeleteByCode 根据授权码删除授权
func (s *LicenseService) DeleteByCode(actor *domain.User, code string) error {
	license, err := s.store.GetLicenseByCode(code)
	if errors.Is(err, storage.ErrLicenseNotFound) {
		return ErrLicenseNotFound
	}
	if err != nil {
		return err
	}
	if !canAccess(actor, license.OwnerID) {
		return ErrNotOwner
	}
	return s.store.DeleteLicense(license.ID)
}

// DeleteMany 批量删除指定ID的授权，返回实际删除数量
//
// 不存在或无权访问的ID静默跳过。
func (s *LicenseService) DeleteMany(actor *domain.User, ids []string) (int, error) {
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

// DeleteAll 删除操作者名下全部授权，返回删除数量
func (s *LicenseService) DeleteAll(actor *domain.User) (int, error) {
	count, err := s.store.DeleteLicensesByOwner(actor.ID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("deleted all licenses",
		zap.String("owner_id", actor.ID),
		zap.Int("count", count),
	)

	return count, nil
}

// Verify 验证授权码与手机号的配对
//
// 授权码格式非法与不存在同样返回 ErrLicenseNotFound，避免给
// 探测方泄露"码存在但配对错误"的信息。已过期时返回携带过期
// 时间的结果和 ErrLicenseExpired。
func (s *LicenseService) Verify(code, phone string) (*VerifyResult, error) {
	if _, err := uuid.Parse(code); err != nil {
		return nil, ErrLicenseNotFound
	}

	license, err := s.store.GetLicenseByCodeAndPhone(code, strings.TrimSpace(phone))
	if errors.Is(err, storage.ErrLicenseNotFound) {
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

// Total 返回系统内授权总数（监控用）
func (s *LicenseService) Total() (int, error) {
	_, total, err := s.store.ListLicenses(storage.LicenseFilter{Page: 1, PageSize: 1})
	return total, err
}

// resolveOwner 解析授权归属的所有者
func (s *LicenseService) resolveOwner(actor *domain.User, targetOwnerID string) (*domain.User, error) {
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

// resolveValidity 计算本次创建使用的有效期
//
// 配额开启时普通用户只能持有一张授权，且有效期固定为配置值。
func (s *LicenseService) resolveValidity(owner *domain.User, batchSize, days int) (time.Duration, error) {
	if s.cfg.QuotaEnabled && !owner.IsSuper() {
		if batchSize > 1 {
			return 0, ErrQuotaExceeded
		}
		count, err := s.store.CountLicensesByOwner(owner.ID)
		if err != nil {
			return 0, err
		}
		if count >= 1 {
			return 0, ErrQuotaExceeded
		}
		return s.cfg.QuotaValidity, nil
	}

	if days <= 0 {
		return 0, ErrInvalidDays
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// cleanIdentifiers 清洗标识列表：去空白、丢空串、保序去重
func cleanIdentifiers(identifiers []string) []string {
	seen := make(map[string]struct{}, len(identifiers))
	cleaned := make([]string, 0, len(identifiers))
	for _, raw := range identifiers {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}

// canAccess 判断操作者是否可以访问指定所有者的资源
func canAccess(actor *domain.User, ownerID string) bool {
	return actor.IsSuper() || actor.ID == ownerID
}
