package memory

import (
	"sort"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== Catalog Repository ==========

// SavePackage 保存续费套餐
func (s *Store) SavePackage(pkg *domain.ExtensionPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	pkg.UpdatedAt = now

	stored := *pkg
	s.packages[pkg.ID] = &stored
	return nil
}

// GetPackage 根据ID获取续费套餐
func (s *Store) GetPackage(id string) (*domain.ExtensionPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pkg, ok := s.packages[id]
	if !ok {
		return nil, storage.ErrPackageNotFound
	}
	cp := *pkg
	return &cp, nil
}

// ListPackages 列出续费套餐，按排序权重和天数升序
func (s *Store) ListPackages(activeOnly bool) ([]domain.ExtensionPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ExtensionPackage, 0, len(s.packages))
	for _, pkg := range s.packages {
		if activeOnly && !pkg.IsActive {
			continue
		}
		result = append(result, *pkg)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Days < result[j].Days
	})
	return result, nil
}

// DeletePackage 删除续费套餐
func (s *Store) DeletePackage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.packages[id]; !ok {
		return storage.ErrPackageNotFound
	}
	delete(s.packages, id)
	return nil
}

// SavePaymentInfo 保存收款信息
func (s *Store) SavePaymentInfo(info *domain.PaymentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = now
	}
	info.UpdatedAt = now

	stored := *info
	s.paymentInfos[info.ID] = &stored
	return nil
}

// GetActivePaymentInfo 获取当前启用的收款信息，取最近更新的一条
func (s *Store) GetActivePaymentInfo() (*domain.PaymentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PaymentInfo
	for _, info := range s.paymentInfos {
		if !info.IsActive {
			continue
		}
		if latest == nil || info.UpdatedAt.After(latest.UpdatedAt) {
			latest = info
		}
	}
	if latest == nil {
		return nil, storage.ErrPaymentInfoNotFound
	}
	cp := *latest
	return &cp, nil
}

// ListPaymentInfos 列出全部收款信息
func (s *Store) ListPaymentInfos() ([]domain.PaymentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.PaymentInfo, 0, len(s.paymentInfos))
	for _, info := range s.paymentInfos {
		result = append(result, *info)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeletePaymentInfo 删除收款信息
func (s *Store) DeletePaymentInfo(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paymentInfos[id]; !ok {
		return storage.ErrPaymentInfoNotFound
	}
	delete(s.paymentInfos, id)
	return nil
}

// ========== JWT Repository ==========

// AddToBlacklist 将JWT令牌ID加入黑名单
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blacklist[jti] = time.Now().Add(ttl)
	return nil
}

// IsBlacklisted 检查JWT令牌ID是否在黑名单中
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.blacklist[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(s.blacklist, jti)
		return false, nil
	}
	return true, nil
}

// ========== Rate Limit Repository ==========

// IncrementRateLimit 递增限流计数器，窗口过期后重新计数
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.cleanupRateLimitsLocked(now)

	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.ExpiresAt) {
		entry = &rateLimitEntry{Count: 0, ExpiresAt: now.Add(window)}
		s.rateLimits[key] = entry
	}
	entry.Count++
	return entry.Count, nil
}

// GetRateLimit 获取限流计数器当前值
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}

// cleanupRateLimitsLocked 定期清理过期的限流条目，调用方必须持有写锁
func (s *Store) cleanupRateLimitsLocked(now time.Time) {
	if now.Before(s.rateLimitsCleanup) {
		return
	}
	for key, entry := range s.rateLimits {
		if now.After(entry.ExpiresAt) {
			delete(s.rateLimits, key)
		}
	}
	s.rateLimitsCleanup = now.Add(5 * time.Minute)
}
