package memory

import (
	"sort"
	"strings"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ownerShopKey 生成 (所有者, 店铺) 复合索引键
func ownerShopKey(ownerID, shopID string) string {
	return ownerID + "\x00" + shopID
}

// ========== License Repository ==========

// SaveLicense 保存手机号授权，手机号冲突时返回 ErrLicenseExists
func (s *Store) SaveLicense(license *domain.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byPhone[license.PhoneNumber]; ok && existingID != license.ID {
		return storage.ErrLicenseExists
	}
	if existingID, ok := s.byCode[license.Code]; ok && existingID != license.ID {
		return storage.ErrLicenseExists
	}

	now := time.Now().UTC()
	if license.CreatedAt.IsZero() {
		license.CreatedAt = now
	}
	license.UpdatedAt = now

	stored := *license
	s.licenses[license.ID] = &stored
	s.byPhone[license.PhoneNumber] = license.ID
	s.byCode[license.Code] = license.ID
	return nil
}

// GetLicense 根据ID获取授权
func (s *Store) GetLicense(id string) (*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	license, ok := s.licenses[id]
	if !ok {
		return nil, storage.ErrLicenseNotFound
	}
	return cloneLicense(license), nil
}

// GetLicenseByCode 根据授权码获取授权
func (s *Store) GetLicenseByCode(code string) (*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, storage.ErrLicenseNotFound
	}
	return cloneLicense(s.licenses[id]), nil
}

// GetLicenseByPhone 根据手机号获取授权
func (s *Store) GetLicenseByPhone(phone string) (*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPhone[phone]
	if !ok {
		return nil, storage.ErrLicenseNotFound
	}
	return cloneLicense(s.licenses[id]), nil
}

// GetLicenseByCodeAndPhone 根据授权码和手机号获取授权（验证路径）
func (s *Store) GetLicenseByCodeAndPhone(code, phone string) (*domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, storage.ErrLicenseNotFound
	}
	license := s.licenses[id]
	if license.PhoneNumber != phone {
		return nil, storage.ErrLicenseNotFound
	}
	return cloneLicense(license), nil
}

// ListLicensesByOwner 列出指定所有者的全部授权
func (s *Store) ListLicensesByOwner(ownerID string) ([]domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.License, 0)
	for _, license := range s.licenses {
		if license.OwnerID == ownerID {
			result = append(result, *license)
		}
	}
	sortLicenses(result)
	return result, nil
}

// ListAllLicenses 列出全部授权
func (s *Store) ListAllLicenses() ([]domain.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.License, 0, len(s.licenses))
	for _, license := range s.licenses {
		result = append(result, *license)
	}
	sortLicenses(result)
	return result, nil
}

// ListLicenses 按条件分页列出授权
func (s *Store) ListLicenses(filter storage.LicenseFilter) ([]domain.License, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	filtered := make([]domain.License, 0)
	for _, license := range s.licenses {
		if filter.OwnerID != "" && license.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(license.PhoneNumber, filter.Search) {
			continue
		}
		if filter.Expired != nil && license.IsExpired(now) != *filter.Expired {
			continue
		}
		filtered = append(filtered, *license)
	}
	sortLicenses(filtered)

	total := len(filtered)
	start, end := pageBounds(filter.Page, filter.PageSize, total)
	return filtered[start:end], total, nil
}

// CountLicensesByOwner 统计指定所有者的授权数量
func (s *Store) CountLicensesByOwner(ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, license := range s.licenses {
		if license.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

// UpdateLicense 更新授权
func (s *Store) UpdateLicense(license *domain.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.licenses[license.ID]
	if !ok {
		return storage.ErrLicenseNotFound
	}

	if old.PhoneNumber != license.PhoneNumber {
		if existingID, exists := s.byPhone[license.PhoneNumber]; exists && existingID != license.ID {
			return storage.ErrLicenseExists
		}
		delete(s.byPhone, old.PhoneNumber)
		s.byPhone[license.PhoneNumber] = license.ID
	}

	license.UpdatedAt = time.Now().UTC()
	stored := *license
	s.licenses[license.ID] = &stored
	return nil
}

// DeleteLicense 删除授权
func (s *Store) DeleteLicense(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.licenses[id]; !ok {
		return storage.ErrLicenseNotFound
	}
	s.deleteLicenseLocked(id)
	return nil
}

// DeleteLicensesByOwner 删除指定所有者的全部授权，返回删除数量
func (s *Store) DeleteLicensesByOwner(ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, license := range s.licenses {
		if license.OwnerID == ownerID {
			s.deleteLicenseLocked(id)
			count++
		}
	}
	return count, nil
}

// deleteLicenseLocked 删除授权及其索引，调用方必须持有写锁
func (s *Store) deleteLicenseLocked(id string) {
	if license, ok := s.licenses[id]; ok {
		delete(s.byPhone, license.PhoneNumber)
		delete(s.byCode, license.Code)
		delete(s.licenses, id)
	}
}

// sortLicenses 按创建时间倒序排序
func sortLicenses(items []domain.License) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// cloneLicense 返回授权记录的副本
//
// 存储内部的记录绝不外泄：调用方拿到的是副本，原地修改后必须
// 通过 Update 写回，否则唯一性检查会因新旧记录互为别名而失效。
func cloneLicense(license *domain.License) *domain.License {
	cp := *license
	return &cp
}

// cloneShopLicense 返回店铺授权记录的副本
func cloneShopLicense(license *domain.ShopLicense) *domain.ShopLicense {
	cp := *license
	return &cp
}

// ========== Shop License Repository ==========

// SaveShopLicense 保存店铺授权，(所有者, 店铺) 冲突时返回 ErrShopLicenseExists
func (s *Store) SaveShopLicense(license *domain.ShopLicense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerShopKey(license.OwnerID, license.ShopID)
	if existingID, ok := s.byOwnerShop[key]; ok && existingID != license.ID {
		return storage.ErrShopLicenseExists
	}
	if existingID, ok := s.byShopCode[license.Code]; ok && existingID != license.ID {
		return storage.ErrShopLicenseExists
	}

	now := time.Now().UTC()
	if license.CreatedAt.IsZero() {
		license.CreatedAt = now
	}
	license.UpdatedAt = now

	stored := *license
	s.shopLicenses[license.ID] = &stored
	s.byOwnerShop[key] = license.ID
	s.byShopCode[license.Code] = license.ID
	return nil
}

// GetShopLicense 根据ID获取店铺授权
func (s *Store) GetShopLicense(id string) (*domain.ShopLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	license, ok := s.shopLicenses[id]
	if !ok {
		return nil, storage.ErrShopLicenseNotFound
	}
	return cloneShopLicense(license), nil
}

// GetShopLicenseByCode 根据授权码获取店铺授权
func (s *Store) GetShopLicenseByCode(code string) (*domain.ShopLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byShopCode[code]
	if !ok {
		return nil, storage.ErrShopLicenseNotFound
	}
	return cloneShopLicense(s.shopLicenses[id]), nil
}

// GetShopLicenseByOwnerAndShop 获取所有者名下指定店铺的授权
func (s *Store) GetShopLicenseByOwnerAndShop(ownerID, shopID string) (*domain.ShopLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOwnerShop[ownerShopKey(ownerID, shopID)]
	if !ok {
		return nil, storage.ErrShopLicenseNotFound
	}
	return cloneShopLicense(s.shopLicenses[id]), nil
}

// GetShopLicenseByCodeAndShop 根据授权码和店铺ID获取店铺授权（验证路径）
func (s *Store) GetShopLicenseByCodeAndShop(code, shopID string) (*domain.ShopLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byShopCode[code]
	if !ok {
		return nil, storage.ErrShopLicenseNotFound
	}
	license := s.shopLicenses[id]
	if license.ShopID != shopID {
		return nil, storage.ErrShopLicenseNotFound
	}
	return cloneShopLicense(license), nil
}

// ListShopLicensesByOwner 列出指定所有者的全部店铺授权
func (s *Store) ListShopLicensesByOwner(ownerID string) ([]domain.ShopLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ShopLicense, 0)
	for _, license := range s.shopLicenses {
		if license.OwnerID == ownerID {
			result = append(result, *license)
		}
	}
	sortShopLicenses(result)
	return result, nil
}

// ListAllShopLicenses 列出全部店铺授权
func (s *Store) ListAllShopLicenses() ([]domain.ShopLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ShopLicense, 0, len(s.shopLicenses))
	for _, license := range s.shopLicenses {
		result = append(result, *license)
	}
	sortShopLicenses(result)
	return result, nil
}

// ListShopLicenses 按条件分页列出店铺授权
func (s *Store) ListShopLicenses(filter storage.LicenseFilter) ([]domain.ShopLicense, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	filtered := make([]domain.ShopLicense, 0)
	for _, license := range s.shopLicenses {
		if filter.OwnerID != "" && license.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(license.ShopID, filter.Search) {
			continue
		}
		if filter.Expired != nil && license.IsExpired(now) != *filter.Expired {
			continue
		}
		filtered = append(filtered, *license)
	}
	sortShopLicenses(filtered)

	total := len(filtered)
	start, end := pageBounds(filter.Page, filter.PageSize, total)
	return filtered[start:end], total, nil
}

// UpdateShopLicense 更新店铺授权（支持变更店铺ID）
func (s *Store) UpdateShopLicense(license *domain.ShopLicense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.shopLicenses[license.ID]
	if !ok {
		return storage.ErrShopLicenseNotFound
	}

	oldKey := ownerShopKey(old.OwnerID, old.ShopID)
	newKey := ownerShopKey(license.OwnerID, license.ShopID)
	if oldKey != newKey {
		if existingID, exists := s.byOwnerShop[newKey]; exists && existingID != license.ID {
			return storage.ErrShopLicenseExists
		}
		delete(s.byOwnerShop, oldKey)
		s.byOwnerShop[newKey] = license.ID
	}

	license.UpdatedAt = time.Now().UTC()
	stored := *license
	s.shopLicenses[license.ID] = &stored
	return nil
}

// DeleteShopLicense 删除店铺授权
func (s *Store) DeleteShopLicense(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shopLicenses[id]; !ok {
		return storage.ErrShopLicenseNotFound
	}
	s.deleteShopLicenseLocked(id)
	return nil
}

// DeleteShopLicensesByOwner 删除指定所有者的全部店铺授权，返回删除数量
func (s *Store) DeleteShopLicensesByOwner(ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, license := range s.shopLicenses {
		if license.OwnerID == ownerID {
			s.deleteShopLicenseLocked(id)
			count++
		}
	}
	return count, nil
}

// deleteShopLicenseLocked 删除店铺授权及其索引，调用方必须持有写锁
func (s *Store) deleteShopLicenseLocked(id string) {
	if license, ok := s.shopLicenses[id]; ok {
		delete(s.byOwnerShop, ownerShopKey(license.OwnerID, license.ShopID))
		delete(s.byShopCode, license.Code)
		delete(s.shopLicenses, id)
	}
}

// sortShopLicenses 按创建时间倒序排序
func sortShopLicenses(items []domain.ShopLicense) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
