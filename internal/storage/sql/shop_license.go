package sql

import (
	"database/sql"
	"errors"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== Shop License Repository ==========

// SaveShopLicense 保存店铺授权，(所有者, 店铺) 冲突时返回 ErrShopLicenseExists
func (s *Store) SaveShopLicense(license *domain.ShopLicense) error {
	query := s.rebind(`
		INSERT INTO shop_licenses (id, owner_id, code, shop_id, expired_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		license.ID,
		license.OwnerID,
		license.Code,
		license.ShopID,
		license.ExpiredAt,
		license.CreatedAt,
		license.UpdatedAt,
	)
	if isDuplicateErr(err) {
		return storage.ErrShopLicenseExists
	}
	return err
}

// GetShopLicense 根据ID获取店铺授权
func (s *Store) GetShopLicense(id string) (*domain.ShopLicense, error) {
	query := s.rebind(shopLicenseSelect + ` WHERE id = ?`)
	return scanShopLicense(s.db.QueryRow(query, id))
}

// GetShopLicenseByCode 根据授权码获取店铺授权
func (s *Store) GetShopLicenseByCode(code string) (*domain.ShopLicense, error) {
	query := s.rebind(shopLicenseSelect + ` WHERE code = ?`)
	return scanShopLicense(s.db.QueryRow(query, code))
}

// GetShopLicenseByOwnerAndShop 获取所有者名下指定店铺的授权
func (s *Store) GetShopLicenseByOwnerAndShop(ownerID, shopID string) (*domain.ShopLicense, error) {
	query := s.rebind(shopLicenseSelect + ` WHERE owner_id = ? AND shop_id = ?`)
	return scanShopLicense(s.db.QueryRow(query, ownerID, shopID))
}

// GetShopLicenseByCodeAndShop 根据授权码和店铺ID获取店铺授权（验证路径）
func (s *Store) GetShopLicenseByCodeAndShop(code, shopID string) (*domain.ShopLicense, error) {
	query := s.rebind(shopLicenseSelect + ` WHERE code = ? AND shop_id = ?`)
	return scanShopLicense(s.db.QueryRow(query, code, shopID))
}

// ListShopLicensesByOwner 列出指定所有者的全部店铺授权
func (s *Store) ListShopLicensesByOwner(ownerID string) ([]domain.ShopLicense, error) {
	query := s.rebind(shopLicenseSelect + ` WHERE owner_id = ? ORDER BY created_at DESC`)
	return s.queryShopLicenses(query, ownerID)
}

// ListAllShopLicenses 列出全部店铺授权
func (s *Store) ListAllShopLicenses() ([]domain.ShopLicense, error) {
	return s.queryShopLicenses(shopLicenseSelect + ` ORDER BY created_at DESC`)
}

// ListShopLicenses 按条件分页列出店铺授权
func (s *Store) ListShopLicenses(filter storage.LicenseFilter) ([]domain.ShopLicense, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.OwnerID != "" {
		where += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	if filter.Search != "" {
		where += " AND shop_id LIKE ?"
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Expired != nil {
		if *filter.Expired {
			where += " AND expired_at <= ?"
		} else {
			where += " AND expired_at > ?"
		}
		args = append(args, time.Now().UTC())
	}

	countQuery := s.rebind("SELECT COUNT(*) FROM shop_licenses " + where)
	var total int
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	query := s.rebind(shopLicenseSelect + " " + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	args = append(args, pageSize, (page-1)*pageSize)

	items, err := s.queryShopLicenses(query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateShopLicense 更新店铺授权（支持变更店铺ID）
func (s *Store) UpdateShopLicense(license *domain.ShopLicense) error {
	query := s.rebind(`
		UPDATE shop_licenses
		SET shop_id = ?, expired_at = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := s.db.Exec(query,
		license.ShopID,
		license.ExpiredAt,
		time.Now().UTC(),
		license.ID,
	)
	if isDuplicateErr(err) {
		return storage.ErrShopLicenseExists
	}
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrShopLicenseNotFound)
}

// DeleteShopLicense 删除店铺授权
func (s *Store) DeleteShopLicense(id string) error {
	query := s.rebind(`DELETE FROM shop_licenses WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrShopLicenseNotFound)
}

// DeleteShopLicensesByOwner 删除指定所有者的全部店铺授权，返回删除数量
func (s *Store) DeleteShopLicensesByOwner(ownerID string) (int, error) {
	query := s.rebind(`DELETE FROM shop_licenses WHERE owner_id = ?`)
	result, err := s.db.Exec(query, ownerID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

const shopLicenseSelect = `SELECT id, owner_id, code, shop_id, expired_at, created_at, updated_at FROM shop_licenses`

// queryShopLicenses 执行店铺授权列表查询
func (s *Store) queryShopLicenses(query string, args ...interface{}) ([]domain.ShopLicense, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	licenses := make([]domain.ShopLicense, 0)
	for rows.Next() {
		var license domain.ShopLicense
		err := rows.Scan(
			&license.ID,
			&license.OwnerID,
			&license.Code,
			&license.ShopID,
			&license.ExpiredAt,
			&license.CreatedAt,
			&license.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, license)
	}
	return licenses, rows.Err()
}

// scanShopLicense 扫描单行店铺授权记录
func scanShopLicense(row *sql.Row) (*domain.ShopLicense, error) {
	var license domain.ShopLicense
	err := row.Scan(
		&license.ID,
		&license.OwnerID,
		&license.Code,
		&license.ShopID,
		&license.ExpiredAt,
		&license.CreatedAt,
		&license.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrShopLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}
