package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== License Repository ==========

const licenseColumns = `id, owner_id, code, phone_number, expired_at, created_at, updated_at`

// SaveLicense 保存手机号授权，手机号冲突时返回 ErrLicenseExists
func (s *Store) SaveLicense(license *domain.License) error {
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO licenses (id, owner_id, code, phone_number, expired_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, license.ID, license.OwnerID, license.Code, license.PhoneNumber,
		license.ExpiredAt, license.CreatedAt, license.UpdatedAt)
	if isDuplicateErr(err) {
		return storage.ErrLicenseExists
	}
	return err
}

// GetLicense 根据ID获取授权
func (s *Store) GetLicense(id string) (*domain.License, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id)
	return scanLicense(row)
}

// GetLicenseByCode 根据授权码获取授权
func (s *Store) GetLicenseByCode(code string) (*domain.License, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+licenseColumns+` FROM licenses WHERE code = $1`, code)
	return scanLicense(row)
}

// GetLicenseByPhone 根据手机号获取授权
func (s *Store) GetLicenseByPhone(phone string) (*domain.License, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+licenseColumns+` FROM licenses WHERE phone_number = $1`, phone)
	return scanLicense(row)
}

// GetLicenseByCodeAndPhone 根据授权码和手机号获取授权（验证路径）
func (s *Store) GetLicenseByCodeAndPhone(code, phone string) (*domain.License, error) {
	row := s.pool.QueryRow(s.ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE code = $1 AND phone_number = $2`, code, phone)
	return scanLicense(row)
}

// ListLicensesByOwner 列出指定所有者的全部授权
func (s *Store) ListLicensesByOwner(ownerID string) ([]domain.License, error) {
	rows, err := s.pool.Query(s.ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectLicenses(rows)
}

// ListAllLicenses 列出全部授权
func (s *Store) ListAllLicenses() ([]domain.License, error) {
	rows, err := s.pool.Query(s.ctx,
		`SELECT `+licenseColumns+` FROM licenses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectLicenses(rows)
}

// ListLicenses 按条件分页列出授权
func (s *Store) ListLicenses(filter storage.LicenseFilter) ([]domain.License, int, error) {
	where, args, next := buildLicenseWhere(filter, "phone_number")

	var total int
	if err := s.pool.QueryRow(s.ctx, "SELECT COUNT(*) FROM licenses "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := `SELECT ` + licenseColumns + ` FROM licenses ` + where +
		` ORDER BY created_at DESC LIMIT ` + next() + ` OFFSET ` + next()
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.pool.Query(s.ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectLicenses(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountLicensesByOwner 统计指定所有者的授权数量
func (s *Store) CountLicensesByOwner(ownerID string) (int, error) {
	var count int
	err := s.pool.QueryRow(s.ctx, `SELECT COUNT(*) FROM licenses WHERE owner_id = $1`, ownerID).Scan(&count)
	return count, err
}

// UpdateLicense 更新授权
func (s *Store) UpdateLicense(license *domain.License) error {
	tag, err := s.pool.Exec(s.ctx, `
		UPDATE licenses
		SET phone_number = $1, expired_at = $2, updated_at = $3
		WHERE id = $4
	`, license.PhoneNumber, license.ExpiredAt, time.Now().UTC(), license.ID)
	if isDuplicateErr(err) {
		return storage.ErrLicenseExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrLicenseNotFound
	}
	return nil
}

// DeleteLicense 删除授权
func (s *Store) DeleteLicense(id string) error {
	tag, err := s.pool.Exec(s.ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrLicenseNotFound
	}
	return nil
}

// DeleteLicensesByOwner 删除指定所有者的全部授权，返回删除数量
func (s *Store) DeleteLicensesByOwner(ownerID string) (int, error) {
	tag, err := s.pool.Exec(s.ctx, `DELETE FROM licenses WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanLicense(row pgx.Row) (*domain.License, error) {
	var license domain.License
	err := row.Scan(
		&license.ID,
		&license.OwnerID,
		&license.Code,
		&license.PhoneNumber,
		&license.ExpiredAt,
		&license.CreatedAt,
		&license.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func collectLicenses(rows pgx.Rows) ([]domain.License, error) {
	defer rows.Close()
	licenses := make([]domain.License, 0)
	for rows.Next() {
		var license domain.License
		err := rows.Scan(
			&license.ID,
			&license.OwnerID,
			&license.Code,
			&license.PhoneNumber,
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

// buildLicenseWhere 按过滤条件构建 WHERE 子句，identCol 为标识列名
func buildLicenseWhere(filter storage.LicenseFilter, identCol string) (string, []interface{}, func() string) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}

	if filter.OwnerID != "" {
		where += " AND owner_id = " + next()
		args = append(args, filter.OwnerID)
	}
	if filter.Search != "" {
		where += " AND " + identCol + " LIKE " + next()
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Expired != nil {
		if *filter.Expired {
			where += " AND expired_at <= " + next()
		} else {
			where += " AND expired_at > " + next()
		}
		args = append(args, time.Now().UTC())
	}

	return where, args, next
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return page, pageSize
}

// ========== Shop License Repository ==========

const shopLicenseColumns = `id, owner_id, code, shop_id, expired_at, created_at, updated_at`

// SaveShopLicense 保存店铺授权，(所有者, 店铺) 冲突时返回 ErrShopLicenseExists
func (s *Store) SaveShopLicense(license *domain.ShopLicense) error {
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO shop_licenses (id, owner_id, code, shop_id, expired_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, license.ID, license.OwnerID, license.Code, license.ShopID,
		license.ExpiredAt, license.CreatedAt, license.UpdatedAt)
	if isDuplicateErr(err) {
		return storage.ErrShopLicenseExists
	}
	return err
}

// GetShopLicense 根据ID获取店铺授权
func (s *Store) GetShopLicense(id string) (*domain.ShopLicense, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+shopLicenseColumns+` FROM shop_licenses WHERE id = $1`, id)
	return scanShopLicense(row)
}

// GetShopLicenseByCode 根据授权码获取店铺授权
func (s *Store) GetShopLicenseByCode(code string) (*domain.ShopLicense, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+shopLicenseColumns+` FROM shop_licenses WHERE code = $1`, code)
	return scanShopLicense(row)
}

// GetShopLicenseByOwnerAndShop 获取所有者名下指定店铺的授权
func (s *Store) GetShopLicenseByOwnerAndShop(ownerID, shopID string) (*domain.ShopLicense, error) {
	row := s.pool.QueryRow(s.ctx,
		`SELECT `+shopLicenseColumns+` FROM shop_licenses WHERE owner_id = $1 AND shop_id = $2`, ownerID, shopID)
	return scanShopLicense(row)
}

// GetShopLicenseByCodeAndShop 根据授权码和店铺ID获取店铺授权（验证路径）
func (s *Store) GetShopLicenseByCodeAndShop(code, shopID string) (*domain.ShopLicense, error) {
	row := s.pool.QueryRow(s.ctx,
		`SELECT `+shopLicenseColumns+` FROM shop_licenses WHERE code = $1 AND shop_id = $2`, code, shopID)
	return scanShopLicense(row)
}

// ListShopLicensesByOwner 列出指定所有者的全部店铺授权
func (s *Store) ListShopLicensesByOwner(ownerID string) ([]domain.ShopLicense, error) {
	rows, err := s.pool.Query(s.ctx,
		`SELECT `+shopLicenseColumns+` FROM shop_licenses WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	return collectShopLicenses(rows)
}

// ListAllShopLicenses 列出全部店铺授权
func (s *Store) ListAllShopLicenses() ([]domain.ShopLicense, error) {
	rows, err := s.pool.Query(s.ctx,
		`SELECT `+shopLicenseColumns+` FROM shop_licenses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectShopLicenses(rows)
}

// ListShopLicenses 按条件分页列出店铺授权
func (s *Store) ListShopLicenses(filter storage.LicenseFilter) ([]domain.ShopLicense, int, error) {
	where, args, next := buildLicenseWhere(filter, "shop_id")

	var total int
	if err := s.pool.QueryRow(s.ctx, "SELECT COUNT(*) FROM shop_licenses "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := `SELECT ` + shopLicenseColumns + ` FROM shop_licenses ` + where +
		` ORDER BY created_at DESC LIMIT ` + next() + ` OFFSET ` + next()
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.pool.Query(s.ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectShopLicenses(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateShopLicense 更新店铺授权（支持变更店铺ID）
func (s *Store) UpdateShopLicense(license *domain.ShopLicense) error {
	tag, err := s.pool.Exec(s.ctx, `
		UPDATE shop_licenses
		SET shop_id = $1, expired_at = $2, updated_at = $3
		WHERE id = $4
	`, license.ShopID, license.ExpiredAt, time.Now().UTC(), license.ID)
	if isDuplicateErr(err) {
		return storage.ErrShopLicenseExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrShopLicenseNotFound
	}
	return nil
}

// DeleteShopLicense 删除店铺授权
func (s *Store) DeleteShopLicense(id string) error {
	tag, err := s.pool.Exec(s.ctx, `DELETE FROM shop_licenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrShopLicenseNotFound
	}
	return nil
}

// DeleteShopLicensesByOwner 删除指定所有者的全部店铺授权，返回删除数量
func (s *Store) DeleteShopLicensesByOwner(ownerID string) (int, error) {
	tag, err := s.pool.Exec(s.ctx, `DELETE FROM shop_licenses WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanShopLicense(row pgx.Row) (*domain.ShopLicense, error) {
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
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrShopLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func collectShopLicenses(rows pgx.Rows) ([]domain.ShopLicense, error) {
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
