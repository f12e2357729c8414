package sql

import (
	"database/sql"
	"errors"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== License Repository ==========

// SaveLicense 保存手机号授权，手机号冲突时返回 ErrLicenseExists
func (s *Store) SaveLicense(license *domain.License) error {
	query := s.rebind(`
		INSERT INTO licenses (id, owner_id, code, phone_number, expired_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		license.ID,
		license.OwnerID,
		license.Code,
		license.PhoneNumber,
		license.ExpiredAt,
		license.CreatedAt,
		license.UpdatedAt,
	)
	if isDuplicateErr(err) {
		return storage.ErrLicenseExists
	}
	return err
}

// GetLicense 根据ID获取授权
func (s *Store) GetLicense(id string) (*domain.License, error) {
	query := s.rebind(licenseSelect + ` WHERE id = ?`)
	return scanLicense(s.db.QueryRow(query, id))
}

// GetLicenseByCode 根据授权码获取授权
func (s *Store) GetLicenseByCode(code string) (*domain.License, error) {
	query := s.rebind(licenseSelect + ` WHERE code = ?`)
	return scanLicense(s.db.QueryRow(query, code))
}

// GetLicenseByPhone 根据手机号获取授权
func (s *Store) GetLicenseByPhone(phone string) (*domain.License, error) {
	query := s.rebind(licenseSelect + ` WHERE phone_number = ?`)
	return scanLicense(s.db.QueryRow(query, phone))
}

// GetLicenseByCodeAndPhone 根据授权码和手机号获取授权（验证路径）
func (s *Store) GetLicenseByCodeAndPhone(code, phone string) (*domain.License, error) {
	query := s.rebind(licenseSelect + ` WHERE code = ? AND phone_number = ?`)
	return scanLicense(s.db.QueryRow(query, code, phone))
}

// ListLicensesByOwner 列出指定所有者的全部授权
func (s *Store) ListLicensesByOwner(ownerID string) ([]domain.License, error) {
	query := s.rebind(licenseSelect + ` WHERE owner_id = ? ORDER BY created_at DESC`)
	return s.queryLicenses(query, ownerID)
}

// ListAllLicenses 列出全部授权
func (s *Store) ListAllLicenses() ([]domain.License, error) {
	return s.queryLicenses(licenseSelect + ` ORDER BY created_at DESC`)
}

// ListLicenses 按条件分页列出授权
func (s *Store) ListLicenses(filter storage.LicenseFilter) ([]domain.License, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.OwnerID != "" {
		where += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	if filter.Search != "" {
		where += " AND phone_number LIKE ?"
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

	countQuery := s.rebind("SELECT COUNT(*) FROM licenses " + where)
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
	query := s.rebind(licenseSelect + " " + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`)
	args = append(args, pageSize, (page-1)*pageSize)

	items, err := s.queryLicenses(query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountLicensesByOwner 统计指定所有者的授权数量
func (s *Store) CountLicensesByOwner(ownerID string) (int, error) {
	query := s.rebind(`SELECT COUNT(*) FROM licenses WHERE owner_id = ?`)
	var count int
	err := s.db.QueryRow(query, ownerID).Scan(&count)
	return count, err
}

// UpdateLicense 更新授权
func (s *Store) UpdateLicense(license *domain.License) error {
	query := s.rebind(`
		UPDATE licenses
		SET phone_number = ?, expired_at = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := s.db.Exec(query,
		license.PhoneNumber,
		license.ExpiredAt,
		time.Now().UTC(),
		license.ID,
	)
	if isDuplicateErr(err) {
		return storage.ErrLicenseExists
	}
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrLicenseNotFound)
}

// DeleteLicense 删除授权
func (s *Store) DeleteLicense(id string) error {
	query := s.rebind(`DELETE FROM licenses WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrLicenseNotFound)
}

// DeleteLicensesByOwner 删除指定所有者的全部授权，返回删除数量
func (s *Store) DeleteLicensesByOwner(ownerID string) (int, error) {
	query := s.rebind(`DELETE FROM licenses WHERE owner_id = ?`)
	result, err := s.db.Exec(query, ownerID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

const licenseSelect = `SELECT id, owner_id, code, phone_number, expired_at, created_at, updated_at FROM licenses`

// queryLicenses 执行授权列表查询
func (s *Store) queryLicenses(query string, args ...interface{}) ([]domain.License, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
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

// scanLicense 扫描单行授权记录
func scanLicense(row *sql.Row) (*domain.License, error) {
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
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}
