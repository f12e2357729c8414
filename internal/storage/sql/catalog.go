package sql

import (
	"database/sql"
	"errors"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== Catalog Repository ==========

// SavePackage 保存续费套餐（存在则更新）
func (s *Store) SavePackage(pkg *domain.ExtensionPackage) error {
	updateQuery := s.rebind(`
		UPDATE extension_packages
		SET name = ?, days = ?, price = ?, is_active = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`)
	now := time.Now().UTC()
	result, err := s.db.Exec(updateQuery,
		pkg.Name, pkg.Days, pkg.Price, pkg.IsActive, pkg.SortOrder, now, pkg.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	insertQuery := s.rebind(`
		INSERT INTO extension_packages (id, name, days, price, is_active, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	_, err = s.db.Exec(insertQuery,
		pkg.ID, pkg.Name, pkg.Days, pkg.Price, pkg.IsActive, pkg.SortOrder, pkg.CreatedAt, now,
	)
	return err
}

// GetPackage 根据ID获取续费套餐
func (s *Store) GetPackage(id string) (*domain.ExtensionPackage, error) {
	query := s.rebind(`
		SELECT id, name, days, price, is_active, sort_order, created_at, updated_at
		FROM extension_packages
		WHERE id = ?
	`)
	var pkg domain.ExtensionPackage
	err := s.db.QueryRow(query, id).Scan(
		&pkg.ID, &pkg.Name, &pkg.Days, &pkg.Price,
		&pkg.IsActive, &pkg.SortOrder, &pkg.CreatedAt, &pkg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrPackageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ListPackages 列出续费套餐，按排序权重和天数升序
func (s *Store) ListPackages(activeOnly bool) ([]domain.ExtensionPackage, error) {
	query := `
		SELECT id, name, days, price, is_active, sort_order, created_at, updated_at
		FROM extension_packages
	`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY sort_order ASC, days ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]domain.ExtensionPackage, 0)
	for rows.Next() {
		var pkg domain.ExtensionPackage
		err := rows.Scan(
			&pkg.ID, &pkg.Name, &pkg.Days, &pkg.Price,
			&pkg.IsActive, &pkg.SortOrder, &pkg.CreatedAt, &pkg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// DeletePackage 删除续费套餐
func (s *Store) DeletePackage(id string) error {
	query := s.rebind(`DELETE FROM extension_packages WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrPackageNotFound)
}

// SavePaymentInfo 保存收款信息（存在则更新）
func (s *Store) SavePaymentInfo(info *domain.PaymentInfo) error {
	updateQuery := s.rebind(`
		UPDATE payment_infos
		SET bank_name = ?, account_number = ?, account_holder = ?, transfer_note = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)
	now := time.Now().UTC()
	result, err := s.db.Exec(updateQuery,
		info.BankName, info.AccountNumber, info.AccountHolder,
		info.TransferNote, info.IsActive, now, info.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	insertQuery := s.rebind(`
		INSERT INTO payment_infos (id, bank_name, account_number, account_holder, transfer_note, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if info.CreatedAt.IsZero() {
		info.CreatedAt = now
	}
	_, err = s.db.Exec(insertQuery,
		info.ID, info.BankName, info.AccountNumber, info.AccountHolder,
		info.TransferNote, info.IsActive, info.CreatedAt, now,
	)
	return err
}

// GetActivePaymentInfo 获取当前启用的收款信息，取最近更新的一条
func (s *Store) GetActivePaymentInfo() (*domain.PaymentInfo, error) {
	query := `
		SELECT id, bank_name, account_number, account_holder, transfer_note, is_active, created_at, updated_at
		FROM payment_infos
		WHERE is_active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var info domain.PaymentInfo
	err := s.db.QueryRow(query).Scan(
		&info.ID, &info.BankName, &info.AccountNumber, &info.AccountHolder,
		&info.TransferNote, &info.IsActive, &info.CreatedAt, &info.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrPaymentInfoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListPaymentInfos 列出全部收款信息
func (s *Store) ListPaymentInfos() ([]domain.PaymentInfo, error) {
	query := `
		SELECT id, bank_name, account_number, account_holder, transfer_note, is_active, created_at, updated_at
		FROM payment_infos
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := make([]domain.PaymentInfo, 0)
	for rows.Next() {
		var info domain.PaymentInfo
		err := rows.Scan(
			&info.ID, &info.BankName, &info.AccountNumber, &info.AccountHolder,
			&info.TransferNote, &info.IsActive, &info.CreatedAt, &info.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeletePaymentInfo 删除收款信息
func (s *Store) DeletePaymentInfo(id string) error {
	query := s.rebind(`DELETE FROM payment_infos WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrPaymentInfoNotFound)
}

// ========== JWT / Rate Limit（进程内退化实现） ==========

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

// IncrementRateLimit 递增限流计数器，窗口过期后重新计数
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
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
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}
