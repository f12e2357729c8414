package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== Catalog Repository ==========

const packageColumns = `id, name, days, price, is_active, sort_order, created_at, updated_at`

// SavePackage 保存续费套餐（存在则更新）
func (s *Store) SavePackage(pkg *domain.ExtensionPackage) error {
	now := time.Now().UTC()
	if pkg.CreatedAt.IsZero() {
		pkg.CreatedAt = now
	}
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO extension_packages (id, name, days, price, is_active, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, days = EXCLUDED.days, price = EXCLUDED.price,
			is_active = EXCLUDED.is_active, sort_order = EXCLUDED.sort_order,
			updated_at = EXCLUDED.updated_at
	`, pkg.ID, pkg.Name, pkg.Days, pkg.Price, pkg.IsActive, pkg.SortOrder, pkg.CreatedAt, now)
	return err
}

// GetPackage 根据ID获取续费套餐
func (s *Store) GetPackage(id string) (*domain.ExtensionPackage, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+packageColumns+` FROM extension_packages WHERE id = $1`, id)
	var pkg domain.ExtensionPackage
	err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Days, &pkg.Price,
		&pkg.IsActive, &pkg.SortOrder, &pkg.CreatedAt, &pkg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrPackageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ListPackages 列出续费套餐，按排序权重和天数升序
func (s *Store) ListPackages(activeOnly bool) ([]domain.ExtensionPackage, error) {
	query := `SELECT ` + packageColumns + ` FROM extension_packages`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY sort_order ASC, days ASC`

	rows, err := s.pool.Query(s.ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]domain.ExtensionPackage, 0)
	for rows.Next() {
		var pkg domain.ExtensionPackage
		err := rows.Scan(&pkg.ID, &pkg.Name, &pkg.Days, &pkg.Price,
			&pkg.IsActive, &pkg.SortOrder, &pkg.CreatedAt, &pkg.UpdatedAt)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// DeletePackage 删除续费套餐
func (s *Store) DeletePackage(id string) error {
	tag, err := s.pool.Exec(s.ctx, `DELETE FROM extension_packages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPackageNotFound
	}
	return nil
}

const paymentColumns = `id, bank_name, account_number, account_holder, transfer_note, is_active, created_at, updated_at`

// SavePaymentInfo 保存收款信息（存在则更新）
func (s *Store) SavePaymentInfo(info *domain.PaymentInfo) error {
	now := time.Now().UTC()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = now
	}
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO payment_infos (id, bank_name, account_number, account_holder, transfer_note, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			bank_name = EXCLUDED.bank_name, account_number = EXCLUDED.account_number,
			account_holder = EXCLUDED.account_holder, transfer_note = EXCLUDED.transfer_note,
			is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
	`, info.ID, info.BankName, info.AccountNumber, info.AccountHolder,
		info.TransferNote, info.IsActive, info.CreatedAt, now)
	return err
}

// GetActivePaymentInfo 获取当前启用的收款信息，取最近更新的一条
func (s *Store) GetActivePaymentInfo() (*domain.PaymentInfo, error) {
	row := s.pool.QueryRow(s.ctx, `
		SELECT `+paymentColumns+` FROM payment_infos
		WHERE is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`)
	var info domain.PaymentInfo
	err := row.Scan(&info.ID, &info.BankName, &info.AccountNumber, &info.AccountHolder,
		&info.TransferNote, &info.IsActive, &info.CreatedAt, &info.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrPaymentInfoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListPaymentInfos 列出全部收款信息
func (s *Store) ListPaymentInfos() ([]domain.PaymentInfo, error) {
	rows, err := s.pool.Query(s.ctx,
		`SELECT `+paymentColumns+` FROM payment_infos ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := make([]domain.PaymentInfo, 0)
	for rows.Next() {
		var info domain.PaymentInfo
		err := rows.Scan(&info.ID, &info.BankName, &info.AccountNumber, &info.AccountHolder,
			&info.TransferNote, &info.IsActive, &info.CreatedAt, &info.UpdatedAt)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeletePaymentInfo 删除收款信息
func (s *Store) DeletePaymentInfo(id string) error {
	tag, err := s.pool.Exec(s.ctx, `DELETE FROM payment_infos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPaymentInfoNotFound
	}
	return nil
}
