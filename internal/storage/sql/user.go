package sql

import (
	"database/sql"
	"errors"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	query := s.rebind(`
		INSERT INTO users (id, username, password_hash, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isDuplicateErr(err) {
		return storage.ErrUsernameExists
	}
	return err
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	query := s.rebind(`
		SELECT id, username, password_hash, role, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE id = ?
	`)
	return s.scanUser(s.db.QueryRow(query, id))
}

// GetUserByUsername 根据用户名获取用户（不区分大小写）
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	query := s.rebind(`
		SELECT id, username, password_hash, role, is_active, created_at, updated_at, last_login_at
		FROM users
		WHERE lower(username) = lower(?)
	`)
	return s.scanUser(s.db.QueryRow(query, username))
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	query := s.rebind(`
		UPDATE users
		SET username = ?, password_hash = ?, role = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := s.db.Exec(query,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		time.Now().UTC(),
		user.ID,
	)
	if isDuplicateErr(err) {
		return storage.ErrUsernameExists
	}
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrUserNotFound)
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	query := s.rebind(`UPDATE users SET last_login_at = ? WHERE id = ?`)
	result, err := s.db.Exec(query, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrUserNotFound)
}

// ListUsers 列出用户（支持分页和过滤）
func (s *Store) ListUsers(page, pageSize int, search string, role *domain.UserRole, isActive *bool) ([]domain.User, int, error) {
	// 构建查询条件
	where := "WHERE 1=1"
	args := []interface{}{}

	if search != "" {
		where += " AND username LIKE ?"
		args = append(args, "%"+search+"%")
	}

	if role != nil {
		where += " AND role = ?"
		args = append(args, *role)
	}

	if isActive != nil {
		where += " AND is_active = ?"
		args = append(args, *isActive)
	}

	// 获取总数
	countQuery := s.rebind("SELECT COUNT(*) FROM users " + where)
	var total int
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// 获取用户列表
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	query := s.rebind(`
		SELECT id, username, password_hash, role, is_active, created_at, updated_at, last_login_at
		FROM users
	` + where + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`)

	args = append(args, pageSize, offset)
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		var lastLoginAt sql.NullTime

		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.Role,
			&user.IsActive,
			&user.CreatedAt,
			&user.UpdatedAt,
			&lastLoginAt,
		)
		if err != nil {
			return nil, 0, err
		}

		if lastLoginAt.Valid {
			user.LastLoginAt = &lastLoginAt.Time
		}

		users = append(users, user)
	}

	return users, total, rows.Err()
}

// DeleteUser 删除用户，并级联删除名下授权与 API Key
func (s *Store) DeleteUser(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.Exec(s.rebind(`DELETE FROM users WHERE id = ?`), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}

	if _, err := tx.Exec(s.rebind(`DELETE FROM api_keys WHERE user_id = ?`), userID); err != nil {
		return err
	}
	if _, err := tx.Exec(s.rebind(`DELETE FROM licenses WHERE owner_id = ?`), userID); err != nil {
		return err
	}
	if _, err := tx.Exec(s.rebind(`DELETE FROM shop_licenses WHERE owner_id = ?`), userID); err != nil {
		return err
	}

	return tx.Commit()
}

// scanUser 扫描单行用户记录
func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return &user, nil
}

// requireAffected 将零行更新转换为指定的未找到错误
func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
