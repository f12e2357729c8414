package sql

import (
	"database/sql"
	"errors"
	"time"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// ========== API Key Repository ==========

// SaveAPIKey 保存API Key（存在则更新令牌）
func (s *Store) SaveAPIKey(apiKey *domain.APIKey) error {
	// 先尝试更新该用户已有的记录
	updateQuery := s.rebind(`UPDATE api_keys SET ` + "`key`" + ` = ? WHERE user_id = ?`)
	if s.driverName == "postgres" {
		updateQuery = s.rebind(`UPDATE api_keys SET "key" = ? WHERE user_id = ?`)
	}
	result, err := s.db.Exec(updateQuery, apiKey.Key, apiKey.UserID)
	if isDuplicateErr(err) {
		return storage.ErrAPIKeyExists
	}
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
		INSERT INTO api_keys (id, user_id, ` + "`key`" + `, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if s.driverName == "postgres" {
		insertQuery = s.rebind(`
			INSERT INTO api_keys (id, user_id, "key", created_at)
			VALUES (?, ?, ?, ?)
		`)
	}
	_, err = s.db.Exec(insertQuery, apiKey.ID, apiKey.UserID, apiKey.Key, apiKey.CreatedAt)
	if isDuplicateErr(err) {
		return storage.ErrAPIKeyExists
	}
	return err
}

// GetAPIKeyByUserID 获取用户的API Key
func (s *Store) GetAPIKeyByUserID(userID string) (*domain.APIKey, error) {
	query := s.rebind(s.apiKeySelect() + ` WHERE user_id = ?`)
	return s.scanAPIKey(s.db.QueryRow(query, userID))
}

// GetAPIKeyByKey 根据令牌字符串获取API Key
func (s *Store) GetAPIKeyByKey(key string) (*domain.APIKey, error) {
	query := s.rebind(s.apiKeySelect() + ` WHERE ` + s.keyColumn() + ` = ?`)
	return s.scanAPIKey(s.db.QueryRow(query, key))
}

// UpdateAPIKeyLastUsed 更新API Key最后使用时间
func (s *Store) UpdateAPIKeyLastUsed(id string) error {
	query := s.rebind(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`)
	result, err := s.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrAPIKeyNotFound)
}

// DeleteAPIKeyByUserID 删除用户的API Key
func (s *Store) DeleteAPIKeyByUserID(userID string) error {
	query := s.rebind(`DELETE FROM api_keys WHERE user_id = ?`)
	result, err := s.db.Exec(query, userID)
	if err != nil {
		return err
	}
	return requireAffected(result, storage.ErrAPIKeyNotFound)
}

// apiKeySelect 生成API Key查询语句（key 是保留字，需按方言转义）
func (s *Store) apiKeySelect() string {
	return `SELECT id, user_id, ` + s.keyColumn() + `, created_at, last_used_at FROM api_keys`
}

// keyColumn 返回按方言转义后的 key 列名
func (s *Store) keyColumn() string {
	if s.driverName == "postgres" {
		return `"key"`
	}
	return "`key`"
}

// scanAPIKey 扫描单行API Key记录
func (s *Store) scanAPIKey(row *sql.Row) (*domain.APIKey, error) {
	var apiKey domain.APIKey
	var lastUsedAt sql.NullTime

	err := row.Scan(
		&apiKey.ID,
		&apiKey.UserID,
		&apiKey.Key,
		&apiKey.CreatedAt,
		&lastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastUsedAt.Valid {
		apiKey.LastUsedAt = &lastUsedAt.Time
	}

	return &apiKey, nil
}
