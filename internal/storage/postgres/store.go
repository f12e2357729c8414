package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"licensehub/backend/internal/config"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// Store PostgreSQL 原生存储实现（基于 pgx 连接池）
type Store struct {
	pool *pgxpool.Pool
	ctx  context.Context

	// JWT 黑名单与限流在未接 Redis 时退化为进程内实现
	mu         sync.Mutex
	blacklist  map[string]time.Time
	rateLimits map[string]*rateLimitEntry
}

// rateLimitEntry 进程内限流条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	store := &Store{
		pool:       client.Pool(),
		ctx:        context.Background(),
		blacklist:  make(map[string]time.Time),
		rateLimits: make(map[string]*rateLimitEntry),
	}

	if err := store.initSchema(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema 创建数据库表结构
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR(36) PRIMARY KEY,
		username      VARCHAR(100) NOT NULL,
		password_hash VARCHAR(255) NOT NULL DEFAULT '',
		role          VARCHAR(20) NOT NULL DEFAULT 'user',
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		last_login_at TIMESTAMPTZ
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (lower(username));

	CREATE TABLE IF NOT EXISTS api_keys (
		id           VARCHAR(36) PRIMARY KEY,
		user_id      VARCHAR(36) NOT NULL UNIQUE,
		key          VARCHAR(64) NOT NULL UNIQUE,
		created_at   TIMESTAMPTZ NOT NULL,
		last_used_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS licenses (
		id           VARCHAR(36) PRIMARY KEY,
		owner_id     VARCHAR(36) NOT NULL,
		code         VARCHAR(36) NOT NULL UNIQUE,
		phone_number VARCHAR(20) NOT NULL UNIQUE,
		expired_at   TIMESTAMPTZ NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_licenses_owner ON licenses (owner_id);

	CREATE TABLE IF NOT EXISTS shop_licenses (
		id         VARCHAR(36) PRIMARY KEY,
		owner_id   VARCHAR(36) NOT NULL,
		code       VARCHAR(36) NOT NULL UNIQUE,
		shop_id    VARCHAR(200) NOT NULL,
		expired_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (owner_id, shop_id)
	);

	CREATE TABLE IF NOT EXISTS extension_packages (
		id         VARCHAR(36) PRIMARY KEY,
		name       VARCHAR(100) NOT NULL,
		days       INTEGER NOT NULL,
		price      BIGINT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_infos (
		id             VARCHAR(36) PRIMARY KEY,
		bank_name      VARCHAR(100) NOT NULL,
		account_number VARCHAR(50) NOT NULL,
		account_holder VARCHAR(100) NOT NULL,
		transfer_note  VARCHAR(255) NOT NULL DEFAULT '',
		is_active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	);
	`
	_, err := s.pool.Exec(s.ctx, schema)
	return err
}

// Close 关闭数据库连接池
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// isDuplicateErr 判断是否为唯一约束冲突（SQLSTATE 23505）
func isDuplicateErr(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO users (id, username, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Username, user.PasswordHash, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if isDuplicateErr(err) {
		return storage.ErrUsernameExists
	}
	return err
}

const userColumns = `id, username, password_hash, role, is_active, created_at, updated_at, last_login_at`

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByUsername 根据用户名获取用户（不区分大小写）
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	row := s.pool.QueryRow(s.ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
	return scanUser(row)
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	tag, err := s.pool.Exec(s.ctx, `
		UPDATE users
		SET username = $1, password_hash = $2, role = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, user.Username, user.PasswordHash, user.Role, user.IsActive, time.Now().UTC(), user.ID)
	if isDuplicateErr(err) {
		return storage.ErrUsernameExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	tag, err := s.pool.Exec(s.ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// ListUsers 列出用户（支持分页和过滤）
func (s *Store) ListUsers(page, pageSize int, search string, role *domain.UserRole, isActive *bool) ([]domain.User, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0

	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}

	if search != "" {
		where += " AND username LIKE " + next()
		args = append(args, "%"+search+"%")
	}
	if role != nil {
		where += " AND role = " + next()
		args = append(args, *role)
	}
	if isActive != nil {
		where += " AND is_active = " + next()
		args = append(args, *isActive)
	}

	var total int
	if err := s.pool.QueryRow(s.ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	query := `SELECT ` + userColumns + ` FROM users ` + where +
		` ORDER BY created_at DESC LIMIT ` + next() + ` OFFSET ` + next()
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.pool.Query(s.ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// DeleteUser 删除用户，并级联删除名下授权与 API Key
func (s *Store) DeleteUser(userID string) error {
	tx, err := s.pool.Begin(s.ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(s.ctx)

	tag, err := tx.Exec(s.ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	if _, err := tx.Exec(s.ctx, `DELETE FROM api_keys WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(s.ctx, `DELETE FROM licenses WHERE owner_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(s.ctx, `DELETE FROM shop_licenses WHERE owner_id = $1`, userID); err != nil {
		return err
	}

	return tx.Commit(s.ctx)
}

// scanUser 扫描单行用户记录
func scanUser(row pgx.Row) (*domain.User, error) {
	user, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	return user, err
}

func scanUserRow(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ========== API Key Repository ==========

// SaveAPIKey 保存API Key（存在则更新令牌）
func (s *Store) SaveAPIKey(apiKey *domain.APIKey) error {
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO api_keys (id, user_id, key, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET key = EXCLUDED.key
	`, apiKey.ID, apiKey.UserID, apiKey.Key, apiKey.CreatedAt)
	if isDuplicateErr(err) {
		return storage.ErrAPIKeyExists
	}
	return err
}

// GetAPIKeyByUserID 获取用户的API Key
func (s *Store) GetAPIKeyByUserID(userID string) (*domain.APIKey, error) {
	row := s.pool.QueryRow(s.ctx, `
		SELECT id, user_id, key, created_at, last_used_at FROM api_keys WHERE user_id = $1
	`, userID)
	return scanAPIKey(row)
}

// GetAPIKeyByKey 根据令牌字符串获取API Key
func (s *Store) GetAPIKeyByKey(key string) (*domain.APIKey, error) {
	row := s.pool.QueryRow(s.ctx, `
		SELECT id, user_id, key, created_at, last_used_at FROM api_keys WHERE key = $1
	`, key)
	return scanAPIKey(row)
}

// UpdateAPIKeyLastUsed 更新API Key最后使用时间
func (s *Store) UpdateAPIKeyLastUsed(id string) error {
	tag, err := s.pool.Exec(s.ctx, `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAPIKeyNotFound
	}
	return nil
}

// DeleteAPIKeyByUserID 删除用户的API Key
func (s *Store) DeleteAPIKeyByUserID(userID string) error {
	tag, err := s.pool.Exec(s.ctx, `DELETE FROM api_keys WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAPIKeyNotFound
	}
	return nil
}

// scanAPIKey 扫描单行API Key记录
func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	var apiKey domain.APIKey
	err := row.Scan(
		&apiKey.ID,
		&apiKey.UserID,
		&apiKey.Key,
		&apiKey.CreatedAt,
		&apiKey.LastUsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &apiKey, nil
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
