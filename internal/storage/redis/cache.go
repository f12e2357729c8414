package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"licensehub/backend/internal/domain"
)

// Cache Redis 缓存实现
//
// 主要服务两条热路径：验证接口的授权查找，以及 API Key 认证。
// 同时承载 JWT 黑名单和限流计数这两类天然带 TTL 的数据。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 授权缓存（验证路径） ==========

// CacheLicense 按授权码缓存手机号授权
func (c *Cache) CacheLicense(license *domain.License, ttl time.Duration) error {
	key := fmt.Sprintf("license:code:%s", license.Code)
	data, err := json.Marshal(license)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedLicense 按授权码获取缓存的手机号授权
func (c *Cache) GetCachedLicense(code string) (*domain.License, error) {
	key := fmt.Sprintf("license:code:%s", code)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("license not found in cache")
		}
		return nil, err
	}

	var license domain.License
	if err := json.Unmarshal([]byte(data), &license); err != nil {
		return nil, err
	}

	return &license, nil
}

// DeleteCachedLicense 删除缓存的手机号授权
func (c *Cache) DeleteCachedLicense(code string) error {
	key := fmt.Sprintf("license:code:%s", code)
	return c.client.Del(c.ctx, key).Err()
}

// CacheShopLicense 按授权码缓存店铺授权
func (c *Cache) CacheShopLicense(license *domain.ShopLicense, ttl time.Duration) error {
	key := fmt.Sprintf("shop_license:code:%s", license.Code)
	data, err := json.Marshal(license)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedShopLicense 按授权码获取缓存的店铺授权
func (c *Cache) GetCachedShopLicense(code string) (*domain.ShopLicense, error) {
	key := fmt.Sprintf("shop_license:code:%s", code)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("shop license not found in cache")
		}
		return nil, err
	}

	var license domain.ShopLicense
	if err := json.Unmarshal([]byte(data), &license); err != nil {
		return nil, err
	}

	return &license, nil
}

// DeleteCachedShopLicense 删除缓存的店铺授权
func (c *Cache) DeleteCachedShopLicense(code string) error {
	key := fmt.Sprintf("shop_license:code:%s", code)
	return c.client.Del(c.ctx, key).Err()
}

// ========== API Key 缓存 ==========

// CacheAPIKeyUser 缓存API Key到用户ID的映射
func (c *Cache) CacheAPIKeyUser(apiKey, userID string, ttl time.Duration) error {
	key := fmt.Sprintf("apikey:user:%s", apiKey)
	return c.client.Set(c.ctx, key, userID, ttl).Err()
}

// GetCachedAPIKeyUser 获取缓存的API Key用户映射
func (c *Cache) GetCachedAPIKeyUser(apiKey string) (string, error) {
	key := fmt.Sprintf("apikey:user:%s", apiKey)
	userID, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("api key user mapping not found in cache")
		}
		return "", err
	}
	return userID, nil
}

// DeleteCachedAPIKeyUser 删除缓存的API Key用户映射
func (c *Cache) DeleteCachedAPIKeyUser(apiKey string) error {
	key := fmt.Sprintf("apikey:user:%s", apiKey)
	return c.client.Del(c.ctx, key).Err()
}

// ========== JWT 黑名单 ==========

// AddToBlacklist 将 JWT 添加到黑名单
func (c *Cache) AddToBlacklist(jti string, ttl time.Duration) error {
	key := fmt.Sprintf("blacklist:%s", jti)
	return c.client.Set(c.ctx, key, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT 是否在黑名单中
func (c *Cache) IsBlacklisted(jti string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", jti)
	_, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ========== 限流缓存 ==========

// IncrementRateLimit 增加限流计数
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()

	// 增加计数
	incr := pipe.Incr(c.ctx, key)

	// 设置过期时间（如果是新键）
	pipe.Expire(c.ctx, key, window)

	_, err := pipe.Exec(c.ctx)
	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

// GetRateLimit 获取限流计数
func (c *Cache) GetRateLimit(key string) (int64, error) {
	count, err := c.client.Get(c.ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// ========== 工具方法 ==========

// Delete 删除键
func (c *Cache) Delete(key string) error {
	return c.client.Del(c.ctx, key).Err()
}

// Exists 检查键是否存在
func (c *Cache) Exists(key string) (bool, error) {
	count, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Health 检查 Redis 连接状态
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
