package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"LICENSES_JWT_SECRET",
		"LICENSES_SERVER_HOST",
		"LICENSES_SERVER_PORT",
		"LICENSES_LICENSE_MAX_BATCH",
		"LICENSES_LICENSE_QUOTA_ENABLED",
		"LICENSES_LICENSE_QUOTA_VALIDITY",
		"LICENSES_LICENSE_EXTEND_POLICY",
		"LICENSES_LICENSE_OPEN_VERIFY",
		"LICENSES_CORS_ALLOWED_ORIGINS",
		"LICENSES_LOG_LEVEL",
		"LICENSES_DATABASE_TYPE",
		"LICENSES_REDIS_ADDRESS",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
		os.Setenv("LICENSES_JWT_SECRET", "test-secret-key-for-development-32-chars-long")
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 1000, cfg.License.MaxBatch)
		assert.False(t, cfg.License.QuotaEnabled)
		assert.Equal(t, 24*time.Hour, cfg.License.QuotaValidity)
		assert.Equal(t, ExtendPolicyAdditive, cfg.License.ExtendPolicy)
		assert.True(t, cfg.License.OpenVerify)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, "localhost:6379", cfg.Redis.Address)
		assert.Equal(t, "licensehub", cfg.JWT.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiry)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv()
		os.Setenv("LICENSES_SERVER_HOST", "127.0.0.1")
		os.Setenv("LICENSES_SERVER_PORT", "9090")
		os.Setenv("LICENSES_LICENSE_MAX_BATCH", "50")
		os.Setenv("LICENSES_LICENSE_QUOTA_ENABLED", "true")
		os.Setenv("LICENSES_LICENSE_QUOTA_VALIDITY", "48h")
		os.Setenv("LICENSES_LICENSE_EXTEND_POLICY", "overwrite")
		os.Setenv("LICENSES_LICENSE_OPEN_VERIFY", "false")
		os.Setenv("LICENSES_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 50, cfg.License.MaxBatch)
		assert.True(t, cfg.License.QuotaEnabled)
		assert.Equal(t, 48*time.Hour, cfg.License.QuotaValidity)
		assert.Equal(t, ExtendPolicyOverwrite, cfg.License.ExtendPolicy)
		assert.False(t, cfg.License.OpenVerify)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("缺少JWT密钥时报错", func(t *testing.T) {
		clearEnv()
		os.Unsetenv("LICENSES_JWT_SECRET")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("JWT密钥过短时报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("LICENSES_JWT_SECRET", "too-short")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法续期策略报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("LICENSES_LICENSE_EXTEND_POLICY", "bogus")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法配额有效期报错", func(t *testing.T) {
		clearEnv()
		os.Setenv("LICENSES_LICENSE_QUOTA_VALIDITY", "not-a-duration")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("批量上限非正时回退默认值", func(t *testing.T) {
		clearEnv()
		os.Setenv("LICENSES_LICENSE_MAX_BATCH", "-5")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 1000, cfg.License.MaxBatch)
	})
}
