package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-characters"

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewManager(testSecret, "licensehub", 15*time.Minute, 7*24*time.Hour)

	pair, err := manager.GenerateTokenPair("user-1", "alice", "user")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	t.Run("验证访问令牌", func(t *testing.T) {
		claims, err := manager.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, "user", claims.Role)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("访问令牌与刷新令牌携带不同的jti", func(t *testing.T) {
		access, err := manager.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		refresh, err := manager.ValidateToken(pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, access.ID, refresh.ID)
	})

	t.Run("篡改的令牌验证失败", func(t *testing.T) {
		_, err := manager.ValidateToken(pair.AccessToken + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("错误密钥签发的令牌验证失败", func(t *testing.T) {
		other := NewManager("another-secret-key-with-enough-length", "licensehub", time.Minute, time.Hour)
		otherPair, err := other.GenerateTokenPair("user-1", "alice", "user")
		require.NoError(t, err)

		_, err = manager.ValidateToken(otherPair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestExpiredToken(t *testing.T) {
	manager := NewManager(testSecret, "licensehub", -time.Minute, time.Hour)

	pair, err := manager.GenerateTokenPair("user-1", "alice", "user")
	require.NoError(t, err)

	_, err = manager.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRefreshAccessToken(t *testing.T) {
	manager := NewManager(testSecret, "licensehub", 15*time.Minute, 7*24*time.Hour)

	pair, err := manager.GenerateTokenPair("user-1", "alice", "super")
	require.NoError(t, err)

	newAccess, err := manager.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)

	claims, err := manager.ValidateToken(newAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "super", claims.Role)
}

func TestExtractUserID(t *testing.T) {
	manager := NewManager(testSecret, "licensehub", -time.Minute, time.Hour)

	// 已过期的令牌也能提取用户ID
	pair, err := manager.GenerateTokenPair("user-42", "bob", "user")
	require.NoError(t, err)

	userID, err := manager.ExtractUserID(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}
