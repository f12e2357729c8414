package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage/memory"
)

func TestEnsureAPIKey(t *testing.T) {
	store := memory.NewStore()
	svc := NewAPIKeyService(store, zap.NewNop())
	user := seedUser(t, store, "key-user", domain.RoleUser)

	t.Run("首次调用补发密钥", func(t *testing.T) {
		apiKey, err := svc.EnsureAPIKey(user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, apiKey.UserID)
		assert.Len(t, apiKey.Key, 48)
		assert.Nil(t, apiKey.LastUsedAt)
	})

	t.Run("重复调用幂等", func(t *testing.T) {
		first, err := svc.EnsureAPIKey(user.ID)
		require.NoError(t, err)
		second, err := svc.EnsureAPIKey(user.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Key, second.Key)
	})

	t.Run("用户不存在时拒绝", func(t *testing.T) {
		_, err := svc.EnsureAPIKey("missing-user")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestValidateAPIKey(t *testing.T) {
	store := memory.NewStore()
	svc := NewAPIKeyService(store, zap.NewNop())
	user := seedUser(t, store, "val-user", domain.RoleUser)

	apiKey, err := svc.EnsureAPIKey(user.ID)
	require.NoError(t, err)

	t.Run("验证成功并刷新最后使用时间", func(t *testing.T) {
		got, err := svc.ValidateAPIKey(apiKey.Key)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		stored, err := store.GetAPIKeyByUserID(user.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastUsedAt)
	})

	t.Run("空密钥被拒绝", func(t *testing.T) {
		_, err := svc.ValidateAPIKey("")
		assert.ErrorIs(t, err, ErrAPIKeyInvalid)
	})

	t.Run("未知密钥被拒绝", func(t *testing.T) {
		_, err := svc.ValidateAPIKey("unknown-key")
		assert.ErrorIs(t, err, ErrAPIKeyInvalid)
	})

	t.Run("禁用用户的密钥被拒绝", func(t *testing.T) {
		disabled := seedUser(t, store, "val-disabled", domain.RoleUser)
		key, err := svc.EnsureAPIKey(disabled.ID)
		require.NoError(t, err)

		update := *disabled
		update.IsActive = false
		require.NoError(t, store.UpdateUser(&update))

		_, err = svc.ValidateAPIKey(key.Key)
		assert.ErrorIs(t, err, ErrAPIKeyInvalid)
	})
}

func TestRotateAPIKey(t *testing.T) {
	store := memory.NewStore()
	svc := NewAPIKeyService(store, zap.NewNop())
	user := seedUser(t, store, "rot-user", domain.RoleUser)

	original, err := svc.EnsureAPIKey(user.ID)
	require.NoError(t, err)

	rotated, err := svc.RotateAPIKey(user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, original.Key, rotated.Key)

	// 旧密钥立即失效
	_, err = svc.ValidateAPIKey(original.Key)
	assert.ErrorIs(t, err, ErrAPIKeyInvalid)

	// 新密钥可用
	got, err := svc.ValidateAPIKey(rotated.Key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}
