package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage/memory"
)

func TestRegister(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	t.Run("注册成功", func(t *testing.T) {
		user, err := service.Register(RegisterInput{
			Username: "alice",
			Password: "password123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, domain.RoleUser, user.Role)
		assert.True(t, user.IsActive)
		// 密码不以明文存储
		assert.NotEqual(t, "password123", user.PasswordHash)
	})

	t.Run("重复用户名注册失败", func(t *testing.T) {
		_, err := service.Register(RegisterInput{
			Username: "alice",
			Password: "password123",
		})
		assert.ErrorIs(t, err, ErrUsernameExists)
	})

	t.Run("用户名格式校验", func(t *testing.T) {
		_, err := service.Register(RegisterInput{
			Username: "1bad",
			Password: "password123",
		})
		assert.ErrorIs(t, err, ErrInvalidUsername)

		_, err = service.Register(RegisterInput{
			Username: "ab",
			Password: "password123",
		})
		assert.ErrorIs(t, err, ErrInvalidUsername)
	})

	t.Run("密码过短注册失败", func(t *testing.T) {
		_, err := service.Register(RegisterInput{
			Username: "bob",
			Password: "short",
		})
		assert.Error(t, err)
	})

	t.Run("指定角色注册", func(t *testing.T) {
		user, err := service.Register(RegisterInput{
			Username: "admin",
			Password: "password123",
			Role:     domain.RoleSuper,
		})
		require.NoError(t, err)
		assert.True(t, user.IsSuper())
	})
}

func TestLogin(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	registered, err := service.Register(RegisterInput{
		Username: "carol",
		Password: "password123",
	})
	require.NoError(t, err)

	t.Run("登录成功并记录最后登录时间", func(t *testing.T) {
		user, err := service.Login(LoginInput{Username: "carol", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)

		stored, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastLoginAt)
	})

	t.Run("错误密码登录失败", func(t *testing.T) {
		_, err := service.Login(LoginInput{Username: "carol", Password: "wrong-password"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("不存在的用户名登录失败", func(t *testing.T) {
		_, err := service.Login(LoginInput{Username: "nobody", Password: "password123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("禁用账号登录失败", func(t *testing.T) {
		user, err := store.GetUserByID(registered.ID)
		require.NoError(t, err)
		disabled := *user
		disabled.IsActive = false
		require.NoError(t, store.UpdateUser(&disabled))

		_, err = service.Login(LoginInput{Username: "carol", Password: "password123"})
		assert.ErrorIs(t, err, ErrUserInactive)
	})
}

func TestChangePassword(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store)

	user, err := service.Register(RegisterInput{
		Username: "dave",
		Password: "password123",
	})
	require.NoError(t, err)

	t.Run("旧密码错误时拒绝修改", func(t *testing.T) {
		err := service.ChangePassword(user.ID, "wrong", "newpassword456")
		assert.Error(t, err)
	})

	t.Run("修改成功后新密码生效", func(t *testing.T) {
		require.NoError(t, service.ChangePassword(user.ID, "password123", "newpassword456"))

		_, err := service.Login(LoginInput{Username: "dave", Password: "password123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = service.Login(LoginInput{Username: "dave", Password: "newpassword456"})
		assert.NoError(t, err)
	})
}
