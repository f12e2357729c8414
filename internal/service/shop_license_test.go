package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"licensehub/backend/internal/config"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage/memory"
)

func TestCreateShopLicenses(t *testing.T) {
	store := memory.NewStore()
	svc := NewShopLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	alice := seedUser(t, store, "shop-alice", domain.RoleUser)
	bob := seedUser(t, store, "shop-bob", domain.RoleUser)

	t.Run("批量创建并跳过已登记的店铺", func(t *testing.T) {
		first, err := svc.Create(alice, "", []string{"shop-1", "shop-2"}, 30)
		require.NoError(t, err)
		assert.Len(t, first.Created, 2)

		second, err := svc.Create(alice, "", []string{"shop-2", "shop-3"}, 30)
		require.NoError(t, err)
		assert.Len(t, second.Created, 1)
		assert.Equal(t, []string{"shop-2"}, second.Skipped)
	})

	t.Run("不同所有者可登记同一店铺", func(t *testing.T) {
		result, err := svc.Create(bob, "", []string{"shop-1"}, 30)
		require.NoError(t, err)
		assert.Len(t, result.Created, 1)
		assert.Empty(t, result.Skipped)
	})

	t.Run("天数非正时拒绝", func(t *testing.T) {
		_, err := svc.Create(alice, "", []string{"shop-x"}, -1)
		assert.ErrorIs(t, err, ErrInvalidDays)
	})
}

func TestUpdateShopLicense(t *testing.T) {
	store := memory.NewStore()
	svc := NewShopLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	owner := seedUser(t, store, "upd-owner", domain.RoleUser)

	result, err := svc.Create(owner, "", []string{"shop-a", "shop-b"}, 10)
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	licA := result.Created[0]

	t.Run("变更店铺ID", func(t *testing.T) {
		updated, err := svc.Update(owner, licA.ID, ShopLicenseUpdate{ShopID: "shop-c"})
		require.NoError(t, err)
		assert.Equal(t, "shop-c", updated.ShopID)
		// 授权码不变
		assert.Equal(t, licA.Code, updated.Code)
	})

	t.Run("变更为已登记的店铺ID失败", func(t *testing.T) {
		_, err := svc.Update(owner, licA.ID, ShopLicenseUpdate{ShopID: "shop-b"})
		assert.Error(t, err)
	})

	t.Run("按天数续期", func(t *testing.T) {
		before, err := svc.Get(owner, licA.ID)
		require.NoError(t, err)

		updated, err := svc.Update(owner, licA.ID, ShopLicenseUpdate{Days: 5})
		require.NoError(t, err)
		assert.WithinDuration(t, before.ExpiredAt.Add(5*24*time.Hour), updated.ExpiredAt, time.Minute)
	})
}

func TestVerifyShopLicense(t *testing.T) {
	store := memory.NewStore()
	svc := NewShopLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	owner := seedUser(t, store, "sv-owner", domain.RoleUser)

	result, err := svc.Create(owner, "", []string{"shop-verify"}, 30)
	require.NoError(t, err)
	license := result.Created[0]

	t.Run("配对正确且未过期", func(t *testing.T) {
		res, err := svc.Verify(license.Code, "shop-verify")
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, license.ExpiredAt.Unix(), res.ExpiredAt)
	})

	t.Run("格式非法的授权码视为不存在", func(t *testing.T) {
		_, err := svc.Verify("garbage", "shop-verify")
		assert.ErrorIs(t, err, ErrLicenseNotFound)
	})

	t.Run("店铺ID不匹配", func(t *testing.T) {
		_, err := svc.Verify(license.Code, "another-shop")
		assert.ErrorIs(t, err, ErrLicenseNotFound)
	})

	t.Run("已过期返回过期错误", func(t *testing.T) {
		expired := &domain.ShopLicense{
			ID:        uuid.New().String(),
			OwnerID:   owner.ID,
			Code:      uuid.New().String(),
			ShopID:    "shop-expired",
			ExpiredAt: time.Now().Add(-time.Minute),
		}
		require.NoError(t, store.SaveShopLicense(expired))

		res, err := svc.Verify(expired.Code, "shop-expired")
		assert.ErrorIs(t, err, ErrLicenseExpired)
		require.NotNil(t, res)
		assert.False(t, res.Valid)
	})
}

func TestShopLicenseExtendPolicies(t *testing.T) {
	store := memory.NewStore()
	owner := seedUser(t, store, "sp-owner", domain.RoleUser)

	t.Run("覆盖策略续期从当前时刻起算", func(t *testing.T) {
		cfg := defaultLicenseConfig()
		cfg.ExtendPolicy = config.ExtendPolicyOverwrite
		svc := NewShopLicenseService(store, cfg, zap.NewNop())

		result, err := svc.Create(owner, "", []string{"sp-shop-1"}, 100)
		require.NoError(t, err)

		updated, err := svc.Update(owner, result.Created[0].ID, ShopLicenseUpdate{Days: 3})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(3*24*time.Hour), updated.ExpiredAt, time.Minute)
	})

	t.Run("叠加策略下已过期授权重新起算", func(t *testing.T) {
		svc := NewShopLicenseService(store, defaultLicenseConfig(), zap.NewNop())

		expired := &domain.ShopLicense{
			ID:        uuid.New().String(),
			OwnerID:   owner.ID,
			Code:      uuid.New().String(),
			ShopID:    "sp-shop-2",
			ExpiredAt: time.Now().Add(-10 * 24 * time.Hour),
		}
		require.NoError(t, store.SaveShopLicense(expired))

		updated, err := svc.Update(owner, expired.ID, ShopLicenseUpdate{Days: 7})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), updated.ExpiredAt, time.Minute)
	})
}

func TestDeleteShopLicenses(t *testing.T) {
	store := memory.NewStore()
	svc := NewShopLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	owner := seedUser(t, store, "sd-owner", domain.RoleUser)
	stranger := seedUser(t, store, "sd-stranger", domain.RoleUser)

	result, err := svc.Create(owner, "", []string{"sd-1", "sd-2", "sd-3"}, 30)
	require.NoError(t, err)

	t.Run("非所有者删除被拒绝", func(t *testing.T) {
		err := svc.Delete(stranger, result.Created[0].ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("批量删除返回实际删除数量", func(t *testing.T) {
		count, err := svc.DeleteMany(owner, []string{result.Created[0].ID, "missing"})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("清空名下店铺授权", func(t *testing.T) {
		count, err := svc.DeleteAll(owner)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}
