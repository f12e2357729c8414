package memory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

func newTestUser(username string) *domain.User {
	return &domain.User{
		ID:       uuid.New().String(),
		Username: username,
		Role:     domain.RoleUser,
		IsActive: true,
	}
}

func newTestLicense(ownerID, phone string, expiredAt time.Time) *domain.License {
	return &domain.License{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Code:        uuid.New().String(),
		PhoneNumber: phone,
		ExpiredAt:   expiredAt,
	}
}

func newTestShopLicense(ownerID, shopID string, expiredAt time.Time) *domain.ShopLicense {
	return &domain.ShopLicense{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Code:      uuid.New().String(),
		ShopID:    shopID,
		ExpiredAt: expiredAt,
	}
}

func TestUserOperations(t *testing.T) {
	store := NewStore()

	t.Run("创建并按用户名查询用户", func(t *testing.T) {
		user := newTestUser("alice")
		require.NoError(t, store.CreateUser(user))

		found, err := store.GetUserByUsername("Alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("重复用户名返回冲突错误", func(t *testing.T) {
		dup := newTestUser("ALICE")
		err := store.CreateUser(dup)
		assert.ErrorIs(t, err, storage.ErrUsernameExists)
	})

	t.Run("更新最后登录时间", func(t *testing.T) {
		user, err := store.GetUserByUsername("alice")
		require.NoError(t, err)
		require.Nil(t, user.LastLoginAt)

		require.NoError(t, store.UpdateLastLogin(user.ID))

		updated, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.NotNil(t, updated.LastLoginAt)
	})

	t.Run("查询不存在的用户返回未找到", func(t *testing.T) {
		_, err := store.GetUserByID("missing")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}

func TestLicensePhoneUniqueness(t *testing.T) {
	store := NewStore()
	owner1 := newTestUser("owner1")
	owner2 := newTestUser("owner2")
	require.NoError(t, store.CreateUser(owner1))
	require.NoError(t, store.CreateUser(owner2))

	expiry := time.Now().Add(24 * time.Hour)

	t.Run("手机号全局唯一", func(t *testing.T) {
		first := newTestLicense(owner1.ID, "13800138000", expiry)
		require.NoError(t, store.SaveLicense(first))

		// 同一手机号即使属于另一所有者也不允许重复登记
		second := newTestLicense(owner2.ID, "13800138000", expiry)
		err := store.SaveLicense(second)
		assert.ErrorIs(t, err, storage.ErrLicenseExists)
	})

	t.Run("按授权码和手机号联合查询", func(t *testing.T) {
		lic, err := store.GetLicenseByPhone("13800138000")
		require.NoError(t, err)

		found, err := store.GetLicenseByCodeAndPhone(lic.Code, lic.PhoneNumber)
		require.NoError(t, err)
		assert.Equal(t, lic.ID, found.ID)

		// 授权码存在但手机号不匹配时视为未找到
		_, err = store.GetLicenseByCodeAndPhone(lic.Code, "13900000000")
		assert.ErrorIs(t, err, storage.ErrLicenseNotFound)
	})

	t.Run("删除后手机号可重新登记", func(t *testing.T) {
		lic, err := store.GetLicenseByPhone("13800138000")
		require.NoError(t, err)
		require.NoError(t, store.DeleteLicense(lic.ID))

		again := newTestLicense(owner2.ID, "13800138000", expiry)
		assert.NoError(t, store.SaveLicense(again))
	})
}

func TestShopLicensePerOwnerUniqueness(t *testing.T) {
	store := NewStore()
	owner1 := newTestUser("shop-owner1")
	owner2 := newTestUser("shop-owner2")
	require.NoError(t, store.CreateUser(owner1))
	require.NoError(t, store.CreateUser(owner2))

	expiry := time.Now().Add(24 * time.Hour)

	t.Run("同一所有者不能重复登记同一店铺", func(t *testing.T) {
		first := newTestShopLicense(owner1.ID, "shop-001", expiry)
		require.NoError(t, store.SaveShopLicense(first))

		dup := newTestShopLicense(owner1.ID, "shop-001", expiry)
		err := store.SaveShopLicense(dup)
		assert.ErrorIs(t, err, storage.ErrShopLicenseExists)
	})

	t.Run("不同所有者可以登记同一店铺", func(t *testing.T) {
		other := newTestShopLicense(owner2.ID, "shop-001", expiry)
		assert.NoError(t, store.SaveShopLicense(other))
	})

	t.Run("按授权码和店铺ID联合查询", func(t *testing.T) {
		lic, err := store.GetShopLicenseByOwnerAndShop(owner1.ID, "shop-001")
		require.NoError(t, err)

		found, err := store.GetShopLicenseByCodeAndShop(lic.Code, "shop-001")
		require.NoError(t, err)
		assert.Equal(t, lic.ID, found.ID)

		_, err = store.GetShopLicenseByCodeAndShop(lic.Code, "shop-999")
		assert.ErrorIs(t, err, storage.ErrShopLicenseNotFound)
	})

	t.Run("变更为他人已登记的店铺ID返回冲突错误", func(t *testing.T) {
		// owner1 再登记一家店铺，然后试图把它改成已占用的 shop-001
		extra := newTestShopLicense(owner1.ID, "shop-extra", expiry)
		require.NoError(t, store.SaveShopLicense(extra))

		lic, err := store.GetShopLicenseByOwnerAndShop(owner1.ID, "shop-extra")
		require.NoError(t, err)

		lic.ShopID = "shop-001"
		err = store.UpdateShopLicense(lic)
		assert.ErrorIs(t, err, storage.ErrShopLicenseExists)

		// 冲突的更新不得污染存储中的记录与索引
		unchanged, err := store.GetShopLicenseByOwnerAndShop(owner1.ID, "shop-extra")
		require.NoError(t, err)
		assert.Equal(t, lic.ID, unchanged.ID)
		assert.Equal(t, "shop-extra", unchanged.ShopID)

		require.NoError(t, store.DeleteShopLicense(lic.ID))
	})

	t.Run("查询结果是副本，原地修改不影响存储", func(t *testing.T) {
		lic, err := store.GetShopLicenseByOwnerAndShop(owner1.ID, "shop-001")
		require.NoError(t, err)

		lic.ShopID = "shop-tampered"
		lic.ExpiredAt = lic.ExpiredAt.Add(120 * time.Hour)

		stored, err := store.GetShopLicense(lic.ID)
		require.NoError(t, err)
		assert.Equal(t, "shop-001", stored.ShopID)
		assert.True(t, stored.ExpiredAt.Before(lic.ExpiredAt))
	})

	t.Run("变更店铺ID时维护唯一索引", func(t *testing.T) {
		lic, err := store.GetShopLicenseByOwnerAndShop(owner1.ID, "shop-001")
		require.NoError(t, err)

		updated := *lic
		updated.ShopID = "shop-002"
		require.NoError(t, store.UpdateShopLicense(&updated))

		_, err = store.GetShopLicenseByOwnerAndShop(owner1.ID, "shop-001")
		assert.ErrorIs(t, err, storage.ErrShopLicenseNotFound)

		found, err := store.GetShopLicenseByOwnerAndShop(owner1.ID, "shop-002")
		require.NoError(t, err)
		assert.Equal(t, lic.ID, found.ID)
	})
}

func TestDeleteUserCascades(t *testing.T) {
	store := NewStore()
	owner := newTestUser("cascade-owner")
	require.NoError(t, store.CreateUser(owner))

	expiry := time.Now().Add(24 * time.Hour)
	lic := newTestLicense(owner.ID, "13700137000", expiry)
	require.NoError(t, store.SaveLicense(lic))

	shopLic := newTestShopLicense(owner.ID, "shop-cascade", expiry)
	require.NoError(t, store.SaveShopLicense(shopLic))

	apiKey := &domain.APIKey{
		ID:     uuid.New().String(),
		UserID: owner.ID,
		Key:    "test-cascade-key",
	}
	require.NoError(t, store.SaveAPIKey(apiKey))

	require.NoError(t, store.DeleteUser(owner.ID))

	_, err := store.GetLicense(lic.ID)
	assert.ErrorIs(t, err, storage.ErrLicenseNotFound)

	_, err = store.GetShopLicense(shopLic.ID)
	assert.ErrorIs(t, err, storage.ErrShopLicenseNotFound)

	_, err = store.GetAPIKeyByKey("test-cascade-key")
	assert.ErrorIs(t, err, storage.ErrAPIKeyNotFound)

	// 级联删除后手机号可重新登记
	owner2 := newTestUser("cascade-owner2")
	require.NoError(t, store.CreateUser(owner2))
	again := newTestLicense(owner2.ID, "13700137000", expiry)
	assert.NoError(t, store.SaveLicense(again))
}

func TestDeleteLicensesByOwner(t *testing.T) {
	store := NewStore()
	owner := newTestUser("bulk-owner")
	other := newTestUser("bulk-other")
	require.NoError(t, store.CreateUser(owner))
	require.NoError(t, store.CreateUser(other))

	expiry := time.Now().Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		lic := newTestLicense(owner.ID, "1380000000"+string(rune('0'+i)), expiry)
		require.NoError(t, store.SaveLicense(lic))
	}
	keep := newTestLicense(other.ID, "13900000000", expiry)
	require.NoError(t, store.SaveLicense(keep))

	count, err := store.DeleteLicensesByOwner(owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	remaining, err := store.ListAllLicenses()
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].OwnerID)
}

func TestListLicensesFilter(t *testing.T) {
	store := NewStore()
	owner := newTestUser("filter-owner")
	require.NoError(t, store.CreateUser(owner))

	now := time.Now()
	expired := newTestLicense(owner.ID, "13811111111", now.Add(-time.Hour))
	valid := newTestLicense(owner.ID, "13822222222", now.Add(time.Hour))
	require.NoError(t, store.SaveLicense(expired))
	require.NoError(t, store.SaveLicense(valid))

	t.Run("按过期状态过滤", func(t *testing.T) {
		isExpired := true
		items, total, err := store.ListLicenses(storage.LicenseFilter{
			OwnerID: owner.ID,
			Expired: &isExpired,
			Page:    1, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, expired.ID, items[0].ID)
	})

	t.Run("按标识模糊匹配", func(t *testing.T) {
		items, total, err := store.ListLicenses(storage.LicenseFilter{
			OwnerID: owner.ID,
			Search:  "2222",
			Page:    1, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, valid.ID, items[0].ID)
	})

	t.Run("分页越界返回空页", func(t *testing.T) {
		items, total, err := store.ListLicenses(storage.LicenseFilter{
			OwnerID: owner.ID,
			Page:    5, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Empty(t, items)
	})
}

func TestRateLimitWindow(t *testing.T) {
	store := NewStore()

	count, err := store.IncrementRateLimit("ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.IncrementRateLimit("ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	current, err := store.GetRateLimit("ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)

	current, err = store.GetRateLimit("ip:unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}

func TestJWTBlacklist(t *testing.T) {
	store := NewStore()

	blacklisted, err := store.IsBlacklisted("jti-1")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, store.AddToBlacklist("jti-1", time.Minute))

	blacklisted, err = store.IsBlacklisted("jti-1")
	require.NoError(t, err)
	assert.True(t, blacklisted)
}
