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
	"licensehub/backend/internal/storage"
	"licensehub/backend/internal/storage/memory"
)

func defaultLicenseConfig() config.LicenseConfig {
	return config.LicenseConfig{
		MaxBatch:      1000,
		QuotaEnabled:  false,
		QuotaValidity: 24 * time.Hour,
		ExtendPolicy:  config.ExtendPolicyAdditive,
		OpenVerify:    true,
	}
}

func seedUser(t *testing.T, store *memory.Store, username string, role domain.UserRole) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:       uuid.New().String(),
		Username: username,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func TestCreateLicenses(t *testing.T) {
	store := memory.NewStore()
	svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	owner := seedUser(t, store, "owner", domain.RoleUser)

	t.Run("清洗去重后创建", func(t *testing.T) {
		result, err := svc.Create(owner, "", []string{
			" 13800138000 ", "13800138001", "", "13800138000",
		}, 30)
		require.NoError(t, err)
		assert.Len(t, result.Created, 2)
		assert.Empty(t, result.Skipped)

		for _, lic := range result.Created {
			assert.Equal(t, owner.ID, lic.OwnerID)
			// 授权码是合法的 UUID
			_, err := uuid.Parse(lic.Code)
			assert.NoError(t, err)
			assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), lic.ExpiredAt, time.Minute)
		}
	})

	t.Run("重复提交时已登记的标识被跳过", func(t *testing.T) {
		result, err := svc.Create(owner, "", []string{"13800138000", "13800138002"}, 30)
		require.NoError(t, err)
		assert.Len(t, result.Created, 1)
		assert.Equal(t, []string{"13800138000"}, result.Skipped)
	})

	t.Run("全部为空白时拒绝", func(t *testing.T) {
		_, err := svc.Create(owner, "", []string{"", "  "}, 30)
		assert.ErrorIs(t, err, ErrNoIdentifiers)
	})

	t.Run("天数非正时拒绝", func(t *testing.T) {
		_, err := svc.Create(owner, "", []string{"13811110000"}, 0)
		assert.ErrorIs(t, err, ErrInvalidDays)
	})

	t.Run("超过批量上限时整批拒绝", func(t *testing.T) {
		cfg := defaultLicenseConfig()
		cfg.MaxBatch = 2
		small := NewLicenseService(store, cfg, zap.NewNop())

		_, err := small.Create(owner, "", []string{"1", "2", "3"}, 30)
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})
}

func TestCreateForOtherOwner(t *testing.T) {
	store := memory.NewStore()
	svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	admin := seedUser(t, store, "admin", domain.RoleSuper)
	user := seedUser(t, store, "user", domain.RoleUser)
	other := seedUser(t, store, "other", domain.RoleUser)

	t.Run("超级管理员可为他人创建", func(t *testing.T) {
		result, err := svc.Create(admin, user.ID, []string{"13900000001"}, 30)
		require.NoError(t, err)
		require.Len(t, result.Created, 1)
		assert.Equal(t, user.ID, result.Created[0].OwnerID)
	})

	t.Run("普通用户不能为他人创建", func(t *testing.T) {
		_, err := svc.Create(user, other.ID, []string{"13900000002"}, 30)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("目标用户不存在时拒绝", func(t *testing.T) {
		_, err := svc.Create(admin, "missing-user", []string{"13900000003"}, 30)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestCreateWithQuota(t *testing.T) {
	store := memory.NewStore()
	cfg := defaultLicenseConfig()
	cfg.QuotaEnabled = true
	cfg.QuotaValidity = 24 * time.Hour
	svc := NewLicenseService(store, cfg, zap.NewNop())

	user := seedUser(t, store, "quota-user", domain.RoleUser)
	admin := seedUser(t, store, "quota-admin", domain.RoleSuper)

	t.Run("普通用户首张授权使用固定有效期", func(t *testing.T) {
		result, err := svc.Create(user, "", []string{"13700000001"}, 365)
		require.NoError(t, err)
		require.Len(t, result.Created, 1)
		// 请求的 365 天被忽略，有效期固定为配额值
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), result.Created[0].ExpiredAt, time.Minute)
	})

	t.Run("第二张授权被拒绝", func(t *testing.T) {
		_, err := svc.Create(user, "", []string{"13700000002"}, 1)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})

	t.Run("单次批量多于一条被拒绝", func(t *testing.T) {
		fresh := seedUser(t, store, "quota-fresh", domain.RoleUser)
		_, err := svc.Create(fresh, "", []string{"13700000003", "13700000004"}, 1)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})

	t.Run("超级管理员不受配额限制", func(t *testing.T) {
		result, err := svc.Create(admin, "", []string{"13700000005", "13700000006"}, 30)
		require.NoError(t, err)
		assert.Len(t, result.Created, 2)
		assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), result.Created[0].ExpiredAt, time.Minute)
	})
}

func TestExtendLicense(t *testing.T) {
	store := memory.NewStore()
	owner := seedUser(t, store, "extend-owner", domain.RoleUser)

	newLicense := func(t *testing.T, expiredAt time.Time) *domain.License {
		t.Helper()
		lic := &domain.License{
			ID:          uuid.New().String(),
			OwnerID:     owner.ID,
			Code:        uuid.New().String(),
			PhoneNumber: uuid.New().String()[:18],
			ExpiredAt:   expiredAt,
		}
		require.NoError(t, store.SaveLicense(lic))
		return lic
	}

	t.Run("叠加策略下未过期授权顺延", func(t *testing.T) {
		svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
		base := time.Now().Add(10 * 24 * time.Hour)
		lic := newLicense(t, base)

		extended, err := svc.Extend(owner, lic.ID, 5)
		require.NoError(t, err)
		assert.WithinDuration(t, base.Add(5*24*time.Hour), extended.ExpiredAt, time.Minute)
	})

	t.Run("叠加策略下已过期授权从当前时刻重新起算", func(t *testing.T) {
		svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
		lic := newLicense(t, time.Now().Add(-30*24*time.Hour))

		extended, err := svc.Extend(owner, lic.ID, 7)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), extended.ExpiredAt, time.Minute)
	})

	t.Run("覆盖策略下一律从当前时刻起算", func(t *testing.T) {
		cfg := defaultLicenseConfig()
		cfg.ExtendPolicy = config.ExtendPolicyOverwrite
		svc := NewLicenseService(store, cfg, zap.NewNop())

		lic := newLicense(t, time.Now().Add(100*24*time.Hour))
		extended, err := svc.Extend(owner, lic.ID, 3)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(3*24*time.Hour), extended.ExpiredAt, time.Minute)
	})

	t.Run("天数非正时拒绝", func(t *testing.T) {
		svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
		lic := newLicense(t, time.Now().Add(24*time.Hour))

		_, err := svc.Extend(owner, lic.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidDays)
	})
}

func TestDeleteLicenses(t *testing.T) {
	store := memory.NewStore()
	svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	owner := seedUser(t, store, "del-owner", domain.RoleUser)
	stranger := seedUser(t, store, "del-stranger", domain.RoleUser)
	admin := seedUser(t, store, "del-admin", domain.RoleSuper)

	result, err := svc.Create(owner, "", []string{"13600000001", "13600000002", "13600000003"}, 30)
	require.NoError(t, err)
	require.Len(t, result.Created, 3)

	t.Run("非所有者删除被拒绝", func(t *testing.T) {
		err := svc.Delete(stranger, result.Created[0].ID)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("超级管理员可删除任意授权", func(t *testing.T) {
		assert.NoError(t, svc.Delete(admin, result.Created[0].ID))
	})

	t.Run("批量删除跳过不存在和无权的ID", func(t *testing.T) {
		count, err := svc.DeleteMany(owner, []string{
			result.Created[1].ID,
			"missing-id",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("清空名下授权返回删除数量", func(t *testing.T) {
		count, err := svc.DeleteAll(owner)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		remaining, err := svc.List(owner)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("按授权码删除", func(t *testing.T) {
		created, err := svc.Create(owner, "", []string{"13600000009"}, 30)
		require.NoError(t, err)
		require.Len(t, created.Created, 1)

		require.NoError(t, svc.DeleteByCode(owner, created.Created[0].Code))
		err = svc.DeleteByCode(owner, created.Created[0].Code)
		assert.ErrorIs(t, err, ErrLicenseNotFound)
	})
}

func TestVerifyLicense(t *testing.T) {
	store := memory.NewStore()
	svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	owner := seedUser(t, store, "verify-owner", domain.RoleUser)

	result, err := svc.Create(owner, "", []string{"13500000001"}, 30)
	require.NoError(t, err)
	license := result.Created[0]

	t.Run("配对正确且未过期", func(t *testing.T) {
		res, err := svc.Verify(license.Code, "13500000001")
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, license.ExpiredAt.Unix(), res.ExpiredAt)
	})

	t.Run("手机号带空白仍能验证", func(t *testing.T) {
		res, err := svc.Verify(license.Code, " 13500000001 ")
		require.NoError(t, err)
		assert.True(t, res.Valid)
	})

	t.Run("格式非法的授权码视为不存在", func(t *testing.T) {
		_, err := svc.Verify("not-a-uuid", "13500000001")
		assert.ErrorIs(t, err, ErrLicenseNotFound)
	})

	t.Run("授权码正确但手机号不匹配", func(t *testing.T) {
		_, err := svc.Verify(license.Code, "13599999999")
		assert.ErrorIs(t, err, ErrLicenseNotFound)
	})

	t.Run("不存在的授权码", func(t *testing.T) {
		_, err := svc.Verify(uuid.New().String(), "13500000001")
		assert.ErrorIs(t, err, ErrLicenseNotFound)
	})

	t.Run("已过期返回过期错误和过期时间", func(t *testing.T) {
		expired := &domain.License{
			ID:          uuid.New().String(),
			OwnerID:     owner.ID,
			Code:        uuid.New().String(),
			PhoneNumber: "13500000002",
			ExpiredAt:   time.Now().Add(-time.Hour),
		}
		require.NoError(t, store.SaveLicense(expired))

		res, err := svc.Verify(expired.Code, "13500000002")
		assert.ErrorIs(t, err, ErrLicenseExpired)
		require.NotNil(t, res)
		assert.False(t, res.Valid)
		assert.Equal(t, expired.ExpiredAt.Unix(), res.ExpiredAt)
	})
}

func TestListVisibility(t *testing.T) {
	store := memory.NewStore()
	svc := NewLicenseService(store, defaultLicenseConfig(), zap.NewNop())
	alice := seedUser(t, store, "vis-alice", domain.RoleUser)
	bob := seedUser(t, store, "vis-bob", domain.RoleUser)
	admin := seedUser(t, store, "vis-admin", domain.RoleSuper)

	_, err := svc.Create(alice, "", []string{"13400000001"}, 30)
	require.NoError(t, err)
	_, err = svc.Create(bob, "", []string{"13400000002"}, 30)
	require.NoError(t, err)

	t.Run("普通用户只能看到自己的授权", func(t *testing.T) {
		licenses, err := svc.List(alice)
		require.NoError(t, err)
		require.Len(t, licenses, 1)
		assert.Equal(t, alice.ID, licenses[0].OwnerID)
	})

	t.Run("超级管理员可见全部", func(t *testing.T) {
		licenses, err := svc.List(admin)
		require.NoError(t, err)
		assert.Len(t, licenses, 2)
	})

	t.Run("分页查询强制限定普通用户范围", func(t *testing.T) {
		items, total, err := svc.ListPaged(alice, storageFilter(admin.ID))
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, items, 1)
		assert.Equal(t, alice.ID, items[0].OwnerID)
	})
}

func storageFilter(ownerID string) storage.LicenseFilter {
	return storage.LicenseFilter{OwnerID: ownerID, Page: 1, PageSize: 10}
}
