package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLicenseIsExpired(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	license := License{ExpiredAt: expiry}

	t.Run("有效期之前未过期", func(t *testing.T) {
		assert.False(t, license.IsExpired(expiry.Add(-time.Second)))
	})

	t.Run("恰好到期时刻视为已过期", func(t *testing.T) {
		assert.True(t, license.IsExpired(expiry))
	})

	t.Run("有效期之后已过期", func(t *testing.T) {
		assert.True(t, license.IsExpired(expiry.Add(time.Second)))
	})
}

func TestShopLicenseIsExpired(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	license := ShopLicense{ExpiredAt: expiry}

	assert.False(t, license.IsExpired(expiry.Add(-time.Minute)))
	assert.True(t, license.IsExpired(expiry))
	assert.True(t, license.IsExpired(expiry.Add(time.Minute)))
}

func TestUserIsSuper(t *testing.T) {
	assert.True(t, (&User{Role: RoleSuper}).IsSuper())
	assert.False(t, (&User{Role: RoleUser}).IsSuper())
}
