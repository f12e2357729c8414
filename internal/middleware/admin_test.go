package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensehub/backend/internal/auth"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage/memory"
)

// serveWith 以指定用户身份执行一次带中间件的请求
func serveWith(userID string, mw gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/restricted", func(c *gin.Context) {
		if userID != "" {
			c.Set("userID", userID)
		}
	}, mw, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/restricted", nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRequireSuper(t *testing.T) {
	store := memory.NewStore()
	authService := auth.NewService(store)
	adminAuth := NewAdminAuth(authService)

	super, err := authService.Register(auth.RegisterInput{
		Username: "boss",
		Password: "super-secret-pw",
		Role:     domain.RoleSuper,
	})
	require.NoError(t, err)

	normal, err := authService.Register(auth.RegisterInput{
		Username: "worker",
		Password: "super-secret-pw",
		Role:     domain.RoleUser,
	})
	require.NoError(t, err)

	t.Run("超级管理员放行", func(t *testing.T) {
		w := serveWith(super.ID, adminAuth.RequireSuper())
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("普通用户被拒绝", func(t *testing.T) {
		w := serveWith(normal.ID, adminAuth.RequireSuper())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("未认证请求被拒绝", func(t *testing.T) {
		w := serveWith("", adminAuth.RequireSuper())
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("已禁用的超级管理员被拒绝", func(t *testing.T) {
		user, err := store.GetUserByID(super.ID)
		require.NoError(t, err)
		user.IsActive = false
		require.NoError(t, store.UpdateUser(user))

		w := serveWith(super.ID, adminAuth.RequireSuper())
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "account disabled")
	})
}

func TestLoadUser(t *testing.T) {
	store := memory.NewStore()
	authService := auth.NewService(store)
	adminAuth := NewAdminAuth(authService)

	user, err := authService.Register(auth.RegisterInput{
		Username: "viewer",
		Password: "super-secret-pw",
		Role:     domain.RoleUser,
	})
	require.NoError(t, err)

	t.Run("活跃用户放行", func(t *testing.T) {
		w := serveWith(user.ID, adminAuth.LoadUser())
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("已禁用的用户被拒绝", func(t *testing.T) {
		disabled, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		disabled.IsActive = false
		require.NoError(t, store.UpdateUser(disabled))

		w := serveWith(user.ID, adminAuth.LoadUser())
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
