package httptransport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"licensehub/backend/internal/auth"
	jwtpkg "licensehub/backend/internal/auth/jwt"
	"licensehub/backend/internal/service"
	"licensehub/backend/internal/storage/memory"
)

func TestRegisterIssuesAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	authService := auth.NewService(store)
	apiKeyService := service.NewAPIKeyService(store, zap.NewNop())
	jwtManager := jwtpkg.NewManager(
		"0123456789abcdef0123456789abcdef",
		"licensehub-test",
		15*time.Minute,
		24*time.Hour,
	)

	handler := NewAuthHandler(authService, apiKeyService, jwtManager, store, 15*time.Minute, zap.NewNop())

	router := gin.New()
	router.POST("/v1/auth/register", handler.Register)

	t.Run("注册成功后立即持有API Key", func(t *testing.T) {
		body := `{"username":"merchant", "password":"super-secret-pw"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)

		user, err := store.GetUserByUsername("merchant")
		require.NoError(t, err)

		apiKey, err := store.GetAPIKeyByUserID(user.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, apiKey.Key)
		assert.Equal(t, user.ID, apiKey.UserID)
	})

	t.Run("重复注册返回冲突且不影响已发密钥", func(t *testing.T) {
		user, err := store.GetUserByUsername("merchant")
		require.NoError(t, err)
		before, err := store.GetAPIKeyByUserID(user.ID)
		require.NoError(t, err)

		body := `{"username":"merchant", "password":"super-secret-pw"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		after, err := store.GetAPIKeyByUserID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, before.Key, after.Key)
	})
}
