package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/monitoring"
	"licensehub/backend/internal/service"
)

// APIKeyAuth API Key 认证中间件
type APIKeyAuth struct {
	apiKeyService *service.APIKeyService
	metrics       *monitoring.Metrics
	logger        *zap.Logger
}

// NewAPIKeyAuth 创建 API Key 认证中间件
func NewAPIKeyAuth(apiKeyService *service.APIKeyService, metrics *monitoring.Metrics, logger *zap.Logger) *APIKeyAuth {
	return &APIKeyAuth{
		apiKeyService: apiKeyService,
		metrics:       metrics,
		logger:        logger,
	}
}

// RequireAPIKey 要求 API Key 认证
//
// 依次从 X-API-Key 请求头和 api_key 查询参数提取密钥。
func (a *APIKeyAuth) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": false,
				"error":  "API Key required",
			})
			c.Abort()
			return
		}

		user, err := a.apiKeyService.ValidateAPIKey(key)
		if err != nil {
			if a.metrics != nil {
				a.metrics.RecordAuthFailure("api_key")
			}
			a.logger.Warn("api key rejected",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": false,
				"error":  "invalid API Key",
			})
			c.Abort()
			return
		}

		c.Set("userID", user.ID)
		c.Set("user", user)

		c.Next()
	}
}

// OptionalAPIKey 可选的 API Key 认证
//
// 密钥有效时注入用户上下文，缺失或无效时放行为匿名请求。
// 用于 open_verify 开启时的验证端点。
func (a *APIKeyAuth) OptionalAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			c.Next()
			return
		}

		if user, err := a.apiKeyService.ValidateAPIKey(key); err == nil {
			c.Set("userID", user.ID)
			c.Set("user", user)
		}

		c.Next()
	}
}

// extractAPIKey 从请求中提取 API Key
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}
