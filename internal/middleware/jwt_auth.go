package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/auth/jwt"
	"licensehub/backend/internal/monitoring"
	"licensehub/backend/internal/storage"
)

// JWTAuth JWT 认证中间件
type JWTAuth struct {
	jwtManager *jwt.Manager
	blacklist  storage.JWTRepository
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewJWTAuth 创建 JWT 认证中间件
//
// blacklist 可为 nil，此时不执行吊销检查。
func NewJWTAuth(jwtManager *jwt.Manager, blacklist storage.JWTRepository, metrics *monitoring.Metrics, logger *zap.Logger) *JWTAuth {
	return &JWTAuth{
		jwtManager: jwtManager,
		blacklist:  blacklist,
		metrics:    metrics,
		logger:     logger,
	}
}

// RequireAuth 要求 JWT 认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": false,
				"error":  "authentication required",
			})
			c.Abort()
			return
		}

		claims, err := ja.jwtManager.ValidateToken(token)
		if err != nil {
			if ja.metrics != nil {
				ja.metrics.RecordAuthFailure("jwt")
			}
			ja.logger.Warn("invalid token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": false,
				"error":  "invalid or expired token",
			})
			c.Abort()
			return
		}

		// 已登出的令牌按无效处理
		if ja.blacklist != nil && claims.ID != "" {
			if revoked, err := ja.blacklist.IsBlacklisted(claims.ID); err == nil && revoked {
				c.JSON(http.StatusUnauthorized, gin.H{
					"status": false,
					"error":  "invalid or expired token",
				})
				c.Abort()
				return
			}
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Set("jti", claims.ID)

		c.Next()
	}
}

// extractToken 从请求中提取JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	// 1. 从 Authorization header 提取
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// 2. 从 cookie 提取
	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}

	return ""
}
