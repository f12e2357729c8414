package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"licensehub/backend/internal/auth"
	"licensehub/backend/internal/domain"
)

// AdminAuth 管理员权限中间件
type AdminAuth struct {
	authService *auth.Service
}

// NewAdminAuth 创建管理员权限中间件
func NewAdminAuth(authService *auth.Service) *AdminAuth {
	return &AdminAuth{
		authService: authService,
	}
}

// RequireSuper 要求超级管理员权限
//
// 必须置于 JWTAuth.RequireAuth 或 APIKeyAuth.RequireAPIKey 之后。
// 已禁用的账号即使令牌尚未过期也会被拒绝。
func (a *AdminAuth) RequireSuper() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.currentUser(c)
		if !ok {
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{
				"status": false,
				"error":  "account disabled",
			})
			c.Abort()
			return
		}

		if !user.IsSuper() {
			c.JSON(http.StatusForbidden, gin.H{
				"status": false,
				"error":  "super admin access required",
			})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("role", user.Role)
		c.Next()
	}
}

// LoadUser 将认证中间件留下的 userID 解析为完整用户对象
//
// JWT 中间件只注入 userID；控制台处理器需要完整的用户实体来做
// 所有权判断。已禁用的用户在此处被拒绝。
func (a *AdminAuth) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.currentUser(c)
		if !ok {
			return
		}

		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{
				"status": false,
				"error":  "account disabled",
			})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// currentUser 解析当前请求的用户；失败时写出 401 并中止
func (a *AdminAuth) currentUser(c *gin.Context) (*domain.User, bool) {
	// API Key 中间件已放入完整用户对象
	if userVal, exists := c.Get("user"); exists {
		if user, ok := userVal.(*domain.User); ok {
			return user, true
		}
	}

	// JWT 中间件只放入了 userID
	userIDVal, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "error": "unauthorized"})
		c.Abort()
		return nil, false
	}

	userID, ok := userIDVal.(string)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "error": "invalid user context"})
		c.Abort()
		return nil, false
	}

	user, err := a.authService.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "error": "user not found"})
		c.Abort()
		return nil, false
	}

	return user, true
}
