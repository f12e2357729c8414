package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/auth"
	jwtpkg "licensehub/backend/internal/auth/jwt"
	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/service"
	"licensehub/backend/internal/storage"
)

// AuthHandler 处理控制台认证相关的 HTTP 请求
type AuthHandler struct {
	authService  *auth.Service
	apiKeys      *service.APIKeyService
	jwtManager   *jwtpkg.Manager
	blacklist    storage.JWTRepository // 登出时吊销令牌，可为 nil
	accessExpiry time.Duration
	log          *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, apiKeys *service.APIKeyService, jwtManager *jwtpkg.Manager, blacklist storage.JWTRepository, accessExpiry time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		apiKeys:      apiKeys,
		jwtManager:   jwtManager,
		blacklist:    blacklist,
		accessExpiry: accessExpiry,
		log:          log,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func newUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

// Register 处理用户注册请求
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Register(auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     domain.RoleUser,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	// 注册即发放 API Key；失败只记日志，控制台查看时会补发
	if _, err := h.apiKeys.EnsureAPIKey(user.ID); err != nil {
		h.log.Warn("failed to issue api key on register",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Username, string(user.Role))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	Created(c, authResponse{
		User:         newUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Username, string(user.Role))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	Success(c, authResponse{
		User:         newUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Refresh 使用刷新令牌换取新的访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		Unauthorized(c, "刷新令牌无效或已过期")
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int64(h.accessExpiry.Seconds()),
	})
}

// Me 返回当前登录用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, newUserResponse(user))
}

// ChangePassword 修改当前用户密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	if err := h.authService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		RespondError(c, err)
		return
	}

	h.log.Info("user changed password", zap.String("user_id", userID))

	Success(c, gin.H{"changed": true})
}

// Logout 登出并吊销当前访问令牌
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.blacklist != nil {
		if jti := c.GetString("jti"); jti != "" {
			if err := h.blacklist.AddToBlacklist(jti, h.accessExpiry); err != nil {
				h.log.Warn("failed to blacklist token", zap.Error(err))
			}
		}
	}

	Success(c, gin.H{"logged_out": true})
}
