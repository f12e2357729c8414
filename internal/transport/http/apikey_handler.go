package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/service"
)

// APIKeyHandler 处理控制台的 API Key 查看与轮换
type APIKeyHandler struct {
	apiKeys *service.APIKeyService
	log     *zap.Logger
}

// NewAPIKeyHandler 创建 API Key 处理器
func NewAPIKeyHandler(apiKeys *service.APIKeyService, log *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		apiKeys: apiKeys,
		log:     log,
	}
}

// Get 返回当前用户的 API Key，没有则补发
func (h *APIKeyHandler) Get(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	apiKey, err := h.apiKeys.EnsureAPIKey(userID)
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, apiKey)
}

// Rotate 轮换当前用户的 API Key，旧密钥立即失效
func (h *APIKeyHandler) Rotate(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	apiKey, err := h.apiKeys.RotateAPIKey(userID)
	if err != nil {
		RespondError(c, err)
		return
	}

	h.log.Info("api key rotated", zap.String("user_id", userID))

	Success(c, apiKey)
}
