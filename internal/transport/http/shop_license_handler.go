package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/monitoring"
	"licensehub/backend/internal/service"
)

// ShopLicenseHandler 处理店铺授权的机器 API 与控制台请求
type ShopLicenseHandler struct {
	licenses *service.ShopLicenseService
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewShopLicenseHandler 创建店铺授权处理器
func NewShopLicenseHandler(licenses *service.ShopLicenseService, metrics *monitoring.Metrics, log *zap.Logger) *ShopLicenseHandler {
	return &ShopLicenseHandler{
		licenses: licenses,
		metrics:  metrics,
		log:      log,
	}
}

type shopVerifyRequest struct {
	Code   string `json:"code" binding:"required"`
	ShopID string `json:"shop_id" binding:"required"`
}

type shopCreateRequest struct {
	ShopIDs   []string `json:"shop_ids" binding:"required"`
	ExpiresIn int      `json:"expires_in" binding:"required"`
	OwnerID   string   `json:"owner_id"`
}

type shopUpdateRequest struct {
	Code      string   `json:"code"`
	Codes     []string `json:"codes"`
	ShopID    string   `json:"shop_id"`    // 非空时变更店铺ID，仅限单个 code
	ExpiresIn int      `json:"expires_in"` // 大于 0 时续期
}

// Verify 验证授权码与店铺ID的配对
func (h *ShopLicenseHandler) Verify(c *gin.Context) {
	var req shopVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.licenses.Verify(req.Code, req.ShopID)
	switch {
	case errors.Is(err, service.ErrLicenseExpired):
		h.metrics.RecordVerification(monitoring.KindShop, monitoring.OutcomeExpired)
		c.JSON(http.StatusGone, Response{Status: true, Data: result})
	case errors.Is(err, service.ErrLicenseNotFound):
		h.metrics.RecordVerification(monitoring.KindShop, monitoring.OutcomeNotFound)
		RespondError(c, err)
	case err != nil:
		h.log.Error("shop verify failed", zap.Error(err))
		InternalError(c, MsgInternalError)
	default:
		h.metrics.RecordVerification(monitoring.KindShop, monitoring.OutcomeValid)
		Success(c, result)
	}
}

// Create 批量创建店铺授权
func (h *ShopLicenseHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req shopCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.licenses.Create(actor, req.OwnerID, req.ShopIDs, req.ExpiresIn)
	if err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicensesCreated(monitoring.KindShop, len(result.Created), len(result.Skipped))

	Created(c, result)
}

// List 列出调用者可见的店铺授权
func (h *ShopLicenseHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	licenses, err := h.licenses.List(actor)
	if err != nil {
		h.log.Error("list shop licenses failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{
		"licenses": licenses,
		"total":    len(licenses),
	})
}

// Update 根据授权码更新店铺授权
//
// 变更店铺ID仅支持单个 code；纯续期时支持 codes 批量。
func (h *ShopLicenseHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req shopUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if req.ShopID != "" {
		if req.Code == "" || len(req.Codes) > 0 {
			BadRequest(c, "变更店铺ID时必须且只能提供单个 code")
			return
		}
		license, err := h.licenses.UpdateByCode(actor, req.Code, service.ShopLicenseUpdate{
			ShopID: req.ShopID,
			Days:   req.ExpiresIn,
		})
		if err != nil {
			RespondError(c, err)
			return
		}
		Success(c, license)
		return
	}

	if req.ExpiresIn <= 0 {
		BadRequest(c, "有效天数必须为正整数")
		return
	}

	codes := req.Codes
	if req.Code != "" {
		codes = append([]string{req.Code}, codes...)
	}
	if len(codes) == 0 {
		BadRequest(c, "必须提供 code 或 codes")
		return
	}

	updated := make([]domain.ShopLicense, 0, len(codes))
	skipped := make([]string, 0)
	for _, code := range codes {
		license, err := h.licenses.UpdateByCode(actor, code, service.ShopLicenseUpdate{Days: req.ExpiresIn})
		if errors.Is(err, service.ErrLicenseNotFound) || errors.Is(err, service.ErrNotOwner) {
			skipped = append(skipped, code)
			continue
		}
		if err != nil {
			RespondError(c, err)
			return
		}
		h.metrics.RecordLicenseExtended(monitoring.KindShop)
		updated = append(updated, *license)
	}

	Success(c, gin.H{
		"updated": updated,
		"skipped": skipped,
	})
}

// Delete 根据授权码删除店铺授权
func (h *ShopLicenseHandler) Delete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.licenses.DeleteByCode(actor, req.Code); err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicensesDeleted(monitoring.KindShop, 1)

	Success(c, gin.H{"deleted": true})
}

// DeleteAll 删除调用者名下全部店铺授权
func (h *ShopLicenseHandler) DeleteAll(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.licenses.DeleteAll(actor)
	if err != nil {
		h.log.Error("delete all shop licenses failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.metrics.RecordLicensesDeleted(monitoring.KindShop, count)

	Success(c, gin.H{"deleted_count": count})
}

// ===== 控制台端点 =====

type shopDashboardCreateRequest struct {
	ShopIDs   []string `json:"shop_ids" binding:"required"`
	ExpiresIn int      `json:"expires_in" binding:"required"`
	OwnerID   string   `json:"owner_id"`
}

// DashboardList 分页列出店铺授权
func (h *ShopLicenseHandler) DashboardList(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	filter := listFilter(c)
	licenses, total, err := h.licenses.ListPaged(actor, filter)
	if err != nil {
		h.log.Error("list shop licenses failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{
		"items":     licenses,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// DashboardCreate 控制台批量创建店铺授权
func (h *ShopLicenseHandler) DashboardCreate(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req shopDashboardCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.licenses.Create(actor, req.OwnerID, req.ShopIDs, req.ExpiresIn)
	if err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicensesCreated(monitoring.KindShop, len(result.Created), len(result.Skipped))

	Created(c, result)
}

// DashboardExtend 控制台按 ID 续期
func (h *ShopLicenseHandler) DashboardExtend(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.Days <= 0 {
		BadRequest(c, "有效天数必须为正整数")
		return
	}

	license, err := h.licenses.Update(actor, c.Param("id"), service.ShopLicenseUpdate{Days: req.Days})
	if err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicenseExtended(monitoring.KindShop)

	Success(c, license)
}

// DashboardDelete 控制台按 ID 删除
func (h *ShopLicenseHandler) DashboardDelete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.licenses.Delete(actor, c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicensesDeleted(monitoring.KindShop, 1)

	Success(c, gin.H{"deleted": true})
}

// DashboardBulkDelete 控制台批量删除选中的店铺授权
func (h *ShopLicenseHandler) DashboardBulkDelete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	count, err := h.licenses.DeleteMany(actor, req.IDs)
	if err != nil {
		h.log.Error("bulk delete shop licenses failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.metrics.RecordLicensesDeleted(monitoring.KindShop, count)

	Success(c, gin.H{"deleted_count": count})
}
