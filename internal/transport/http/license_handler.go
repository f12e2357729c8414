package httptransport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/monitoring"
	"licensehub/backend/internal/service"
	"licensehub/backend/internal/storage"
)

// LicenseHandler 处理手机号授权的机器 API 与控制台请求
type LicenseHandler struct {
	licenses *service.LicenseService
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewLicenseHandler 创建授权处理器
func NewLicenseHandler(licenses *service.LicenseService, metrics *monitoring.Metrics, log *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		licenses: licenses,
		metrics:  metrics,
		log:      log,
	}
}

// currentUser 从上下文取出认证中间件注入的用户
func currentUser(c *gin.Context) (*domain.User, bool) {
	val, exists := c.Get("user")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		c.Abort()
		return nil, false
	}
	user, ok := val.(*domain.User)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		c.Abort()
		return nil, false
	}
	return user, true
}

type verifyRequest struct {
	Code        string `json:"code" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

type createRequest struct {
	PhoneNumbers []string `json:"phone_numbers" binding:"required"`
	ExpiresIn    int      `json:"expires_in"`
	OwnerID      string   `json:"owner_id"` // 超级管理员可为他人创建
}

type updateRequest struct {
	Code      string   `json:"code"`
	Codes     []string `json:"codes"`
	ExpiresIn int      `json:"expires_in" binding:"required"`
}

type deleteRequest struct {
	Code string `json:"code" binding:"required"`
}

// Verify 验证授权码与手机号的配对
//
// 过期的授权返回 410，响应体仍携带 valid=false 与过期时间，
// 便于客户端提示续期。
func (h *LicenseHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.licenses.Verify(req.Code, req.PhoneNumber)
	switch {
	case errors.Is(err, service.ErrLicenseExpired):
		h.metrics.RecordVerification(monitoring.KindPhone, monitoring.OutcomeExpired)
		c.JSON(http.StatusGone, Response{Status: true, Data: result})
	case errors.Is(err, service.ErrLicenseNotFound):
		h.metrics.RecordVerification(monitoring.KindPhone, monitoring.OutcomeNotFound)
		RespondError(c, err)
	case err != nil:
		h.log.Error("verify failed", zap.Error(err))
		InternalError(c, MsgInternalError)
	default:
		h.metrics.RecordVerification(monitoring.KindPhone, monitoring.OutcomeValid)
		Success(c, result)
	}
}

// Create 批量创建授权
func (h *LicenseHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.licenses.Create(actor, req.OwnerID, req.PhoneNumbers, req.ExpiresIn)
	if err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicensesCreated(monitoring.KindPhone, len(result.Created), len(result.Skipped))

	Created(c, result)
}

// List 列出调用者可见的授权
func (h *LicenseHandler) List(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	licenses, err := h.licenses.List(actor)
	if err != nil {
		h.log.Error("list licenses failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{
		"licenses": licenses,
		"total":    len(licenses),
	})
}

// Update 根据授权码续期，支持单个 code 或 codes 批量
//
// 批量时不存在或无权访问的授权码进入 skipped，不中断整批。
func (h *LicenseHandler) Update(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
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

	updated := make([]domain.License, 0, len(codes))
	skipped := make([]string, 0)
	for _, code := range codes {
		license, err := h.licenses.ExtendByCode(actor, code, req.ExpiresIn)
		if errors.Is(err, service.ErrLicenseNotFound) || errors.Is(err, service.ErrNotOwner) {
			skipped = append(skipped, code)
			continue
		}
		if err != nil {
			RespondError(c, err)
			return
		}
		h.metrics.RecordLicenseExtended(monitoring.KindPhone)
		updated = append(updated, *license)
	}

	Success(c, gin.H{
		"updated": updated,
		"skipped": skipped,
	})
}

// Delete 根据授权码删除授权
func (h *LicenseHandler) Delete(c *gin.Context) {
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

	h.metrics.RecordLicensesDeleted(monitoring.KindPhone, 1)

	Success(c, gin.H{"deleted": true})
}

// DeleteAll 删除调用者名下全部授权
func (h *LicenseHandler) DeleteAll(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.licenses.DeleteAll(actor)
	if err != nil {
		h.log.Error("delete all licenses failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.metrics.RecordLicensesDeleted(monitoring.KindPhone, count)

	Success(c, gin.H{"deleted_count": count})
}

// ===== 控制台端点 =====

type dashboardCreateRequest struct {
	PhoneNumbers []string `json:"phone_numbers" binding:"required"`
	ExpiresIn    int      `json:"expires_in"`
	OwnerID      string   `json:"owner_id"`
}

type extendRequest struct {
	Days int `json:"days" binding:"required"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// listFilter 从查询参数构造分页过滤条件
func listFilter(c *gin.Context) storage.LicenseFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := storage.LicenseFilter{
		Search:   c.Query("search"),
		OwnerID:  c.Query("owner"), // 普通用户的该条件会被服务层覆盖
		Page:     page,
		PageSize: pageSize,
	}

	if raw, ok := c.GetQuery("expired"); ok {
		if expired, err := strconv.ParseBool(raw); err == nil {
			filter.Expired = &expired
		}
	}

	return filter
}

// DashboardList 分页列出授权
func (h *LicenseHandler) DashboardList(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	filter := listFilter(c)
	licenses, total, err := h.licenses.ListPaged(actor, filter)
	if err != nil {
		h.log.Error("list licenses failed", zap.Error(err))
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

// DashboardCreate 控制台批量创建授权
func (h *LicenseHandler) DashboardCreate(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req dashboardCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	result, err := h.licenses.Create(actor, req.OwnerID, req.PhoneNumbers, req.ExpiresIn)
	if err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicensesCreated(monitoring.KindPhone, len(result.Created), len(result.Skipped))

	Created(c, result)
}

// DashboardExtend 控制台按 ID 续期
func (h *LicenseHandler) DashboardExtend(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	license, err := h.licenses.Extend(actor, c.Param("id"), req.Days)
	if err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicenseExtended(monitoring.KindPhone)

	Success(c, license)
}

// DashboardDelete 控制台按 ID 删除
func (h *LicenseHandler) DashboardDelete(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.licenses.Delete(actor, c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}

	h.metrics.RecordLicensesDeleted(monitoring.KindPhone, 1)

	Success(c, gin.H{"deleted": true})
}

// DashboardBulkDelete 控制台批量删除选中的授权
func (h *LicenseHandler) DashboardBulkDelete(c *gin.Context) {
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
		h.log.Error("bulk delete licenses failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.metrics.RecordLicensesDeleted(monitoring.KindPhone, count)

	Success(c, gin.H{"deleted_count": count})
}
