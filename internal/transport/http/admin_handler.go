package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/service"
)

// AdminHandler 处理用户管理端点（仅超级管理员）
type AdminHandler struct {
	admin *service.AdminService
	log   *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(admin *service.AdminService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admin: admin,
		log:   log,
	}
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ListUsers 分页列出用户
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var role *domain.UserRole
	if raw := c.Query("role"); raw != "" {
		r := domain.UserRole(raw)
		role = &r
	}

	var isActive *bool
	if raw, ok := c.GetQuery("active"); ok {
		if active, err := strconv.ParseBool(raw); err == nil {
			isActive = &active
		}
	}

	users, total, err := h.admin.ListUsers(page, pageSize, c.Query("search"), role, isActive)
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{
		"users":     users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// CreateUser 创建用户并返回补发的 API Key
//
// 机器 API 的 /users/create 与控制台管理端共用此处理器。
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	role := domain.UserRole(req.Role)
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleSuper {
		BadRequest(c, "角色必须是 user 或 super")
		return
	}

	result, err := h.admin.CreateUser(req.Username, req.Password, role)
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, result)
}

// GetUser 获取用户详情（含 API Key 与授权数量）
func (h *AdminHandler) GetUser(c *gin.Context) {
	result, err := h.admin.GetUser(c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, result)
}

// SetUserActive 启用或禁用用户
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.admin.SetUserActive(c.Param("id"), *req.Active)
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, user)
}

// DeleteUser 删除用户及其名下授权
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}

	Success(c, gin.H{"deleted": true})
}
