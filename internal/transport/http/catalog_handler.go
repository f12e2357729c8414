package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"licensehub/backend/internal/service"
)

// CatalogHandler 处理续费套餐与收款信息端点
type CatalogHandler struct {
	catalog *service.CatalogService
	log     *zap.Logger
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(catalog *service.CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		log:     log,
	}
}

type packageRequest struct {
	Name      string `json:"name" binding:"required"`
	Days      int    `json:"days" binding:"required"`
	Price     int64  `json:"price"`
	IsActive  bool   `json:"is_active"`
	SortOrder int    `json:"sort_order"`
}

type paymentInfoRequest struct {
	BankName      string `json:"bank_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountHolder string `json:"account_holder" binding:"required"`
	TransferNote  string `json:"transfer_note"`
	IsActive      bool   `json:"is_active"`
}

// ListPackages 列出上架中的套餐（客户端视图）
func (h *CatalogHandler) ListPackages(c *gin.Context) {
	packages, err := h.catalog.ListPackages(true)
	if err != nil {
		h.log.Error("list packages failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"packages": packages})
}

// GetPaymentInfo 返回当前启用的收款信息
func (h *CatalogHandler) GetPaymentInfo(c *gin.Context) {
	info, err := h.catalog.GetPaymentInfo()
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, info)
}

// ===== 管理端点（仅超级管理员） =====

// AdminListPackages 列出全部套餐（含下架的）
func (h *CatalogHandler) AdminListPackages(c *gin.Context) {
	packages, err := h.catalog.ListPackages(false)
	if err != nil {
		h.log.Error("list packages failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"packages": packages})
}

// CreatePackage 创建套餐
func (h *CatalogHandler) CreatePackage(c *gin.Context) {
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	pkg, err := h.catalog.CreatePackage(service.PackageInput{
		Name:      req.Name,
		Days:      req.Days,
		Price:     req.Price,
		IsActive:  req.IsActive,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, pkg)
}

// UpdatePackage 更新套餐
func (h *CatalogHandler) UpdatePackage(c *gin.Context) {
	var req packageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	pkg, err := h.catalog.UpdatePackage(c.Param("id"), service.PackageInput{
		Name:      req.Name,
		Days:      req.Days,
		Price:     req.Price,
		IsActive:  req.IsActive,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, pkg)
}

// DeletePackage 删除套餐
func (h *CatalogHandler) DeletePackage(c *gin.Context) {
	if err := h.catalog.DeletePackage(c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}

	Success(c, gin.H{"deleted": true})
}

// ListPaymentInfos 列出全部收款信息
func (h *CatalogHandler) ListPaymentInfos(c *gin.Context) {
	infos, err := h.catalog.ListPaymentInfos()
	if err != nil {
		h.log.Error("list payment infos failed", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"payment_infos": infos})
}

// CreatePaymentInfo 创建收款信息
func (h *CatalogHandler) CreatePaymentInfo(c *gin.Context) {
	var req paymentInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	info, err := h.catalog.SavePaymentInfo("", service.PaymentInfoInput{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
		TransferNote:  req.TransferNote,
		IsActive:      req.IsActive,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	Created(c, info)
}

// UpdatePaymentInfo 更新收款信息
func (h *CatalogHandler) UpdatePaymentInfo(c *gin.Context) {
	var req paymentInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	info, err := h.catalog.SavePaymentInfo(c.Param("id"), service.PaymentInfoInput{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
		TransferNote:  req.TransferNote,
		IsActive:      req.IsActive,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, info)
}

// DeletePaymentInfo 删除收款信息
func (h *CatalogHandler) DeletePaymentInfo(c *gin.Context) {
	if err := h.catalog.DeletePaymentInfo(c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}

	Success(c, gin.H{"deleted": true})
}
