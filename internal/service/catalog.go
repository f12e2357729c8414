package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"licensehub/backend/internal/domain"
	"licensehub/backend/internal/storage"
)

// CatalogService 续费套餐与收款信息服务
//
// 套餐和收款信息是参考数据：客户在控制台查看可选的续费档位
// 和转账方式，实际续期仍由管理员确认到账后执行。
type CatalogService struct {
	store storage.Store
}

// NewCatalogService 创建目录服务
func NewCatalogService(store storage.Store) *CatalogService {
	return &CatalogService{store: store}
}

// PackageInput 套餐写入参数
type PackageInput struct {
	Name      string
	Days      int
	Price     int64
	IsActive  bool
	SortOrder int
}

// ListPackages 列出套餐；activeOnly 为真时只返回上架中的
func (s *CatalogService) ListPackages(activeOnly bool) ([]domain.ExtensionPackage, error) {
	return s.store.ListPackages(activeOnly)
}

// CreatePackage 创建套餐
func (s *CatalogService) CreatePackage(input PackageInput) (*domain.ExtensionPackage, error) {
	if input.Days <= 0 {
		return nil, ErrInvalidDays
	}

	now := time.Now().UTC()
	pkg := &domain.ExtensionPackage{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Days:      input.Days,
		Price:     input.Price,
		IsActive:  input.IsActive,
		SortOrder: input.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SavePackage(pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// UpdatePackage 更新套餐
func (s *CatalogService) UpdatePackage(id string, input PackageInput) (*domain.ExtensionPackage, error) {
	if input.Days <= 0 {
		return nil, ErrInvalidDays
	}

	pkg, err := s.store.GetPackage(id)
	if errors.Is(err, storage.ErrPackageNotFound) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, err
	}

	pkg.Name = input.Name
	pkg.Days = input.Days
	pkg.Price = input.Price
	pkg.IsActive = input.IsActive
	pkg.SortOrder = input.SortOrder

	if err := s.store.SavePackage(pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// DeletePackage 删除套餐
func (s *CatalogService) DeletePackage(id string) error {
	err := s.store.DeletePackage(id)
	if errors.Is(err, storage.ErrPackageNotFound) {
		return ErrPackageNotFound
	}
	return err
}

// PaymentInfoInput 收款信息写入参数
type PaymentInfoInput struct {
	BankName      string
	AccountNumber string
	AccountHolder string
	TransferNote  string
	IsActive      bool
}

// GetPaymentInfo 获取当前启用的收款信息
func (s *CatalogService) GetPaymentInfo() (*domain.PaymentInfo, error) {
	info, err := s.store.GetActivePaymentInfo()
	if errors.Is(err, storage.ErrPaymentInfoNotFound) {
		return nil, ErrPaymentInfoNotFound
	}
	return info, err
}

// ListPaymentInfos 列出全部收款信息（管理端）
func (s *CatalogService) ListPaymentInfos() ([]domain.PaymentInfo, error) {
	return s.store.ListPaymentInfos()
}

// SavePaymentInfo 创建或更新收款信息
func (s *CatalogService) SavePaymentInfo(id string, input PaymentInfoInput) (*domain.PaymentInfo, error) {
	now := time.Now().UTC()
	info := &domain.PaymentInfo{
		ID:            id,
		BankName:      input.BankName,
		AccountNumber: input.AccountNumber,
		AccountHolder: input.AccountHolder,
		TransferNote:  input.TransferNote,
		IsActive:      input.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if info.ID == "" {
		info.ID = uuid.New().String()
	} else if existing, err := s.store.ListPaymentInfos(); err == nil {
		// 更新时保留原创建时间
		for i := range existing {
			if existing[i].ID == info.ID {
				info.CreatedAt = existing[i].CreatedAt
				break
			}
		}
	}
	if err := s.store.SavePaymentInfo(info); err != nil {
		return nil, err
	}
	return info, nil
}

// DeletePaymentInfo 删除收款信息
func (s *CatalogService) DeletePaymentInfo(id string) error {
	err := s.store.DeletePaymentInfo(id)
	if errors.Is(err, storage.ErrPaymentInfoNotFound) {
		return ErrPaymentInfoNotFound
	}
	return err
}
