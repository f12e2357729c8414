package domain

import "time"

// ExtensionPackage 续费套餐目录项（参考数据，核心流程只读）
type ExtensionPackage struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Days      int       `json:"days" gorm:"not null"` // 套餐对应的延长天数
	Price     int64     `json:"price" gorm:"not null"`
	IsActive  bool      `json:"isActive" gorm:"default:true;index"`
	SortOrder int       `json:"sortOrder" gorm:"default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PaymentInfo 转账收款信息（参考数据）
type PaymentInfo struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BankName      string    `json:"bankName" gorm:"type:varchar(100);not null"`
	AccountNumber string    `json:"accountNumber" gorm:"type:varchar(50);not null"`
	AccountHolder string    `json:"accountHolder" gorm:"type:varchar(100);not null"`
	TransferNote  string    `json:"transferNote" gorm:"type:varchar(255)"` // 转账备注模板
	IsActive      bool      `json:"isActive" gorm:"default:true;index"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
