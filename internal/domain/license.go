package domain

import "time"

// License 手机号授权实体
//
// code 创建后不可变，是验证时的主要凭证；phone_number 全局唯一，
// 不同所有者之间也不允许重复。
type License struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID     string    `json:"ownerId" gorm:"type:varchar(36);index;not null"`
	Code        string    `json:"code" gorm:"type:varchar(36);uniqueIndex;not null"` // 128位随机验证码（UUID）
	PhoneNumber string    `json:"phoneNumber" gorm:"type:varchar(20);uniqueIndex;not null"`
	ExpiredAt   time.Time `json:"expiredAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsExpired 判断授权在指定时刻是否已过期（边界时刻视为已过期）
func (l *License) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiredAt)
}

// ShopLicense 店铺授权实体
//
// 与 License 同构，但以 shop_id 为标识，唯一性按所有者划分：
// 不同所有者可以登记同一个 shop_id，同一所有者不能重复登记。
type ShopLicense struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string    `json:"ownerId" gorm:"type:varchar(36);index:idx_shop_owner,unique,priority:1;not null"`
	Code      string    `json:"code" gorm:"type:varchar(36);uniqueIndex;not null"`
	ShopID    string    `json:"shopId" gorm:"type:varchar(200);index:idx_shop_owner,unique,priority:2;not null"`
	ExpiredAt time.Time `json:"expiredAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsExpired 判断授权在指定时刻是否已过期（边界时刻视为已过期）
func (l *ShopLicense) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiredAt)
}
