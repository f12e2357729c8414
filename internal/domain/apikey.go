package domain

import "time"

// APIKey API密钥实体，与用户一一对应
//
// 用户记录首次持久化时自动补发（见 APIKeyService.EnsureAPIKey），
// 删除用户时级联删除。
type APIKey struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string     `json:"userId" gorm:"type:varchar(36);uniqueIndex;not null"`
	Key        string     `json:"key" gorm:"type:varchar(64);uniqueIndex;not null"` // 不透明随机令牌
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"` // 每次认证调用后更新
}
