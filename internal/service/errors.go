package service

import "errors"

var (
	// ErrLicenseNotFound 授权不存在（验证路径上格式非法的授权码也归入此类）
	ErrLicenseNotFound = errors.New("license not found")
	// ErrLicenseExpired 授权已过期
	ErrLicenseExpired = errors.New("license expired")
	// ErrNotOwner 操作者不是授权的所有者
	ErrNotOwner = errors.New("not the owner of this license")
	// ErrNoIdentifiers 批量创建时清洗后没有任何有效标识
	ErrNoIdentifiers = errors.New("no valid identifiers provided")
	// ErrBatchTooLarge 批量创建的标识数量超过上限
	ErrBatchTooLarge = errors.New("too many identifiers in one batch")
	// ErrInvalidDays 有效期天数必须为正数
	ErrInvalidDays = errors.New("days must be a positive integer")
	// ErrQuotaExceeded 普通用户授权配额已用尽
	ErrQuotaExceeded = errors.New("license quota exceeded")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrAPIKeyInvalid API Key无效
	ErrAPIKeyInvalid = errors.New("invalid API key")
	// ErrPackageNotFound 续费套餐不存在
	ErrPackageNotFound = errors.New("extension package not found")
	// ErrPaymentInfoNotFound 收款信息不存在
	ErrPaymentInfoNotFound = errors.New("payment info not found")
)
