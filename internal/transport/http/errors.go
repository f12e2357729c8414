package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"licensehub/backend/internal/auth"
	"licensehub/backend/internal/service"
)

// 业务错误 -> 中文消息
var errorMessages = map[error]string{
	// 授权错误
	service.ErrLicenseNotFound: "授权不存在",
	service.ErrLicenseExpired:  "授权已过期",
	service.ErrNotOwner:        "您不是该授权的所有者",
	service.ErrNoIdentifiers:   "标识列表不能为空",
	service.ErrBatchTooLarge:   "单次创建数量超过上限",
	service.ErrInvalidDays:     "有效天数必须为正整数",
	service.ErrQuotaExceeded:   "已达到授权数量配额",

	// 用户与认证错误
	service.ErrUserNotFound:    "用户不存在",
	service.ErrAPIKeyInvalid:   "API Key无效",
	auth.ErrInvalidUsername:    "用户名格式无效",
	auth.ErrUsernameExists:     "用户名已存在",
	auth.ErrUserNotFound:       "用户不存在",
	auth.ErrInvalidCredentials: "用户名或密码错误",
	auth.ErrUserInactive:       "账号已被禁用",
	auth.ErrWeakPassword:       "密码长度必须在8到72个字符之间",

	// 目录错误
	service.ErrPackageNotFound:     "套餐不存在",
	service.ErrPaymentInfoNotFound: "收款信息不存在",
}

// 业务错误 -> HTTP 状态码
var errorStatus = map[error]int{
	service.ErrLicenseNotFound: http.StatusNotFound,
	service.ErrLicenseExpired:  http.StatusGone,
	service.ErrNotOwner:        http.StatusForbidden,
	service.ErrNoIdentifiers:   http.StatusBadRequest,
	service.ErrBatchTooLarge:   http.StatusBadRequest,
	service.ErrInvalidDays:     http.StatusBadRequest,
	service.ErrQuotaExceeded:   http.StatusForbidden,

	service.ErrUserNotFound:    http.StatusNotFound,
	service.ErrAPIKeyInvalid:   http.StatusUnauthorized,
	auth.ErrInvalidUsername:    http.StatusBadRequest,
	auth.ErrUsernameExists:     http.StatusConflict,
	auth.ErrUserNotFound:       http.StatusNotFound,
	auth.ErrInvalidCredentials: http.StatusUnauthorized,
	auth.ErrUserInactive:       http.StatusForbidden,
	auth.ErrWeakPassword:       http.StatusBadRequest,

	service.ErrPackageNotFound:     http.StatusNotFound,
	service.ErrPaymentInfoNotFound: http.StatusNotFound,
}

// RespondError 将业务错误写成统一的错误响应
//
// 未登记的错误一律按 500 处理，不向客户端透出内部细节。
func RespondError(c *gin.Context, err error) {
	for sentinel, status := range errorStatus {
		if errors.Is(err, sentinel) {
			Error(c, status, errorMessages[sentinel])
			return
		}
	}
	InternalError(c, MsgInternalError)
}

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgAuthRequired     = "需要登录认证"
	MsgPermissionDenied = "权限不足"
	MsgPasswordTooWeak  = "密码长度必须在8到72个字符之间"
	MsgInternalError    = "服务器内部错误，请稍后重试"
)
