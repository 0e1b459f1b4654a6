package admission

import (
	"errors"

	"github.com/YiuTerran/go-gamegate/base/structs/errs"
)

// 所有错误都在连接边界处理，不会影响其他连接和注册表
var (
	ErrAuthentication    = errs.New(errs.AuthError, "authentication failed")
	ErrRoomResolution    = errs.New(errs.NotExist, "room not found")
	ErrReconnectRejected = errs.New(errs.NotAllowed, "reconnect rejected")
	ErrProtocolViolation = errs.New(errs.ParamError, "protocol violation")
	ErrWriteFailure      = errs.New(errs.IOError, "write failure")
)

// Reason 用于日志和监控的简短分类
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthentication):
		return "auth"
	case errors.Is(err, ErrRoomResolution):
		return "room"
	case errors.Is(err, ErrReconnectRejected):
		return "rejected"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol"
	case errors.Is(err, ErrWriteFailure):
		return "write"
	}
	return "unknown"
}
