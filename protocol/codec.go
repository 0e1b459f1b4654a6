package protocol

import "github.com/YiuTerran/go-gamegate/base/structs/errs"

var (
	ErrEmptyFrame     = errs.New(errs.ParamError, "empty frame")
	ErrMalformedFrame = errs.New(errs.ParamError, "malformed frame")
	ErrPayloadType    = errs.New(errs.ParamError, "unexpected payload type")
)

// Codec 每种传输协议只需要提供编解码，准入逻辑是共用的
type Codec interface {
	Name() string
	// DecodeEvent 只解析指令，payload保持原样
	DecodeEvent(frame []byte) (Event, error)
	DecodeLogin(payload any) (LoginRequest, error)
	DecodeReconnect(payload any) (ReconnectRequest, error)
	Encode(ev Event) ([]byte, error)
	EncodeLogin(req LoginRequest) ([]byte, error)
	EncodeReconnect(req ReconnectRequest) ([]byte, error)
}
