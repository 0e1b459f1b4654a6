package errs

import "fmt"

// 状态码，同一类错误用同一个状态码，方便errors.Is判断
const (
	OK              = 0
	UnknownError    = 1
	ClientError     = 2
	ThirdPartyError = 4
	IOError         = 5
	ParamError      = 10
	NotAllowed      = 11
	AuthError       = 14
	NotExist        = 15
)

type Error struct {
	Msg    string `json:"msg"`
	Status int    `json:"status"`
	cause  error
}

func New(status int, msg string) *Error {
	return &Error{Status: status, Msg: msg}
}

// Wrap 保留status，附加上下文信息和原始错误
func Wrap(kind *Error, cause error, format string, a ...any) *Error {
	return &Error{
		Status: kind.Status,
		Msg:    kind.Msg + ": " + fmt.Sprintf(format, a...),
		cause:  cause,
	}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("status:%d, msg:%s, cause:%v", e.Status, e.Msg, e.cause)
	}
	return fmt.Sprintf("status:%d, msg:%s", e.Status, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is 同status即认为是同一类错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == e.Status
}
