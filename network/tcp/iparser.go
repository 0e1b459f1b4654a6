package tcp

import "io"

// IParser 用于从tcp流数据中分离出整段消息，开放给外部自定义
type IParser interface {
	// Read 读取一个完整的消息体(不含长度头)
	Read(r io.Reader) ([]byte, error)
	// Pack 将多段数据打包成一个带长度头的消息帧
	Pack(args ...[]byte) ([]byte, error)
}
