package udp

import "errors"

// udp是无连接的，操作系统一次收一个完整的包，没有粘包问题
// 由于MTU的限制，单个包最好不要超过SafePackageSize

const (
	MaxPacketSize = 65535
	// SafePackageSize udp字节包安全长度
	SafePackageSize = 1500
)

var (
	ErrServerClosed = errors.New("udp server closed")
)
