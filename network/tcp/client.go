package tcp

import (
	"net"
	"time"
)

// Dial 建立单个连接，用于探测工具和测试
func Dial(addr string, timeout time.Duration, parser IParser) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	if parser == nil {
		parser = NewDefaultParser()
	}
	return newConn(conn, defaultPendingWriteNum, parser), nil
}
