package network

import "net"

// Session 每个连接在独立的协程里处理消息
type Session interface {
	// Run 阻塞通信循环
	Run()
	// OnClose 关闭连接回调
	OnClose()
}

// Conn 对于网络连接的抽象
type Conn interface {
	// ReadMsg 读取一个完整的消息帧，goroutine not safe
	ReadMsg() ([]byte, error)
	// WriteMsg 异步写，返回的Future在数据写入socket后完成
	WriteMsg(args ...[]byte) *Future
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	// Close 写完队列中的数据后关闭
	Close()
	// Destroy 立刻关闭，丢弃未写的数据
	Destroy()
}
