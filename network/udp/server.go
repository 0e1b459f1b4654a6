package udp

import (
	"errors"
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/YiuTerran/go-gamegate/base/log"
)

// Handler 处理单个数据包，data在回调返回后不会被复用
type Handler func(data []byte, addr net.Addr)

type Server struct {
	Addr string
	//发送失败后重试次数
	FailTry int
	Handler Handler

	conn   net.PacketConn
	wg     sync.WaitGroup
	closed atomic.Bool
}

func (server *Server) Start() {
	conn, err := net.ListenPacket("udp", server.Addr)
	if err != nil {
		log.Fatal("fail to bind udp port:%v", err)
	}
	if server.Handler == nil {
		log.Fatal("udp server Handler must not be nil")
	}
	if server.FailTry < 0 {
		server.FailTry = 0
	}
	server.conn = conn
	server.wg.Add(1)
	go server.listen()
}

// ListenAddr 实际监听的地址
func (server *Server) ListenAddr() net.Addr {
	return server.conn.LocalAddr()
}

func (server *Server) listen() {
	defer server.wg.Done()
	buffer := make([]byte, MaxPacketSize)
	for {
		n, addr, err := server.conn.ReadFrom(buffer)
		if err != nil {
			if server.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error("fail to read udp msg:%v", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buffer[:n])
		server.dispatch(data, addr)
	}
}

func (server *Server) dispatch(data []byte, addr net.Addr) {
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack("udp handler panic", r)
		}
	}()
	server.Handler(data, addr)
}

// WriteTo goroutine safe
func (server *Server) WriteTo(data []byte, addr net.Addr) error {
	if server.closed.Load() {
		return ErrServerClosed
	}
	var err error
	for count := server.FailTry; count >= 0; count-- {
		if _, err = server.conn.WriteTo(data, addr); err == nil {
			return nil
		}
		log.Error("fail to write udp to %v: %v", addr, err)
	}
	return err
}

func (server *Server) Close() {
	if !server.closed.CompareAndSwap(false, true) {
		return
	}
	_ = server.conn.Close()
	server.wg.Wait()
}
