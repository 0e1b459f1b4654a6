package tcp

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/base/structs/set"
	"github.com/YiuTerran/go-gamegate/network"
)

const (
	defaultPendingWriteNum = 128
	maxAcceptDelay         = time.Second
)

// Server 每个连接一个协程跑Session.Run，退出后回调OnClose
type Server struct {
	Addr            string
	MaxConnNum      int
	PendingWriteNum int
	NewSessionFunc  func(*Conn) network.Session
	Parser          IParser

	ln      net.Listener
	mu      sync.Mutex
	conns   *set.Set[net.Conn]
	wgLn    sync.WaitGroup
	wgConns sync.WaitGroup
}

func (server *Server) Start() {
	if server.NewSessionFunc == nil {
		log.Fatal("NewSessionFunc must not be nil")
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatal("fail to start tcp server:%v", err)
	}
	if server.PendingWriteNum <= 0 {
		server.PendingWriteNum = defaultPendingWriteNum
	}
	if server.Parser == nil {
		server.Parser = NewDefaultParser()
	}
	server.ln = ln
	server.conns = set.NewSet[net.Conn]()
	server.wgLn.Add(1)
	go server.acceptLoop()
}

// ListenAddr 实际监听的地址，端口为0时有用
func (server *Server) ListenAddr() net.Addr {
	return server.ln.Addr()
}

// nextDelay 临时错误退避，5ms起翻倍，最多1s
func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(d*2, maxAcceptDelay)
}

func (server *Server) acceptLoop() {
	defer server.wgLn.Done()

	var delay time.Duration
	for {
		conn, err := server.ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() {
				delay = nextDelay(delay)
				log.Info("accept error: %v; retrying in %v", err, delay)
				time.Sleep(delay)
				continue
			}
			return
		}
		delay = 0
		if !server.track(conn) {
			_ = conn.Close()
			log.Warn("too many tcp connections, reject %v", conn.RemoteAddr())
			continue
		}
		server.wgConns.Add(1)
		go server.serve(conn)
	}
}

func (server *Server) track(conn net.Conn) bool {
	server.mu.Lock()
	defer server.mu.Unlock()
	if server.MaxConnNum > 0 && server.conns.Size() >= server.MaxConnNum {
		return false
	}
	server.conns.AddItem(conn)
	return true
}

func (server *Server) untrack(conn net.Conn) {
	server.mu.Lock()
	server.conns.RemoveItem(conn)
	server.mu.Unlock()
}

func (server *Server) serve(conn net.Conn) {
	defer server.wgConns.Done()

	tcpConn := newConn(conn, server.PendingWriteNum, server.Parser)
	session := server.NewSessionFunc(tcpConn)
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack("tcp session panic", r)
		}
		tcpConn.Close()
		server.untrack(conn)
		session.OnClose()
	}()
	session.Run()
}

// Close 停止accept并断开所有连接，等待所有Session退出
func (server *Server) Close() {
	_ = server.ln.Close()
	server.wgLn.Wait()

	server.mu.Lock()
	server.conns.ForEach(func(conn net.Conn) {
		_ = conn.Close()
	})
	server.mu.Unlock()
	server.wgConns.Wait()
}
