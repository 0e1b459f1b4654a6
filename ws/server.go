package ws

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/base/structs/set"
	"github.com/YiuTerran/go-gamegate/network"
)

const (
	defaultMaxMsgLen       = 1024000
	defaultHTTPTimeout     = 10 * time.Second
	defaultPendingWriteNum = 128
	defaultPath            = "/ws"
)

var (
	ErrMsgTooLong  = errors.New("message too long")
	ErrMsgTooShort = errors.New("message too short")
)

// Server websocket服务端，和其他http路由共用一个端口
type Server struct {
	Addr string
	// 默认/ws
	Path            string
	MaxMsgLen       uint32
	PendingWriteNum int
	HTTPTimeout     time.Duration
	CertFile        string
	KeyFile         string
	NewSessionFunc  func(*Conn) network.Session
	TextFormat      bool
	Routes          func(r *mux.Router)

	ln         net.Listener
	httpServer *http.Server
	upgrade    *upgradeHandler
}

// upgradeHandler 升级为websocket后在当前请求协程里跑Session
type upgradeHandler struct {
	server   *Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  *set.Set[*websocket.Conn]
	closed bool
	wg     sync.WaitGroup
}

// getRealIP 经过反向代理时取客户端真实ip
func getRealIP(req *http.Request) net.Addr {
	ip := req.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = req.Header.Get("X-Real-IP")
	}
	if ip == "" {
		return nil
	}
	first, _, _ := strings.Cut(ip, ",")
	if q := net.ParseIP(strings.TrimSpace(first)); q != nil {
		return &net.IPAddr{IP: q}
	}
	return nil
}

func (h *upgradeHandler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns.AddItem(conn)
	h.wg.Add(1)
	return true
}

func (h *upgradeHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns.RemoveItem(conn)
	h.mu.Unlock()
	h.wg.Done()
}

func (h *upgradeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("upgrade error: %v", err)
		return
	}
	if !h.track(conn) {
		_ = conn.Close()
		return
	}
	s := h.server
	conn.SetReadLimit(int64(s.MaxMsgLen))
	wsConn := newWSConn(conn, s.PendingWriteNum, s.MaxMsgLen, s.TextFormat)
	wsConn.remoteOriginIP = getRealIP(r)
	session := s.NewSessionFunc(wsConn)
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack("ws session panic", r)
		}
		wsConn.Close()
		h.untrack(conn)
		session.OnClose()
	}()
	session.Run()
}

// closeAll 之后新升级的连接直接关闭
func (h *upgradeHandler) closeAll() {
	h.mu.Lock()
	h.closed = true
	h.conns.ForEach(func(conn *websocket.Conn) {
		_ = conn.Close()
	})
	h.mu.Unlock()
	h.wg.Wait()
}

func (server *Server) init() {
	if server.NewSessionFunc == nil {
		log.Fatal("NewSessionFunc must not be nil")
	}
	if server.MaxMsgLen == 0 {
		server.MaxMsgLen = defaultMaxMsgLen
	}
	if server.HTTPTimeout <= 0 {
		server.HTTPTimeout = defaultHTTPTimeout
	}
	if server.PendingWriteNum <= 0 {
		server.PendingWriteNum = defaultPendingWriteNum
	}
	if server.Path == "" {
		server.Path = defaultPath
	}
	server.upgrade = &upgradeHandler{
		server: server,
		conns:  set.NewSet[*websocket.Conn](),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: server.HTTPTimeout,
			CheckOrigin:      func(_ *http.Request) bool { return true },
		},
	}
}

// Handler websocket挂在Path上，其他路由由Routes挂载
func (server *Server) Handler() http.Handler {
	if server.upgrade == nil {
		server.init()
	}
	router := mux.NewRouter()
	router.Handle(server.Path, server.upgrade).Methods(http.MethodGet)
	if server.Routes != nil {
		server.Routes(router)
	}
	return router
}

func (server *Server) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, err
	}
	if server.CertFile == "" && server.KeyFile == "" {
		return ln, nil
	}
	cert, err := tls.LoadX509KeyPair(server.CertFile, server.KeyFile)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return tls.NewListener(ln, &tls.Config{
		NextProtos:   []string{"http/1.1"},
		Certificates: []tls.Certificate{cert},
	}), nil
}

func (server *Server) Start() {
	handler := server.Handler()
	ln, err := server.listen()
	if err != nil {
		log.Fatal("fail to start ws server: %v", err)
	}
	server.ln = ln
	server.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: server.HTTPTimeout,
		MaxHeaderBytes:    4096,
	}
	go func() {
		if err := server.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("websocket server exit: %v", err)
		}
	}()
}

// ListenAddr 实际监听的地址
func (server *Server) ListenAddr() net.Addr {
	return server.ln.Addr()
}

func (server *Server) Close() {
	_ = server.httpServer.Close()
	server.upgrade.closeAll()
}
