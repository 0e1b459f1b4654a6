package ws

import (
	"context"
	"net"
	"time"

	"github.com/gorilla/mux"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/network"
	"github.com/YiuTerran/go-gamegate/network/gate"
	"github.com/YiuTerran/go-gamegate/protocol"
)

// ServerGate websocket的服务端封装，用来实现Module
// 每个文本帧一个json事件
type ServerGate struct {
	gate.Gate
	MaxMsgLen       uint32
	PendingWriteNum int
	Routes          func(r *mux.Router)

	Addr        string
	Path        string
	HTTPTimeout time.Duration
	CertFile    string
	KeyFile     string

	server *Server
	ready  chan struct{}
}

func (sg *ServerGate) Name() string {
	return "ws-gate"
}

func (sg *ServerGate) OnInit() {
	if sg.Addr == "" {
		log.Fatal("ws server addr not set")
	}
	sg.ready = make(chan struct{})
}

func (sg *ServerGate) Run(ctx context.Context) {
	codec := protocol.NewTextCodec()
	sg.server = &Server{
		Addr:            sg.Addr,
		Path:            sg.Path,
		MaxMsgLen:       sg.MaxMsgLen,
		PendingWriteNum: sg.PendingWriteNum,
		HTTPTimeout:     sg.HTTPTimeout,
		CertFile:        sg.CertFile,
		KeyFile:         sg.KeyFile,
		TextFormat:      true,
		Routes:          sg.Routes,
		NewSessionFunc: func(conn *Conn) network.Session {
			return sg.NewAgent(ctx, conn, codec)
		},
	}
	sg.server.Start()
	log.Info("ws gate listening on %v%s", sg.server.ListenAddr(), sg.server.Path)
	close(sg.ready)
	<-ctx.Done()
	sg.server.Close()
}

// ListenAddr 阻塞到服务启动
func (sg *ServerGate) ListenAddr() net.Addr {
	<-sg.ready
	return sg.server.ListenAddr()
}

func (sg *ServerGate) OnDestroy() {}
