package gate

import (
	"context"
	"net"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/network"
	"github.com/YiuTerran/go-gamegate/network/tcp"
	"github.com/YiuTerran/go-gamegate/protocol"
)

// TcpGate 二进制协议的TCP服务
type TcpGate struct {
	Gate
	//监听地址
	Addr string
	//最大连接数
	MaxConnNum int
	//每个连接的写队列长度
	PendingWriteNum int
	//二进制分包，默认2字节大端长度头
	BinaryParser tcp.IParser

	server *tcp.Server
	ready  chan struct{}
}

func (gate *TcpGate) Name() string {
	return "tcp-gate"
}

func (gate *TcpGate) OnInit() {
	if gate.Addr == "" {
		log.Fatal("tcp server addr not set")
	}
	gate.ready = make(chan struct{})
}

func (gate *TcpGate) Run(ctx context.Context) {
	codec := protocol.NewBinaryCodec()
	gate.server = &tcp.Server{
		Addr:            gate.Addr,
		MaxConnNum:      gate.MaxConnNum,
		PendingWriteNum: gate.PendingWriteNum,
		Parser:          gate.BinaryParser,
		NewSessionFunc: func(conn *tcp.Conn) network.Session {
			return gate.NewAgent(ctx, conn, codec)
		},
	}
	gate.server.Start()
	log.Info("tcp gate listening on %v", gate.server.ListenAddr())
	close(gate.ready)
	<-ctx.Done()
	gate.server.Close()
}

// ListenAddr 阻塞到服务启动
func (gate *TcpGate) ListenAddr() net.Addr {
	<-gate.ready
	return gate.server.ListenAddr()
}

func (gate *TcpGate) OnDestroy() {}
