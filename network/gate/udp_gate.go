package gate

import (
	"context"
	"errors"
	"net"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/network/udp"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/session"
)

// 由于UDP没有连接，副通道只能靠登录时上报的地址找到会话
// 地址没有登记过的数据包直接丢弃

var errSenderClosed = errors.New("sender closed")

type UdpGate struct {
	//监听地址
	Addr string
	//失败重试次数，默认0
	FailTry int
	//登录时登记的副通道地址
	Addresses *session.AddressRegistry
	//绑定副通道时回调，一般用于监控
	OnBind func(s *session.PlayerSession, addr net.Addr)

	codec  protocol.Codec
	server *udp.Server
	ready  chan struct{}
}

func (u *UdpGate) Name() string {
	return "udp-gate"
}

func (u *UdpGate) OnInit() {
	if u.Addr == "" {
		log.Fatal("udp server listen addr not set")
	}
	if u.Addresses == nil {
		log.Fatal("udp gate needs an address registry")
	}
	u.codec = protocol.NewBinaryCodec()
	u.ready = make(chan struct{})
}

func (u *UdpGate) Run(ctx context.Context) {
	u.server = &udp.Server{
		Addr:    u.Addr,
		FailTry: u.FailTry,
		Handler: u.handle,
	}
	u.server.Start()
	log.Info("udp gate listening on %v", u.server.ListenAddr())
	close(u.ready)
	<-ctx.Done()
	u.server.Close()
}

func (u *UdpGate) handle(data []byte, addr net.Addr) {
	s, ok := u.Addresses.Get(addr)
	if !ok {
		log.Debug("drop datagram from unknown address %v", addr)
		return
	}
	ev, err := u.codec.DecodeEvent(data)
	if err != nil {
		log.Debug("drop malformed datagram from %v: %v", addr, err)
		return
	}
	u.bind(s, addr)
	s.OnEvent(ev)
}

// bind 第一个数据包到达时才绑定副通道，地址变化时替换
func (u *UdpGate) bind(s *session.PlayerSession, addr net.Addr) {
	if cur, ok := s.SecondarySender().(*datagramSender); ok && !cur.closed.Load() && cur.addr.String() == addr.String() {
		return
	}
	s.SetSecondarySender(&datagramSender{server: u.server, addr: addr, codec: u.codec})
	if u.OnBind != nil {
		u.OnBind(s, addr)
	}
	log.Debug("session %s secondary sender bound to %v", s.ID(), addr)
}

// ListenAddr 阻塞到服务启动
func (u *UdpGate) ListenAddr() net.Addr {
	<-u.ready
	return u.server.ListenAddr()
}

func (u *UdpGate) OnDestroy() {}
