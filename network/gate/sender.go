package gate

import (
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/YiuTerran/go-gamegate/network/udp"
	"github.com/YiuTerran/go-gamegate/protocol"
)

// connSender 会话的主连接
type connSender struct {
	agent *Agent
	once  sync.Once
}

func newConnSender(a *Agent) *connSender {
	return &connSender{agent: a}
}

// SendMessage 只返回立即可知的错误，比如连接已关闭或者队列已满
func (s *connSender) SendMessage(ev protocol.Event) error {
	return s.agent.Write(ev).Err()
}

func (s *connSender) Close() {
	s.once.Do(s.agent.Close)
}

// datagramSender 副通道，通过udp server回写到客户端地址
type datagramSender struct {
	server *udp.Server
	addr   net.Addr
	codec  protocol.Codec
	closed atomic.Bool
}

func (s *datagramSender) SendMessage(ev protocol.Event) error {
	if s.closed.Load() {
		return errSenderClosed
	}
	frame, err := s.codec.Encode(ev)
	if err != nil {
		return err
	}
	return s.server.WriteTo(frame, s.addr)
}

// Close 只是不再使用这个地址，udp server本身不受影响
func (s *datagramSender) Close() {
	s.closed.Store(true)
}
