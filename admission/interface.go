package admission

import (
	"context"
	"net"

	"github.com/YiuTerran/go-gamegate/base/util/byteutil"
	"github.com/YiuTerran/go-gamegate/network"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/session"
)

// Connection 准入阶段看到的连接
type Connection interface {
	Codec() protocol.Codec
	// Write 异步写，返回的Future在写完或者连接关闭时完成
	Write(ev protocol.Event) *network.Future
	Close()
	RemoteAddr() net.Addr
	// Rebind 移除准入阶段，安装会话阶段，返回包装该连接的主sender
	Rebind(s *session.PlayerSession) session.Sender
}

// IdentityResolver 解析失败时返回nil或者error都视为失败
type IdentityResolver interface {
	ResolvePlayer(ctx context.Context, creds protocol.Credentials) (session.Player, error)
	ResolveRoom(ctx context.Context, ref string) (session.GameRoom, error)
}

type IdGenerator interface {
	Generate() string
}

// UUIDGenerator 默认的重连key，32位不带横线的uuid
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string {
	return byteutil.SimpleUUID4()
}

// Observer 准入结果的回调，一般用于监控
type Observer interface {
	AdmissionDone(transport string, event protocol.Opcode, err error)
	SecondaryBound()
}

type nopObserver struct{}

func (nopObserver) AdmissionDone(string, protocol.Opcode, error) {}
func (nopObserver) SecondaryBound()                              {}
