package gate

import (
	"context"
	"time"

	"github.com/YiuTerran/go-gamegate/admission"
	"github.com/YiuTerran/go-gamegate/network"
	"github.com/YiuTerran/go-gamegate/protocol"
)

// Gate 各种传输协议共用的准入配置
type Gate struct {
	// 准入状态机，所有连接共用
	Handler *admission.Handler
	// 连接建立后多久没有完成准入就断开，0表示不限制
	AdmissionTimeout time.Duration
}

// NewAgent 每个连接一个agent，连接断开后丢弃
func (g *Gate) NewAgent(ctx context.Context, conn network.Conn, codec protocol.Codec) *Agent {
	return newAgent(ctx, conn, codec, g.Handler, g.AdmissionTimeout)
}
