package gate

import (
	"context"
	"net"
	"time"

	"go.uber.org/atomic"

	"github.com/YiuTerran/go-gamegate/admission"
	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/network"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/session"
)

// stage 连接的处理阶段
// session为nil时是准入阶段，否则是会话阶段
type stage struct {
	session *session.PlayerSession
	sender  *connSender
}

var admissionStage = &stage{}

// Agent 对各种网络协议连接的抽象，与network.Session配合
// 先处理准入，成功后整体切换到会话阶段
type Agent struct {
	ctx     context.Context
	conn    network.Conn
	codec   protocol.Codec
	handler *admission.Handler
	fields  log.Fields

	stage     atomic.Pointer[stage]
	admitting atomic.Bool
	timer     *time.Timer
}

var _ admission.Connection = (*Agent)(nil)

func newAgent(ctx context.Context, conn network.Conn, codec protocol.Codec,
	handler *admission.Handler, timeout time.Duration) *Agent {
	a := &Agent{
		ctx:     ctx,
		conn:    conn,
		codec:   codec,
		handler: handler,
		fields:  log.Fields{"remote": conn.RemoteAddr()}.WithPrefix(codec.Name()),
	}
	a.stage.Store(admissionStage)
	if timeout > 0 {
		a.timer = time.AfterFunc(timeout, a.admissionTimeout)
	}
	return a
}

func (a *Agent) admissionTimeout() {
	if a.stage.Load().session == nil {
		a.fields.Warn("admission timeout, close")
		a.conn.Close()
	}
}

// Run session数据的处理循环
// 这里出现真的错误才要断开连接
func (a *Agent) Run() {
	for {
		data, err := a.conn.ReadMsg()
		if err != nil {
			a.fields.Debug("read message error: %v", err)
			break
		}
		if len(data) == 0 {
			continue
		}
		st := a.stage.Load()
		if st.session == nil {
			a.admit(data)
			continue
		}
		ev, err := a.codec.DecodeEvent(data)
		if err != nil {
			a.fields.Warn("decode message error: %v", err)
			break
		}
		st.session.OnEvent(ev)
	}
}

// admit 准入阶段只处理第一帧，之后到达的帧丢弃，直到切换到会话阶段
func (a *Agent) admit(data []byte) {
	if !a.admitting.CompareAndSwap(false, true) {
		a.fields.Debug("drop frame during admission")
		return
	}
	if err := a.handler.Handle(a.ctx, a, data); err != nil {
		a.fields.Info("admission failed, %s: %v", admission.Reason(err), err)
	}
}

// OnClose 连接断开，如果还是在线会话的主连接，通知房间
func (a *Agent) OnClose() {
	a.stopTimer()
	st := a.stage.Load()
	if st.session == nil {
		return
	}
	s := st.session
	if s.DetachPrimary(st.sender) {
		s.Room().DisconnectSession(s)
		a.fields.Info("session %s disconnected", s.ID())
	}
}

func (a *Agent) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
	}
}

func (a *Agent) Codec() protocol.Codec {
	return a.codec
}

func (a *Agent) Write(ev protocol.Event) *network.Future {
	frame, err := a.codec.Encode(ev)
	if err != nil {
		a.fields.Error("encode %s error: %v", ev.Type, err)
		return network.CompletedFuture(err)
	}
	return a.conn.WriteMsg(frame)
}

// Rebind 一次原子操作把准入阶段换成会话阶段
func (a *Agent) Rebind(s *session.PlayerSession) session.Sender {
	a.stopTimer()
	sender := newConnSender(a)
	a.stage.Store(&stage{session: s, sender: sender})
	return sender
}

func (a *Agent) LocalAddr() net.Addr {
	return a.conn.LocalAddr()
}

func (a *Agent) RemoteAddr() net.Addr {
	return a.conn.RemoteAddr()
}

func (a *Agent) Close() {
	a.conn.Close()
}
