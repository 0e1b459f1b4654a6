package admission

import (
	"context"
	"net"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/base/structs/errs"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/session"
)

// Handler 与传输无关的准入状态机，二进制和文本协议共用
// 每个连接只会调用一次Handle，调用方的协程会在确认帧写完之前阻塞
type Handler struct {
	resolver   IdentityResolver
	ids        IdGenerator
	reconnects *session.ReconnectRegistry
	addresses  *session.AddressRegistry
	observer   Observer
}

type Option func(h *Handler)

func WithIdGenerator(ids IdGenerator) Option {
	return func(h *Handler) {
		h.ids = ids
	}
}

func WithObserver(o Observer) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

func NewHandler(resolver IdentityResolver, reconnects *session.ReconnectRegistry,
	addresses *session.AddressRegistry, opts ...Option) *Handler {
	h := &Handler{
		resolver:   resolver,
		ids:        UUIDGenerator{},
		reconnects: reconnects,
		addresses:  addresses,
		observer:   nopObserver{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle 处理新连接上的第一帧
func (h *Handler) Handle(ctx context.Context, conn Connection, frame []byte) (err error) {
	codec := conn.Codec()
	fields := log.Fields{"remote": conn.RemoteAddr(), "codec": codec.Name()}.WithPrefix("admission")
	ev, err := codec.DecodeEvent(frame)
	if err != nil {
		return h.abort(conn, fields, err)
	}
	defer func() {
		h.observer.AdmissionDone(codec.Name(), ev.Type, err)
	}()
	fields.Debug("receive %s", ev.Type)
	if !ev.Type.IsAdmission() {
		fields.Warn("unexpected first event %s", ev.Type)
		h.reject(conn, protocol.LogInFailure)
		return errs.Wrap(ErrProtocolViolation, nil, "unexpected first event %s", ev.Type)
	}
	if ev.Type == protocol.Reconnect {
		req, err := codec.DecodeReconnect(ev.Payload)
		if err != nil {
			return h.abort(conn, fields, err)
		}
		return h.resume(ctx, conn, fields, req)
	}
	req, err := codec.DecodeLogin(ev.Payload)
	if err != nil {
		return h.abort(conn, fields, err)
	}
	return h.login(ctx, conn, fields, req)
}

// abort 解码失败，无法构造应答，直接断开
func (h *Handler) abort(conn Connection, fields log.Fields, cause error) error {
	fields.Warn("malformed admission frame: %v", cause)
	conn.Close()
	return errs.Wrap(ErrProtocolViolation, cause, "decode")
}

// reject 写失败帧，写完之后关闭连接
func (h *Handler) reject(conn Connection, op protocol.Opcode) {
	conn.Write(protocol.NewEvent(op, nil)).Then(func(error) {
		conn.Close()
	})
}

func (h *Handler) login(ctx context.Context, conn Connection, fields log.Fields, req protocol.LoginRequest) error {
	player, err := h.resolver.ResolvePlayer(ctx, req.Credentials)
	if err != nil || player == nil {
		fields.Warn("login failed, %v: %v", req.Credentials, err)
		h.reject(conn, protocol.LogInFailure)
		return errs.Wrap(ErrAuthentication, err, "user %s", req.Username)
	}
	fields = fields.With("player", player.ID())
	// 写队列是有序的，join确认写成功意味着登录确认也已经写出
	conn.Write(protocol.NewEvent(protocol.LogInSuccess, nil))
	return h.join(ctx, conn, fields, player, req.RoomRef, req.Secondary)
}

func (h *Handler) join(ctx context.Context, conn Connection, fields log.Fields,
	player session.Player, roomRef string, secondary *net.UDPAddr) error {
	room, err := h.resolver.ResolveRoom(ctx, roomRef)
	if err != nil || room == nil {
		fields.Warn("room %q not found: %v", roomRef, err)
		h.reject(conn, protocol.GameRoomJoinFailure)
		return errs.Wrap(ErrRoomResolution, err, "room %q", roomRef)
	}
	s := room.CreateSession(player)
	key := h.ids.Generate()
	s.SetAttribute(session.AttrReconnectKey, key)
	s.SetAttribute(session.AttrReconnectRegistry, h.reconnects)
	if h.addresses != nil {
		s.SetAttribute(session.AttrAddressRegistry, h.addresses)
	}

	if err = conn.Write(protocol.NewEvent(protocol.GameRoomJoinSuccess, key)).Wait(ctx); err != nil {
		// 会话已经创建但没有绑定连接，由房间负责回收
		fields.Warn("fail to ack join of room %s: %v", room.Name(), err)
		conn.Close()
		return errs.Wrap(ErrWriteFailure, err, "join ack")
	}
	if !s.Transition(session.NotConnected, session.Connecting) {
		fields.Warn("new session %s in unexpected status %s", s.ID(), s.Status())
	}
	sender := conn.Rebind(s)
	s.SetPrimarySender(sender)
	room.ConnectSession(s)
	s.Transition(session.Connecting, session.Connected)
	s.SetWritable(true)
	if err = sender.SendMessage(protocol.NewEvent(protocol.Start, nil)); err != nil {
		fields.Warn("fail to send start: %v", err)
	}
	room.OnLogin(s)
	h.reconnects.Put(key, s)
	h.bindSecondary(fields, s, secondary)
	fields.Info("session %s joined room %s", s.ID(), room.Name())
	return nil
}

func (h *Handler) resume(ctx context.Context, conn Connection, fields log.Fields, req protocol.ReconnectRequest) error {
	s, ok := h.reconnects.Get(req.Key)
	if !ok {
		fields.Warn("unknown reconnect key")
		h.reject(conn, protocol.LogInFailure)
		return errs.Wrap(ErrReconnectRejected, nil, "unknown key")
	}
	fields = fields.With("session", s.ID())
	if !s.Transition(session.NotConnected, session.Connecting) {
		fields.Warn("reconnect rejected, session is %s", s.Status())
		h.reject(conn, protocol.LogInFailure)
		return errs.Wrap(ErrReconnectRejected, nil, "session %s is %s", s.ID(), s.Status())
	}
	if err := conn.Write(protocol.NewEvent(protocol.LogInSuccess, nil)).Wait(ctx); err != nil {
		s.Transition(session.Connecting, session.NotConnected)
		fields.Warn("fail to ack reconnect: %v", err)
		conn.Close()
		return errs.Wrap(ErrWriteFailure, err, "reconnect ack")
	}
	room := s.Room()
	room.DisconnectSession(s)
	s.SetSecondarySender(nil)

	// 替换主连接时旧连接才关闭，旧连接的OnClose看到的已经是新的sender
	sender := conn.Rebind(s)
	s.SetPrimarySender(sender)
	room.ConnectSession(s)
	s.Transition(session.Connecting, session.Connected)
	s.SetWritable(true)
	s.OnEvent(protocol.NewEvent(protocol.Reconnect, sender))
	h.bindSecondary(fields, s, req.Secondary)
	fields.Info("session %s rejoined room %s", s.ID(), room.Name())
	return nil
}

// bindSecondary 副通道是可选的，没有地址就跳过
func (h *Handler) bindSecondary(fields log.Fields, s *session.PlayerSession, addr *net.UDPAddr) {
	if addr == nil || h.addresses == nil {
		return
	}
	h.addresses.Put(addr, s)
	h.observer.SecondaryBound()
	fields.Debug("secondary address %v bound", addr)
}
