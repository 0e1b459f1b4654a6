package room

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/prom"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/session"
)

// Room 内存中的参考房间实现
// 只负责会话的连接状态和消息转发，游戏逻辑不在这里
type Room struct {
	name string
	seq  atomic.Int64

	mu        sync.RWMutex
	connected map[string]*session.PlayerSession

	handlers []session.EventHandler
}

var _ session.GameRoom = (*Room)(nil)

// New handlers会挂到每个新会话上，在房间自己的处理之后调用
func New(name string, handlers ...session.EventHandler) *Room {
	return &Room{
		name:      name,
		connected: make(map[string]*session.PlayerSession),
		handlers:  handlers,
	}
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) CreateSession(player session.Player) *session.PlayerSession {
	id := fmt.Sprintf("%s-%d", r.name, r.seq.Inc())
	handlers := append([]session.EventHandler{r.onEvent}, r.handlers...)
	return session.NewPlayerSession(id, player, r, handlers...)
}

func (r *Room) ConnectSession(s *session.PlayerSession) {
	r.mu.Lock()
	_, exists := r.connected[s.ID()]
	r.connected[s.ID()] = s
	r.mu.Unlock()
	if !exists {
		prom.SessionsConnected.Inc()
	}
	log.Debug("room %s: session %s connected", r.name, s.ID())
}

// DisconnectSession 连接断开，会话保留等待重连
func (r *Room) DisconnectSession(s *session.PlayerSession) {
	r.mu.Lock()
	_, exists := r.connected[s.ID()]
	delete(r.connected, s.ID())
	r.mu.Unlock()
	if exists {
		prom.SessionsConnected.Dec()
	}
	s.Transition(session.Connected, session.NotConnected)
	log.Debug("room %s: session %s disconnected", r.name, s.ID())
}

func (r *Room) OnLogin(s *session.PlayerSession) {
	log.Info("room %s: player %s logged in as %s", r.name, s.Player().ID(), s.ID())
}

// Sessions 当前在线的会话
func (r *Room) Sessions() []*session.PlayerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*session.PlayerSession, 0, len(r.connected))
	for _, s := range r.connected {
		all = append(all, s)
	}
	return all
}

func (r *Room) onEvent(s *session.PlayerSession, ev protocol.Event) {
	switch ev.Type {
	case protocol.NetworkMessage:
		r.broadcast(s, ev)
	case protocol.LogOut:
		r.logout(s)
	}
}

// broadcast 转发给其他在线会话，有副通道的走副通道
func (r *Room) broadcast(from *session.PlayerSession, ev protocol.Event) {
	for _, s := range r.Sessions() {
		if s == from || !s.Writable() {
			continue
		}
		if err := s.SendDatagram(ev); err != nil {
			log.Debug("room %s: fail to relay to %s: %v", r.name, s.ID(), err)
		}
	}
}

// logout 主动退出，不能再重连，副通道地址也一并释放
func (r *Room) logout(s *session.PlayerSession) {
	session.Release(s)
	if err := s.SendMessage(protocol.NewEvent(protocol.LogOutSuccess, nil)); err != nil {
		log.Debug("room %s: fail to ack logout of %s: %v", r.name, s.ID(), err)
	}
	r.DisconnectSession(s)
	s.SetWritable(false)
	s.CloseSenders()
	log.Info("room %s: session %s logged out", r.name, s.ID())
}
