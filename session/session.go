package session

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/base/structs/syncmap"
	"github.com/YiuTerran/go-gamegate/protocol"
)

const (
	AttrReconnectKey      = "RECONNECT_KEY"
	AttrReconnectRegistry = "RECONNECT_REGISTRY"
	AttrAddressRegistry   = "ADDRESS_REGISTRY"
)

// PlayerSession 玩家的逻辑会话，重连时复用，只替换底层连接
type PlayerSession struct {
	id     string
	player Player
	room   GameRoom

	status   atomic.Int32
	writable atomic.Bool

	mu        sync.Mutex
	primary   Sender
	secondary Sender

	attrs    syncmap.Map[string, any]
	handlers []EventHandler
}

func NewPlayerSession(id string, player Player, room GameRoom, handlers ...EventHandler) *PlayerSession {
	s := &PlayerSession{
		id:       id,
		player:   player,
		room:     room,
		handlers: handlers,
	}
	s.status.Store(int32(NotConnected))
	return s
}

func (s *PlayerSession) ID() string {
	return s.id
}

func (s *PlayerSession) Player() Player {
	return s.player
}

func (s *PlayerSession) Room() GameRoom {
	return s.room
}

func (s *PlayerSession) Status() Status {
	return Status(s.status.Load())
}

// Transition 原子的状态迁移，只有当前状态是from时才成功
// 重连的并发保护就靠这一步的CAS
func (s *PlayerSession) Transition(from, to Status) bool {
	if !canTransit(from, to) {
		log.Warn("session %s illegal transition %s->%s", s.id, from, to)
		return false
	}
	return s.status.CompareAndSwap(int32(from), int32(to))
}

func (s *PlayerSession) Writable() bool {
	return s.writable.Load()
}

func (s *PlayerSession) SetWritable(w bool) {
	s.writable.Store(w)
}

// SetPrimarySender 同一时间只能有一个主连接，旧的先关掉
func (s *PlayerSession) SetPrimarySender(sender Sender) {
	s.mu.Lock()
	old := s.primary
	s.primary = sender
	s.mu.Unlock()
	if old != nil && old != sender {
		old.Close()
	}
}

func (s *PlayerSession) SetSecondarySender(sender Sender) {
	s.mu.Lock()
	old := s.secondary
	s.secondary = sender
	s.mu.Unlock()
	if old != nil && old != sender {
		old.Close()
	}
}

func (s *PlayerSession) PrimarySender() Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

func (s *PlayerSession) SecondarySender() Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secondary
}

// DetachPrimary 主连接断开时调用
// 只有sender仍是主连接且会话处于Connected时才标记为不可写并返回true，
// 重连过程中旧连接的断开不会影响新绑定
func (s *PlayerSession) DetachPrimary(sender Sender) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sender == nil || s.primary != sender || s.Status() != Connected {
		return false
	}
	s.writable.Store(false)
	return true
}

// CloseSenders 关闭当前绑定的连接，sender保留在会话上，Close是幂等的
func (s *PlayerSession) CloseSenders() {
	s.mu.Lock()
	primary, secondary := s.primary, s.secondary
	s.mu.Unlock()
	if primary != nil {
		primary.Close()
	}
	if secondary != nil {
		secondary.Close()
	}
}

// SetAttribute 只能写一次，已存在时返回false
func (s *PlayerSession) SetAttribute(key string, value any) bool {
	_, loaded := s.attrs.LoadOrStore(key, value)
	return !loaded
}

func (s *PlayerSession) Attribute(key string) (any, bool) {
	return s.attrs.Load(key)
}

// SendMessage 优先走主连接
func (s *PlayerSession) SendMessage(ev protocol.Event) error {
	sender := s.PrimarySender()
	if sender == nil {
		return fmt.Errorf("session %s has no primary sender", s.id)
	}
	return sender.SendMessage(ev)
}

// SendDatagram 有副通道时走副通道，否则退回主连接
func (s *PlayerSession) SendDatagram(ev protocol.Event) error {
	if sender := s.SecondarySender(); sender != nil {
		return sender.SendMessage(ev)
	}
	return s.SendMessage(ev)
}

// OnEvent 会话收到的事件
// Reconnect事件携带新的主连接，先通知客户端继续游戏，再交给房间
func (s *PlayerSession) OnEvent(ev protocol.Event) {
	if ev.Type == protocol.Reconnect {
		if sender, ok := ev.Payload.(Sender); ok {
			if err := sender.SendMessage(protocol.NewEvent(protocol.Start, nil)); err != nil {
				log.Warn("session %s fail to send start after reconnect: %v", s.id, err)
			}
		}
	}
	for _, h := range s.handlers {
		h(s, ev)
	}
}

func (s *PlayerSession) String() string {
	return fmt.Sprintf("PlayerSession{%s, %s}", s.id, s.Status())
}
