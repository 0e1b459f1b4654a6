package session

import "github.com/YiuTerran/go-gamegate/protocol"

// Player 身份由外部解析，这里不关心结构
type Player interface {
	ID() string
}

// Sender 会话的出站通道
// Close必须幂等，旧连接断开和房间清理都可能调用
type Sender interface {
	SendMessage(ev protocol.Event) error
	Close()
}

// GameRoom 房间内部的调度不在准入层范围内
type GameRoom interface {
	Name() string
	CreateSession(player Player) *PlayerSession
	ConnectSession(s *PlayerSession)
	DisconnectSession(s *PlayerSession)
	OnLogin(s *PlayerSession)
}

// EventHandler 会话级别的事件处理，一般由房间注册
type EventHandler func(s *PlayerSession, ev protocol.Event)
