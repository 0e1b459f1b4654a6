package protocol

import (
	"fmt"
	"net"
)

// Event 与传输无关的事件
// Payload 由Type决定：
//   - 解码得到的事件：二进制协议为[]byte，文本协议为json.RawMessage
//   - GameRoomJoinSuccess：重连key(string)
//   - 服务端内部的Reconnect事件：新的Sender
type Event struct {
	Type    Opcode
	Payload any
}

func NewEvent(t Opcode, payload any) Event {
	return Event{Type: t, Payload: payload}
}

func (e Event) String() string {
	return fmt.Sprintf("Event{%s}", e.Type)
}

type Credentials struct {
	Username string
	Password string
}

// String 不输出密码
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{%s, ******}", c.Username)
}

type LoginRequest struct {
	Credentials
	RoomRef string
	// 可选的UDP副通道地址
	Secondary *net.UDPAddr
}

type ReconnectRequest struct {
	Key       string
	Secondary *net.UDPAddr
}
