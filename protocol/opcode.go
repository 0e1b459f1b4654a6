package protocol

import "fmt"

// Opcode 单字节指令，二进制和文本协议共用同一套取值
type Opcode byte

const (
	LogIn               Opcode = 0x08
	LogOut              Opcode = 0x0a
	LogInSuccess        Opcode = 0x0b
	LogInFailure        Opcode = 0x0c
	LogOutSuccess       Opcode = 0x0e
	GameRoomJoinSuccess Opcode = 0x18
	GameRoomJoinFailure Opcode = 0x19
	Start               Opcode = 0x1a
	Stop                Opcode = 0x1b
	SessionMessage      Opcode = 0x1c
	NetworkMessage      Opcode = 0x1d
	Disconnect          Opcode = 0x22
	Reconnect           Opcode = 0x3d
)

var opcodeNames = map[Opcode]string{
	LogIn:               "LOG_IN",
	LogOut:              "LOG_OUT",
	LogInSuccess:        "LOG_IN_SUCCESS",
	LogInFailure:        "LOG_IN_FAILURE",
	LogOutSuccess:       "LOG_OUT_SUCCESS",
	GameRoomJoinSuccess: "GAME_ROOM_JOIN_SUCCESS",
	GameRoomJoinFailure: "GAME_ROOM_JOIN_FAILURE",
	Start:               "START",
	Stop:                "STOP",
	SessionMessage:      "SESSION_MESSAGE",
	NetworkMessage:      "NETWORK_MESSAGE",
	Disconnect:          "DISCONNECT",
	Reconnect:           "RECONNECT",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(0x%02x)", byte(o))
}

// IsAdmission 新连接的第一个事件只能是登录或重连
func (o Opcode) IsAdmission() bool {
	return o == LogIn || o == Reconnect
}
