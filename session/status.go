package session

// Status 准入层只关心这三个状态，房间可以在准入之后自行扩展
type Status int32

const (
	NotConnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case NotConnected:
		return "NOT_CONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	}
	return "UNKNOWN"
}

// legal 合法的状态迁移
// Connecting->NotConnected 只用于重连确认写失败时回滚
var legal = map[Status][]Status{
	NotConnected: {Connecting},
	Connecting:   {Connected, NotConnected},
	Connected:    {NotConnected},
}

func canTransit(from, to Status) bool {
	for _, s := range legal[from] {
		if s == to {
			return true
		}
	}
	return false
}
