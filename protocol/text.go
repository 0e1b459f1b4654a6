package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/YiuTerran/go-gamegate/base/structs/errs"
)

// TextCodec 每个websocket文本帧一个json对象：{"type": <int>, "source": <value>}
// 登录的source是[username, password, roomRef]，重连的source是key字符串
type TextCodec struct{}

type textFrame struct {
	Type   *int            `json:"type"`
	Source json.RawMessage `json:"source"`
}

type textOut struct {
	Type   int `json:"type"`
	Source any `json:"source"`
}

func NewTextCodec() *TextCodec {
	return &TextCodec{}
}

func (c *TextCodec) Name() string {
	return "text"
}

func (c *TextCodec) DecodeEvent(frame []byte) (Event, error) {
	if len(bytes.TrimSpace(frame)) == 0 {
		return Event{}, ErrEmptyFrame
	}
	var f textFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return Event{}, errs.Wrap(ErrMalformedFrame, err, "json")
	}
	if f.Type == nil || *f.Type < 0 || *f.Type > 0xff {
		return Event{}, errs.Wrap(ErrMalformedFrame, nil, "invalid type")
	}
	return Event{Type: Opcode(*f.Type), Payload: f.Source}, nil
}

func (c *TextCodec) DecodeLogin(payload any) (LoginRequest, error) {
	raw, err := rawSource(payload)
	if err != nil {
		return LoginRequest{}, err
	}
	var fields []string
	if err = json.Unmarshal(raw, &fields); err != nil {
		return LoginRequest{}, errs.Wrap(ErrMalformedFrame, err, "login source")
	}
	if len(fields) < 3 {
		return LoginRequest{}, errs.Wrap(ErrMalformedFrame, nil, "login source needs 3 fields, got %d", len(fields))
	}
	return LoginRequest{
		Credentials: Credentials{Username: fields[0], Password: fields[1]},
		RoomRef:     fields[2],
	}, nil
}

func (c *TextCodec) DecodeReconnect(payload any) (ReconnectRequest, error) {
	raw, err := rawSource(payload)
	if err != nil {
		return ReconnectRequest{}, err
	}
	var key string
	if err = json.Unmarshal(raw, &key); err != nil {
		return ReconnectRequest{}, errs.Wrap(ErrMalformedFrame, err, "reconnect source")
	}
	return ReconnectRequest{Key: key}, nil
}

// Encode []byte如果是合法json就原样作为source，否则当字符串处理
func (c *TextCodec) Encode(ev Event) ([]byte, error) {
	out := textOut{Type: int(ev.Type)}
	switch p := ev.Payload.(type) {
	case nil:
	case json.RawMessage:
		out.Source = p
	case []byte:
		if json.Valid(p) {
			out.Source = json.RawMessage(p)
		} else {
			out.Source = string(p)
		}
	default:
		out.Source = p
	}
	return json.Marshal(out)
}

// EncodeLogin 文本协议没有副通道地址字段
func (c *TextCodec) EncodeLogin(req LoginRequest) ([]byte, error) {
	return json.Marshal(textOut{
		Type:   int(LogIn),
		Source: []string{req.Username, req.Password, req.RoomRef},
	})
}

func (c *TextCodec) EncodeReconnect(req ReconnectRequest) ([]byte, error) {
	return json.Marshal(textOut{Type: int(Reconnect), Source: req.Key})
}

func rawSource(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}
	return nil, ErrPayloadType
}
