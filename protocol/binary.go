package protocol

import (
	"encoding/binary"
	"net"

	"github.com/YiuTerran/go-gamegate/base/structs/errs"
)

// BinaryCodec 帧格式：[opcode:1][payload...]
// 字符串字段：[len:uvarint][utf8 bytes]
// 登录/重连payload末尾可以带6字节的UDP地址：[ipv4:4][port:2, big endian]
type BinaryCodec struct{}

const (
	addrLen = 6
)

func NewBinaryCodec() *BinaryCodec {
	return &BinaryCodec{}
}

func (c *BinaryCodec) Name() string {
	return "binary"
}

func (c *BinaryCodec) DecodeEvent(frame []byte) (Event, error) {
	if len(frame) == 0 {
		return Event{}, ErrEmptyFrame
	}
	payload := make([]byte, len(frame)-1)
	copy(payload, frame[1:])
	return Event{Type: Opcode(frame[0]), Payload: payload}, nil
}

func (c *BinaryCodec) DecodeLogin(payload any) (req LoginRequest, err error) {
	buf, ok := payload.([]byte)
	if !ok {
		return req, ErrPayloadType
	}
	r := &fieldReader{buf: buf}
	req.Username = r.readString()
	req.Password = r.readString()
	req.RoomRef = r.readString()
	if r.err != nil {
		return LoginRequest{}, r.err
	}
	req.Secondary = r.readAddr()
	return req, nil
}

func (c *BinaryCodec) DecodeReconnect(payload any) (req ReconnectRequest, err error) {
	buf, ok := payload.([]byte)
	if !ok {
		return req, ErrPayloadType
	}
	r := &fieldReader{buf: buf}
	req.Key = r.readString()
	if r.err != nil {
		return ReconnectRequest{}, r.err
	}
	req.Secondary = r.readAddr()
	return req, nil
}

// Encode string按字符串字段编码，[]byte原样写入
func (c *BinaryCodec) Encode(ev Event) ([]byte, error) {
	frame := []byte{byte(ev.Type)}
	switch p := ev.Payload.(type) {
	case nil:
	case []byte:
		frame = append(frame, p...)
	case string:
		frame = appendString(frame, p)
	default:
		return nil, errs.Wrap(ErrPayloadType, nil, "%T", ev.Payload)
	}
	return frame, nil
}

func (c *BinaryCodec) EncodeLogin(req LoginRequest) ([]byte, error) {
	frame := []byte{byte(LogIn)}
	frame = appendString(frame, req.Username)
	frame = appendString(frame, req.Password)
	frame = appendString(frame, req.RoomRef)
	return appendAddr(frame, req.Secondary)
}

func (c *BinaryCodec) EncodeReconnect(req ReconnectRequest) ([]byte, error) {
	frame := appendString([]byte{byte(Reconnect)}, req.Key)
	return appendAddr(frame, req.Secondary)
}

// DecodeString 读取一个字符串字段，客户端解析GameRoomJoinSuccess时用
func DecodeString(payload []byte) (string, error) {
	r := &fieldReader{buf: payload}
	s := r.readString()
	return s, r.err
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendAddr(dst []byte, addr *net.UDPAddr) ([]byte, error) {
	if addr == nil {
		return dst, nil
	}
	ip := addr.IP.To4()
	if ip == nil || addr.Port <= 0 || addr.Port > 0xffff {
		return nil, errs.Wrap(ErrMalformedFrame, nil, "secondary address %v", addr)
	}
	dst = append(dst, ip...)
	return binary.BigEndian.AppendUint16(dst, uint16(addr.Port)), nil
}

type fieldReader struct {
	buf []byte
	err error
}

func (r *fieldReader) readString() string {
	if r.err != nil {
		return ""
	}
	n, size := binary.Uvarint(r.buf)
	if size <= 0 || n > uint64(len(r.buf)-size) {
		r.err = ErrMalformedFrame
		return ""
	}
	s := string(r.buf[size : size+int(n)])
	r.buf = r.buf[size+int(n):]
	return s
}

// readAddr 地址是可选的，长度不对或者内容非法都直接忽略
func (r *fieldReader) readAddr() *net.UDPAddr {
	if len(r.buf) != addrLen {
		return nil
	}
	ip := net.IPv4(r.buf[0], r.buf[1], r.buf[2], r.buf[3])
	port := int(binary.BigEndian.Uint16(r.buf[4:]))
	if port == 0 || ip.IsUnspecified() {
		return nil
	}
	return &net.UDPAddr{IP: ip, Port: port}
}
