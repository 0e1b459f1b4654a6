package tcp

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/YiuTerran/go-gamegate/base/log"
)

var (
	ErrMsgTooLong  = errors.New("message too long")
	ErrMsgTooShort = errors.New("message too short")
)

// 长度头字节数 -> 能表示的最大长度
var headerLimits = map[int]uint32{
	1: math.MaxUint8,
	2: math.MaxUint16,
	4: math.MaxUint32,
}

// BinaryParser 长度头 + 消息体，长度不含头本身
//
//	| len(1/2/4) | opcode | payload |
type BinaryParser struct {
	header    int
	order     binary.ByteOrder
	maxMsgLen uint32
}

// NewDefaultParser 2字节长度头，大端序
func NewDefaultParser() *BinaryParser {
	return NewBinaryParser(2, false)
}

func NewBinaryParser(lenMsgLen int, littleEndian bool) *BinaryParser {
	limit, ok := headerLimits[lenMsgLen]
	if !ok {
		log.Warn("invalid lenMsgLen %d, using 2", lenMsgLen)
		lenMsgLen, limit = 2, math.MaxUint16
	}
	p := &BinaryParser{header: lenMsgLen, maxMsgLen: limit, order: binary.BigEndian}
	if littleEndian {
		p.order = binary.LittleEndian
	}
	return p
}

// SetMaxMsgLen 只能收紧，不能超过长度头能表示的范围
func (p *BinaryParser) SetMaxMsgLen(max uint32) *BinaryParser {
	if max > 0 && max < p.maxMsgLen {
		p.maxMsgLen = max
	}
	return p
}

func (p *BinaryParser) check(n uint32) error {
	switch {
	case n == 0:
		return ErrMsgTooShort
	case n > p.maxMsgLen:
		return ErrMsgTooLong
	}
	return nil
}

func (p *BinaryParser) decodeLen(head []byte) uint32 {
	switch p.header {
	case 1:
		return uint32(head[0])
	case 2:
		return uint32(p.order.Uint16(head))
	default:
		return p.order.Uint32(head)
	}
}

func (p *BinaryParser) encodeLen(head []byte, n uint32) {
	switch p.header {
	case 1:
		head[0] = byte(n)
	case 2:
		p.order.PutUint16(head, uint16(n))
	default:
		p.order.PutUint32(head, n)
	}
}

// Read 读出一个完整的消息体，可并发调用
func (p *BinaryParser) Read(r io.Reader) ([]byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:p.header]); err != nil {
		return nil, err
	}
	n := p.decodeLen(head[:p.header])
	if err := p.check(n); err != nil {
		return nil, err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Pack 多段数据拼成一帧
func (p *BinaryParser) Pack(args ...[]byte) ([]byte, error) {
	var n uint64
	for _, arg := range args {
		n += uint64(len(arg))
	}
	if n > math.MaxUint32 {
		return nil, ErrMsgTooLong
	}
	if err := p.check(uint32(n)); err != nil {
		return nil, err
	}
	frame := make([]byte, p.header, p.header+int(n))
	p.encodeLen(frame, uint32(n))
	for _, arg := range args {
		frame = append(frame, arg...)
	}
	return frame, nil
}
