package ws

import (
	"net"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/base/util/byteutil"
	"github.com/YiuTerran/go-gamegate/network"
)

type writeReq struct {
	data   []byte
	future *network.Future
}

// Conn websocket连接，一个消息就是一帧，不需要额外分包
type Conn struct {
	sync.Mutex
	conn           *websocket.Conn
	writeChan      chan *writeReq
	msgType        int
	maxMsgLen      uint32
	closeFlag      bool
	remoteOriginIP net.Addr
}

var _ network.Conn = (*Conn)(nil)

func newWSConn(conn *websocket.Conn, pendingWriteNum int, maxMsgLen uint32, textFormat bool) *Conn {
	wsConn := &Conn{
		conn:      conn,
		writeChan: make(chan *writeReq, pendingWriteNum),
		msgType:   websocket.BinaryMessage,
		maxMsgLen: maxMsgLen,
	}
	if textFormat {
		wsConn.msgType = websocket.TextMessage
	}
	go wsConn.writeLoop()
	return wsConn
}

func (wsConn *Conn) writeLoop() {
	for req := range wsConn.writeChan {
		if req == nil {
			_ = wsConn.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			break
		}
		err := wsConn.conn.WriteMessage(wsConn.msgType, req.data)
		req.future.Complete(err)
		if err != nil {
			log.Debug("fail to write ws conn %v: %v", wsConn.RemoteAddr(), err)
			break
		}
	}

	_ = wsConn.conn.Close()
	wsConn.Lock()
	wsConn.closeFlag = true
	wsConn.Unlock()
	for {
		select {
		case req, ok := <-wsConn.writeChan:
			if !ok {
				return
			}
			if req != nil {
				req.future.Complete(network.ErrConnClosed)
			}
		default:
			return
		}
	}
}

func (wsConn *Conn) doDestroy() {
	if tc, ok := wsConn.conn.UnderlyingConn().(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	_ = wsConn.conn.Close()

	if !wsConn.closeFlag {
		close(wsConn.writeChan)
		wsConn.closeFlag = true
	}
}

func (wsConn *Conn) Destroy() {
	wsConn.Lock()
	defer wsConn.Unlock()

	wsConn.doDestroy()
}

func (wsConn *Conn) Close() {
	wsConn.Lock()
	defer wsConn.Unlock()
	if wsConn.closeFlag {
		return
	}
	if len(wsConn.writeChan) == cap(wsConn.writeChan) {
		wsConn.doDestroy()
		return
	}
	wsConn.writeChan <- nil
	wsConn.closeFlag = true
}

func (wsConn *Conn) LocalAddr() net.Addr {
	return wsConn.conn.LocalAddr()
}

// RemoteAddr 经过代理时返回真实的客户端IP
func (wsConn *Conn) RemoteAddr() net.Addr {
	if wsConn.remoteOriginIP != nil {
		return wsConn.remoteOriginIP
	}
	return wsConn.conn.RemoteAddr()
}

// ReadMsg goroutine not safe
func (wsConn *Conn) ReadMsg() ([]byte, error) {
	_, b, err := wsConn.conn.ReadMessage()
	return b, err
}

// WriteMsg args must not be modified by the others goroutines
func (wsConn *Conn) WriteMsg(args ...[]byte) *network.Future {
	var msgLen uint32
	for i := 0; i < len(args); i++ {
		msgLen += uint32(len(args[i]))
	}
	if msgLen > wsConn.maxMsgLen {
		return network.CompletedFuture(ErrMsgTooLong)
	} else if msgLen < 1 {
		return network.CompletedFuture(ErrMsgTooShort)
	}

	msg := byteutil.MergeBytes(args)

	wsConn.Lock()
	defer wsConn.Unlock()
	if wsConn.closeFlag {
		return network.CompletedFuture(network.ErrConnClosed)
	}
	if len(wsConn.writeChan) == cap(wsConn.writeChan) {
		log.Warn("close ws conn %v: write queue full", wsConn.RemoteAddr())
		wsConn.doDestroy()
		return network.CompletedFuture(network.ErrQueueFull)
	}
	f := network.NewFuture()
	wsConn.writeChan <- &writeReq{data: msg, future: f}
	return f
}
