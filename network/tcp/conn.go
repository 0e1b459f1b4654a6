package tcp

import (
	"net"
	"sync"

	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/network"
)

type writeReq struct {
	data   []byte
	future *network.Future
}

// Conn tcp连接，写操作排队后由单独的协程完成
type Conn struct {
	sync.Mutex
	conn      net.Conn
	writeChan chan *writeReq
	closeFlag bool
	parser    IParser
}

func newConn(conn net.Conn, pendingWriteNum int, parser IParser) *Conn {
	tcpConn := &Conn{
		conn:      conn,
		writeChan: make(chan *writeReq, pendingWriteNum),
		parser:    parser,
	}
	go tcpConn.writeLoop()
	return tcpConn
}

func (c *Conn) writeLoop() {
	for req := range c.writeChan {
		if req == nil {
			break
		}
		_, err := c.conn.Write(req.data)
		req.future.Complete(err)
		if err != nil {
			log.Debug("fail to write tcp conn %v: %v", c.conn.RemoteAddr(), err)
			break
		}
	}

	_ = c.conn.Close()
	c.Lock()
	c.closeFlag = true
	c.Unlock()
	c.drain()
}

// drain 连接关闭后，让还在排队的写操作失败
func (c *Conn) drain() {
	for {
		select {
		case req, ok := <-c.writeChan:
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

func (c *Conn) doDestroy() {
	if tc, ok := c.conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	_ = c.conn.Close()

	if !c.closeFlag {
		close(c.writeChan)
		c.closeFlag = true
	}
}

func (c *Conn) Destroy() {
	c.Lock()
	defer c.Unlock()

	c.doDestroy()
}

func (c *Conn) Close() {
	c.Lock()
	defer c.Unlock()
	if c.closeFlag {
		return
	}
	if len(c.writeChan) == cap(c.writeChan) {
		c.doDestroy()
		return
	}
	c.writeChan <- nil
	c.closeFlag = true
}

// Write b must not be modified by the others goroutines
func (c *Conn) Write(b []byte) *network.Future {
	c.Lock()
	defer c.Unlock()
	if c.closeFlag {
		return network.CompletedFuture(network.ErrConnClosed)
	}
	if len(c.writeChan) == cap(c.writeChan) {
		log.Warn("close tcp conn %v: write queue full", c.conn.RemoteAddr())
		c.doDestroy()
		return network.CompletedFuture(network.ErrQueueFull)
	}
	f := network.NewFuture()
	c.writeChan <- &writeReq{data: b, future: f}
	return f
}

func (c *Conn) Read(b []byte) (int, error) {
	return c.conn.Read(b)
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) ReadMsg() ([]byte, error) {
	return c.parser.Read(c)
}

func (c *Conn) WriteMsg(args ...[]byte) *network.Future {
	msg, err := c.parser.Pack(args...)
	if err != nil {
		return network.CompletedFuture(err)
	}
	return c.Write(msg)
}
