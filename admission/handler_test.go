package admission

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/YiuTerran/go-gamegate/network"
	"github.com/YiuTerran/go-gamegate/protocol"
	"github.com/YiuTerran/go-gamegate/session"
)

type fakePlayer string

func (p fakePlayer) ID() string { return string(p) }

type fakeRoom struct {
	name string
	mu   sync.Mutex
	// 按顺序记录房间收到的调用
	calls    []string
	sessions []*session.PlayerSession
}

func (r *fakeRoom) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *fakeRoom) history() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRoom) Name() string { return r.name }

func (r *fakeRoom) CreateSession(p session.Player) *session.PlayerSession {
	r.record("create")
	s := session.NewPlayerSession(fmt.Sprintf("%s-%d", p.ID(), len(r.sessions)), p, r)
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
	return s
}

func (r *fakeRoom) ConnectSession(*session.PlayerSession) { r.record("connect") }

func (r *fakeRoom) DisconnectSession(s *session.PlayerSession) {
	r.record("disconnect")
	s.Transition(session.Connected, session.NotConnected)
}

func (r *fakeRoom) OnLogin(*session.PlayerSession) { r.record("login") }

type fakeResolver struct {
	players map[string]string
	rooms   map[string]session.GameRoom
}

func (f *fakeResolver) ResolvePlayer(_ context.Context, creds protocol.Credentials) (session.Player, error) {
	if pw, ok := f.players[creds.Username]; ok && pw == creds.Password {
		return fakePlayer(creds.Username), nil
	}
	return nil, nil
}

func (f *fakeResolver) ResolveRoom(_ context.Context, ref string) (session.GameRoom, error) {
	if room, ok := f.rooms[ref]; ok {
		return room, nil
	}
	return nil, errors.New("no such room")
}

type fixedIds struct{ n atomic.Int32 }

func (f *fixedIds) Generate() string {
	return fmt.Sprintf("key-%d", f.n.Inc())
}

// fakeConn 同步完成写操作，记录所有写出的帧
type fakeConn struct {
	codec protocol.Codec

	mu       sync.Mutex
	written  []protocol.Event
	closed   atomic.Bool
	closedCh chan struct{}
	rebound  atomic.Int32
	failOn   map[protocol.Opcode]bool
}

func newFakeConn(codec protocol.Codec) *fakeConn {
	return &fakeConn{codec: codec, closedCh: make(chan struct{}), failOn: map[protocol.Opcode]bool{}}
}

func (c *fakeConn) Codec() protocol.Codec { return c.codec }

func (c *fakeConn) Write(ev protocol.Event) *network.Future {
	if c.closed.Load() {
		return network.CompletedFuture(network.ErrConnClosed)
	}
	if c.failOn[ev.Type] {
		return network.CompletedFuture(errors.New("broken pipe"))
	}
	c.mu.Lock()
	c.written = append(c.written, ev)
	c.mu.Unlock()
	return network.CompletedFuture(nil)
}

func (c *fakeConn) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.closedCh)
	}
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5555}
}

func (c *fakeConn) Rebind(*session.PlayerSession) session.Sender {
	c.rebound.Inc()
	return &connSender{conn: c}
}

func (c *fakeConn) opcodes() []protocol.Opcode {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ops []protocol.Opcode
	for _, ev := range c.written {
		ops = append(ops, ev.Type)
	}
	return ops
}

func (c *fakeConn) event(i int) protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written[i]
}

func (c *fakeConn) waitClosed(t *testing.T) {
	select {
	case <-c.closedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed")
	}
}

type connSender struct {
	conn   *fakeConn
	closes atomic.Int32
}

func (s *connSender) SendMessage(ev protocol.Event) error {
	return s.conn.Write(ev).Wait(context.Background())
}

func (s *connSender) Close() {
	s.closes.Inc()
	s.conn.Close()
}

type countingObserver struct {
	mu      sync.Mutex
	reasons []string
	bound   atomic.Int32
}

func (o *countingObserver) AdmissionDone(_ string, _ protocol.Opcode, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons = append(o.reasons, Reason(err))
}

func (o *countingObserver) SecondaryBound() { o.bound.Inc() }

type fixture struct {
	room       *fakeRoom
	reconnects *session.ReconnectRegistry
	addresses  *session.AddressRegistry
	observer   *countingObserver
	handler    *Handler
}

func newFixture() *fixture {
	f := &fixture{
		room:       &fakeRoom{name: "room-42"},
		reconnects: session.NewReconnectRegistry(),
		addresses:  session.NewAddressRegistry(),
		observer:   &countingObserver{},
	}
	resolver := &fakeResolver{
		players: map[string]string{"alice": "pw1", "bob": "pw2"},
		rooms:   map[string]session.GameRoom{"room-42": f.room},
	}
	f.handler = NewHandler(resolver, f.reconnects, f.addresses,
		WithIdGenerator(&fixedIds{}), WithObserver(f.observer))
	return f
}

func loginFrame(t *testing.T, codec protocol.Codec, user, pw, room string, secondary *net.UDPAddr) []byte {
	frame, err := codec.EncodeLogin(protocol.LoginRequest{
		Credentials: protocol.Credentials{Username: user, Password: pw},
		RoomRef:     room,
		Secondary:   secondary,
	})
	require.NoError(t, err)
	return frame
}

func reconnectFrame(t *testing.T, codec protocol.Codec, key string) []byte {
	frame, err := codec.EncodeReconnect(protocol.ReconnectRequest{Key: key})
	require.NoError(t, err)
	return frame
}

func codecs() []protocol.Codec {
	return []protocol.Codec{protocol.NewBinaryCodec(), protocol.NewTextCodec()}
}

// 正常登录：LOG_IN_SUCCESS，GAME_ROOM_JOIN_SUCCESS{key}，START，onLogin一次
func TestLoginAndJoin(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			f := newFixture()
			conn := newFakeConn(codec)
			err := f.handler.Handle(context.Background(), conn, loginFrame(t, codec, "alice", "pw1", "room-42", nil))
			require.NoError(t, err)

			assert.Equal(t, []protocol.Opcode{protocol.LogInSuccess, protocol.GameRoomJoinSuccess, protocol.Start}, conn.opcodes())
			assert.Equal(t, "key-1", conn.event(1).Payload)
			assert.Equal(t, []string{"create", "connect", "login"}, f.room.history())
			assert.Equal(t, int32(1), conn.rebound.Load())
			assert.False(t, conn.closed.Load())

			require.Len(t, f.room.sessions, 1)
			s := f.room.sessions[0]
			assert.Equal(t, session.Connected, s.Status())
			assert.True(t, s.Writable())
			got, ok := f.reconnects.Get("key-1")
			require.True(t, ok)
			assert.Same(t, s, got)
			key, _ := s.Attribute(session.AttrReconnectKey)
			assert.Equal(t, "key-1", key)
			reg, _ := s.Attribute(session.AttrReconnectRegistry)
			assert.Same(t, f.reconnects, reg)
			assert.Equal(t, []string{"ok"}, f.observer.reasons)
		})
	}
}

func TestLoginBindsSecondaryAddress(t *testing.T) {
	f := newFixture()
	codec := protocol.NewBinaryCodec()
	conn := newFakeConn(codec)
	addr := &net.UDPAddr{IP: net.IPv4(10, 1, 2, 3), Port: 4000}
	require.NoError(t, f.handler.Handle(context.Background(), conn, loginFrame(t, codec, "alice", "pw1", "room-42", addr)))

	s, ok := f.addresses.Get(addr)
	require.True(t, ok)
	assert.Same(t, f.room.sessions[0], s)
	assert.Equal(t, int32(1), f.observer.bound.Load())
}

// 密码错误：只有一个LOG_IN_FAILURE，然后断开，不创建会话
func TestInvalidCredentials(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			f := newFixture()
			conn := newFakeConn(codec)
			err := f.handler.Handle(context.Background(), conn, loginFrame(t, codec, "alice", "wrong", "room-42", nil))
			assert.ErrorIs(t, err, ErrAuthentication)
			conn.waitClosed(t)

			assert.Equal(t, []protocol.Opcode{protocol.LogInFailure}, conn.opcodes())
			assert.Empty(t, f.room.history())
			assert.Equal(t, 0, f.reconnects.Size())
			assert.Equal(t, int32(0), conn.rebound.Load())
		})
	}
}

func TestUnknownRoom(t *testing.T) {
	f := newFixture()
	codec := protocol.NewTextCodec()
	conn := newFakeConn(codec)
	err := f.handler.Handle(context.Background(), conn, loginFrame(t, codec, "alice", "pw1", "nowhere", nil))
	assert.ErrorIs(t, err, ErrRoomResolution)
	conn.waitClosed(t)

	assert.Equal(t, []protocol.Opcode{protocol.LogInSuccess, protocol.GameRoomJoinFailure}, conn.opcodes())
	assert.Empty(t, f.room.history())
	assert.Equal(t, 0, f.reconnects.Size())
	assert.Equal(t, "room", Reason(err))
}

// join确认写失败：关闭连接，不重新绑定，也不登记重连key
func TestJoinAckWriteFailure(t *testing.T) {
	f := newFixture()
	codec := protocol.NewBinaryCodec()
	conn := newFakeConn(codec)
	conn.failOn[protocol.GameRoomJoinSuccess] = true
	err := f.handler.Handle(context.Background(), conn, loginFrame(t, codec, "alice", "pw1", "room-42", nil))
	assert.ErrorIs(t, err, ErrWriteFailure)
	assert.True(t, conn.closed.Load())
	assert.Equal(t, int32(0), conn.rebound.Load())
	assert.Equal(t, []string{"create"}, f.room.history())
	assert.Equal(t, 0, f.reconnects.Size())
}

func TestUnexpectedFirstEvent(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			f := newFixture()
			conn := newFakeConn(codec)
			frame, err := codec.Encode(protocol.NewEvent(protocol.Start, nil))
			require.NoError(t, err)
			err = f.handler.Handle(context.Background(), conn, frame)
			assert.ErrorIs(t, err, ErrProtocolViolation)
			conn.waitClosed(t)
			assert.Equal(t, []protocol.Opcode{protocol.LogInFailure}, conn.opcodes())
		})
	}
}

// 解码失败直接断开，不写任何帧
func TestMalformedFrameClosesSilently(t *testing.T) {
	frames := map[string][][]byte{
		"binary": {{}, {byte(protocol.LogIn), 9, 'a'}, {byte(protocol.Reconnect)}},
		"text":   {[]byte(`{`), []byte(`{"type":8,"source":["a"]}`), []byte(`{"type":61,"source":[1]}`)},
	}
	for _, codec := range codecs() {
		for _, frame := range frames[codec.Name()] {
			f := newFixture()
			conn := newFakeConn(codec)
			err := f.handler.Handle(context.Background(), conn, frame)
			assert.ErrorIs(t, err, ErrProtocolViolation)
			assert.True(t, conn.closed.Load())
			assert.Empty(t, conn.opcodes())
		}
	}
}

// 先登录拿到key，再模拟断线
func admitted(t *testing.T, f *fixture, codec protocol.Codec) (*session.PlayerSession, string) {
	conn := newFakeConn(codec)
	require.NoError(t, f.handler.Handle(context.Background(), conn, loginFrame(t, codec, "alice", "pw1", "room-42", nil)))
	s := f.room.sessions[len(f.room.sessions)-1]
	key, _ := s.Attribute(session.AttrReconnectKey)
	return s, key.(string)
}

func TestReconnectToLiveSessionRejected(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			f := newFixture()
			s, key := admitted(t, f, codec)
			require.Equal(t, session.Connected, s.Status())

			conn := newFakeConn(codec)
			err := f.handler.Handle(context.Background(), conn, reconnectFrame(t, codec, key))
			assert.ErrorIs(t, err, ErrReconnectRejected)
			conn.waitClosed(t)
			assert.Equal(t, []protocol.Opcode{protocol.LogInFailure}, conn.opcodes())
			assert.Equal(t, session.Connected, s.Status())
		})
	}
}

func TestReconnectUnknownKey(t *testing.T) {
	f := newFixture()
	codec := protocol.NewBinaryCodec()
	conn := newFakeConn(codec)
	err := f.handler.Handle(context.Background(), conn, reconnectFrame(t, codec, "nope"))
	assert.ErrorIs(t, err, ErrReconnectRejected)
	conn.waitClosed(t)
	assert.Equal(t, []protocol.Opcode{protocol.LogInFailure}, conn.opcodes())
}

func TestReconnectResumesSession(t *testing.T) {
	for _, codec := range codecs() {
		t.Run(codec.Name(), func(t *testing.T) {
			f := newFixture()
			s, key := admitted(t, f, codec)
			oldSender := s.PrimarySender().(*connSender)
			f.room.DisconnectSession(s)
			require.Equal(t, session.NotConnected, s.Status())
			f.room.calls = nil

			conn := newFakeConn(codec)
			require.NoError(t, f.handler.Handle(context.Background(), conn, reconnectFrame(t, codec, key)))

			assert.Equal(t, session.Connected, s.Status())
			assert.True(t, s.Writable())
			assert.Equal(t, []protocol.Opcode{protocol.LogInSuccess, protocol.Start}, conn.opcodes())
			assert.Equal(t, []string{"disconnect", "connect"}, f.room.history())
			assert.GreaterOrEqual(t, oldSender.closes.Load(), int32(1))
			assert.True(t, oldSender.conn.closed.Load())
			assert.Same(t, conn, s.PrimarySender().(*connSender).conn)
			// key还在，可以再次重连
			_, ok := f.reconnects.Get(key)
			assert.True(t, ok)
		})
	}
}

// 重连时上报的新地址替换旧地址，旧的副通道关闭，等第一个数据包再重新绑定
func TestReconnectRebindsSecondaryAddress(t *testing.T) {
	f := newFixture()
	codec := protocol.NewBinaryCodec()
	first := &net.UDPAddr{IP: net.IPv4(10, 1, 2, 3), Port: 4000}
	second := &net.UDPAddr{IP: net.IPv4(10, 1, 2, 4), Port: 4001}
	require.NoError(t, f.handler.Handle(context.Background(), newFakeConn(codec),
		loginFrame(t, codec, "alice", "pw1", "room-42", first)))
	s := f.room.sessions[0]
	key, _ := s.Attribute(session.AttrReconnectKey)
	secondary := &connSender{conn: newFakeConn(codec)}
	s.SetSecondarySender(secondary)
	f.room.DisconnectSession(s)

	frame, err := codec.EncodeReconnect(protocol.ReconnectRequest{Key: key.(string), Secondary: second})
	require.NoError(t, err)
	require.NoError(t, f.handler.Handle(context.Background(), newFakeConn(codec), frame))

	got, ok := f.addresses.Get(second)
	require.True(t, ok)
	assert.Same(t, s, got)
	_, ok = f.addresses.Get(first)
	assert.False(t, ok)
	assert.Nil(t, s.SecondarySender())
	assert.Equal(t, int32(1), secondary.closes.Load())
	assert.Equal(t, int32(2), f.observer.bound.Load())
	reg, _ := s.Attribute(session.AttrAddressRegistry)
	assert.Same(t, f.addresses, reg)
}

// watchSender 关闭时记录会话当时的主连接
type watchSender struct {
	s        *session.PlayerSession
	primary  session.Sender
	detached bool
}

func (w *watchSender) SendMessage(protocol.Event) error { return nil }

func (w *watchSender) Close() {
	w.primary = w.s.PrimarySender()
	w.detached = w.s.DetachPrimary(w)
}

// 旧的主连接在新连接绑定之后才关闭，它的断开回调不会影响恢复后的会话
func TestReconnectClosesOldPrimaryAfterRebind(t *testing.T) {
	f := newFixture()
	codec := protocol.NewBinaryCodec()
	s, key := admitted(t, f, codec)
	old := &watchSender{s: s}
	s.SetPrimarySender(old)
	f.room.DisconnectSession(s)

	conn := newFakeConn(codec)
	require.NoError(t, f.handler.Handle(context.Background(), conn, reconnectFrame(t, codec, key)))

	require.NotNil(t, old.primary)
	assert.Same(t, conn, old.primary.(*connSender).conn)
	assert.False(t, old.detached)
	assert.Equal(t, session.Connected, s.Status())
	assert.True(t, s.Writable())
}

func TestReconnectAckFailureRollsBack(t *testing.T) {
	f := newFixture()
	codec := protocol.NewBinaryCodec()
	s, key := admitted(t, f, codec)
	f.room.DisconnectSession(s)
	f.room.calls = nil

	conn := newFakeConn(codec)
	conn.failOn[protocol.LogInSuccess] = true
	err := f.handler.Handle(context.Background(), conn, reconnectFrame(t, codec, key))
	assert.ErrorIs(t, err, ErrWriteFailure)
	assert.True(t, conn.closed.Load())
	assert.Equal(t, session.NotConnected, s.Status())
	assert.Empty(t, f.room.history())
	assert.Equal(t, int32(0), conn.rebound.Load())
}

// 同一个key并发重连，只有一个成功
func TestConcurrentReconnect(t *testing.T) {
	const n = 8
	for round := 0; round < 20; round++ {
		f := newFixture()
		codec := protocol.NewBinaryCodec()
		s, key := admitted(t, f, codec)
		f.room.DisconnectSession(s)

		var wg sync.WaitGroup
		var success, rejected atomic.Int32
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conn := newFakeConn(codec)
				<-start
				err := f.handler.Handle(context.Background(), conn, reconnectFrame(t, codec, key))
				switch {
				case err == nil:
					success.Inc()
				case errors.Is(err, ErrReconnectRejected):
					rejected.Inc()
				}
			}()
		}
		close(start)
		wg.Wait()
		assert.Equal(t, int32(1), success.Load())
		assert.Equal(t, int32(n-1), rejected.Load())
		assert.Equal(t, session.Connected, s.Status())
	}
}

// 确认帧一直写不完，ctx取消后放弃并断开
func TestContextCancelDuringAck(t *testing.T) {
	f := newFixture()
	codec := protocol.NewBinaryCodec()
	conn := &pendingConn{fakeConn: newFakeConn(codec)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.handler.Handle(ctx, conn, loginFrame(t, codec, "alice", "pw1", "room-42", nil))
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrWriteFailure)
	case <-time.After(2 * time.Second):
		t.Fatal("handler blocked")
	}
	assert.True(t, conn.closed.Load())
	assert.Equal(t, 0, f.reconnects.Size())
}

// pendingConn 写永远不会完成
type pendingConn struct {
	*fakeConn
}

func (c *pendingConn) Write(protocol.Event) *network.Future {
	return network.NewFuture()
}

func TestUUIDGenerator(t *testing.T) {
	a, b := UUIDGenerator{}.Generate(), UUIDGenerator{}.Generate()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
