package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/YiuTerran/go-gamegate/admission"
	"github.com/YiuTerran/go-gamegate/base/log"
	"github.com/YiuTerran/go-gamegate/config"
	"github.com/YiuTerran/go-gamegate/module"
	"github.com/YiuTerran/go-gamegate/network/gate"
	"github.com/YiuTerran/go-gamegate/network/tcp"
	"github.com/YiuTerran/go-gamegate/prom"
	"github.com/YiuTerran/go-gamegate/resolver"
	redisresolver "github.com/YiuTerran/go-gamegate/resolver/redis"
	"github.com/YiuTerran/go-gamegate/room"
	"github.com/YiuTerran/go-gamegate/session"
	"github.com/YiuTerran/go-gamegate/ws"
)

// App 根据配置组装好的所有模块
type App struct {
	Reconnects *session.ReconnectRegistry
	Addresses  *session.AddressRegistry
	Rooms      *resolver.Rooms
	Handler    *admission.Handler

	TCP     *gate.TcpGate
	WS      *ws.ServerGate
	UDP     *gate.UdpGate
	Metrics *MetricsServer

	closers []func() error
}

func New(cfg *config.Config) (*App, error) {
	a := &App{
		Reconnects: session.NewReconnectRegistry(),
		Addresses:  session.NewAddressRegistry(),
		Rooms: resolver.NewRooms(func(name string) session.GameRoom {
			return room.New(name)
		}),
	}
	for _, name := range cfg.Resolver.Rooms {
		a.Rooms.GetOrCreate(name)
	}

	var identity admission.IdentityResolver
	switch cfg.Resolver.Kind {
	case config.ResolverStatic:
		identity = resolver.NewStatic(cfg.Resolver.Players, a.Rooms)
	case config.ResolverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Resolver.Redis.Addr,
			Password: cfg.Resolver.Redis.Password,
			DB:       cfg.Resolver.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		identity = redisresolver.NewResolver(client, cfg.Resolver.Redis.Prefix, a.Rooms)
	default:
		return nil, errors.New("unknown resolver kind " + cfg.Resolver.Kind)
	}

	a.Handler = admission.NewHandler(identity, a.Reconnects, a.Addresses,
		admission.WithObserver(prom.AdmissionObserver{}))
	g := gate.Gate{Handler: a.Handler, AdmissionTimeout: cfg.Admission.Timeout}

	if cfg.TCP.Addr != "" {
		a.TCP = &gate.TcpGate{
			Gate:            g,
			Addr:            cfg.TCP.Addr,
			MaxConnNum:      cfg.TCP.MaxConnNum,
			PendingWriteNum: cfg.TCP.PendingWriteNum,
			BinaryParser: tcp.NewBinaryParser(cfg.TCP.LenMsgLen, cfg.TCP.LittleEndian).
				SetMaxMsgLen(cfg.TCP.MaxMsgLen),
		}
	}
	if cfg.WS.Addr != "" {
		a.WS = &ws.ServerGate{
			Gate:            g,
			Addr:            cfg.WS.Addr,
			Path:            cfg.WS.Path,
			MaxMsgLen:       cfg.WS.MaxMsgLen,
			PendingWriteNum: cfg.WS.PendingWriteNum,
			HTTPTimeout:     cfg.WS.HTTPTimeout,
			CertFile:        cfg.WS.CertFile,
			KeyFile:         cfg.WS.KeyFile,
		}
	}
	if cfg.UDP.Addr != "" {
		a.UDP = &gate.UdpGate{
			Addr:      cfg.UDP.Addr,
			FailTry:   cfg.UDP.FailTry,
			Addresses: a.Addresses,
		}
	}
	if cfg.Metrics.Addr != "" {
		a.Metrics = &MetricsServer{Addr: cfg.Metrics.Addr, Path: cfg.Metrics.Path}
	}
	return a, nil
}

// Modules 按启动顺序返回，udp依赖登录时登记的地址，放在最后
func (a *App) Modules() []module.Module {
	var mods []module.Module
	if a.Metrics != nil {
		mods = append(mods, a.Metrics)
	}
	if a.TCP != nil {
		mods = append(mods, a.TCP)
	}
	if a.WS != nil {
		mods = append(mods, a.WS)
	}
	if a.UDP != nil {
		mods = append(mods, a.UDP)
	}
	return mods
}

func (a *App) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			log.Warn("close resource error: %v", err)
		}
	}
}

// MetricsServer prometheus指标的http服务
type MetricsServer struct {
	Addr string
	Path string

	server *http.Server
	ln     net.Listener
	ready  chan struct{}
}

func (m *MetricsServer) Name() string {
	return "metrics"
}

func (m *MetricsServer) OnInit() {
	if m.Path == "" {
		m.Path = "/metrics"
	}
	m.ready = make(chan struct{})
}

func (m *MetricsServer) Run(ctx context.Context) {
	ln, err := net.Listen("tcp", m.Addr)
	if err != nil {
		log.Fatal("fail to start metrics server: %v", err)
	}
	router := mux.NewRouter()
	router.Handle(m.Path, prom.Handler()).Methods(http.MethodGet)
	m.ln = ln
	m.server = &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error: %v", err)
		}
	}()
	log.Info("metrics listening on %v%s", ln.Addr(), m.Path)
	close(m.ready)
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = m.server.Shutdown(shutdownCtx)
}

// ListenAddr 阻塞到服务启动
func (m *MetricsServer) ListenAddr() net.Addr {
	<-m.ready
	return m.ln.Addr()
}

func (m *MetricsServer) OnDestroy() {}
