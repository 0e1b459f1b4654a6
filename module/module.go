package module

import (
	"context"
	"fmt"
	"sync"

	"github.com/YiuTerran/go-gamegate/base/log"
)

// Module 一个独立运行的服务单元，比如一个监听端口
type Module interface {
	Name() string
	// OnInit 在Run之前同步调用，配置错误直接Fatal
	OnInit()
	// Run 阻塞运行，ctx取消后返回
	Run(ctx context.Context)
	// OnDestroy Run返回之后调用
	OnDestroy()
}

type mod struct {
	mi     Module
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	mods []*mod
	lock sync.Mutex
)

// StaticLoad 按顺序加载模块
func StaticLoad(mis []Module) {
	lock.Lock()
	defer lock.Unlock()
	for _, mi := range mis {
		m := &mod{mi: mi}
		var ctx context.Context
		ctx, m.cancel = context.WithCancel(context.Background())
		mi.OnInit()
		m.wg.Add(1)
		go run(ctx, m)
		mods = append(mods, m)
		log.Info("module registered: %s", mi.Name())
	}
}

func run(ctx context.Context, m *mod) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack(fmt.Sprintf("module %s panic", m.mi.Name()), r)
		}
	}()
	m.mi.Run(ctx)
}

func destroyMod(m *mod) {
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack(fmt.Sprintf("panic when destroy module %s", m.mi.Name()), r)
		}
	}()
	m.cancel()
	m.wg.Wait()
	m.mi.OnDestroy()
	log.Info("module destroyed: %s", m.mi.Name())
}

// Destroy 按加载顺序逆序销毁
func Destroy() {
	lock.Lock()
	defer lock.Unlock()
	for i := len(mods) - 1; i >= 0; i-- {
		destroyMod(mods[i])
	}
	mods = nil
}
