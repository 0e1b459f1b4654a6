package module

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/YiuTerran/go-gamegate/base/log"
)

var closeChannel = make(chan os.Signal, 1)

// CloseServer 手动关闭服务
func CloseServer() {
	select {
	case closeChannel <- os.Interrupt:
	default:
	}
}

// StaticRun 加载所有模块，阻塞到收到退出信号
// beforeClose是在所有模块销毁前执行的
func StaticRun(mis []Module, beforeClose func()) {
	log.Info("Server starting up...")
	StaticLoad(mis)
	signal.Notify(closeChannel, os.Interrupt, syscall.SIGTERM)
	sig := <-closeChannel
	log.Info("receive signal %v", sig)
	signal.Stop(closeChannel)
	if beforeClose != nil {
		beforeClose()
	}
	Destroy()
	log.Info("Server closing down...")
}
