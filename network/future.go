package network

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrQueueFull  = errors.New("write queue full")
)

// Future 一次异步写的结果
type Future struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// CompletedFuture 直接返回已完成的Future，一般用于参数校验失败
func CompletedFuture(err error) *Future {
	f := NewFuture()
	f.Complete(err)
	return f
}

// Complete 只有第一次调用生效
func (f *Future) Complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err 完成前调用返回nil
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait 等待写完成，ctx取消时返回ctx的错误
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then 完成后在新协程里回调
func (f *Future) Then(fn func(err error)) {
	go func() {
		<-f.done
		fn(f.err)
	}()
}
