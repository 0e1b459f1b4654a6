package session

import (
	"net"

	"github.com/YiuTerran/go-gamegate/base/structs/syncmap"
)

// ReconnectRegistry 重连key到会话的映射，查询不会删除，会话可以多次重连
type ReconnectRegistry struct {
	m syncmap.Map[string, *PlayerSession]
}

func NewReconnectRegistry() *ReconnectRegistry {
	return &ReconnectRegistry{}
}

func (r *ReconnectRegistry) Put(key string, s *PlayerSession) {
	r.m.Store(key, s)
}

func (r *ReconnectRegistry) Get(key string) (*PlayerSession, bool) {
	return r.m.Load(key)
}

// Remove 只有key仍然指向s时才删除
func (r *ReconnectRegistry) Remove(key string, s *PlayerSession) bool {
	return r.m.CompareAndDelete(key, s)
}

func (r *ReconnectRegistry) Size() int {
	return r.m.Size()
}

// AddressRegistry 副通道地址到会话的映射，每个会话只保留最近登记的一个地址
type AddressRegistry struct {
	m         syncmap.Map[string, *PlayerSession]
	bySession syncmap.Map[*PlayerSession, string]
}

func NewAddressRegistry() *AddressRegistry {
	return &AddressRegistry{}
}

// Put 重连时上报了新地址，旧地址不再指向这个会话
func (r *AddressRegistry) Put(addr net.Addr, s *PlayerSession) {
	key := addr.String()
	if old, ok := r.bySession.Load(s); ok && old != key {
		r.m.CompareAndDelete(old, s)
	}
	r.bySession.Store(s, key)
	r.m.Store(key, s)
}

func (r *AddressRegistry) Get(addr net.Addr) (*PlayerSession, bool) {
	return r.m.Load(addr.String())
}

// Remove 会话退出时清掉它的地址，地址已被别的会话占用时不动
func (r *AddressRegistry) Remove(s *PlayerSession) {
	if key, ok := r.bySession.LoadAndDelete(s); ok {
		r.m.CompareAndDelete(key, s)
	}
}

func (r *AddressRegistry) Size() int {
	return r.m.Size()
}

// Release 房间销毁会话时调用，通过会话上的属性清理两张注册表
func Release(s *PlayerSession) {
	if reg, ok := s.Attribute(AttrReconnectRegistry); ok {
		key, _ := s.Attribute(AttrReconnectKey)
		if r, ok := reg.(*ReconnectRegistry); ok {
			if k, ok := key.(string); ok {
				r.Remove(k, s)
			}
		}
	}
	if reg, ok := s.Attribute(AttrAddressRegistry); ok {
		if r, ok := reg.(*AddressRegistry); ok {
			r.Remove(s)
		}
	}
}
