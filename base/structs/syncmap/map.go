package syncmap

import "sync"

// Map 泛型包装的sync.Map，零值可用，使用后不可复制
//
// 适合读多写少、或者多个协程操作不相交key集合的场景，比如注册表
type Map[K comparable, V any] struct {
	inner sync.Map
}

func (m *Map[K, V]) Delete(key K) {
	m.inner.Delete(key)
}

// Load 查找key，不存在时返回V的零值
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	val, ok := m.inner.Load(key)
	if ok {
		return val.(V), true
	}
	return value, false
}

func (m *Map[K, V]) LoadAndDelete(key K) (value V, loaded bool) {
	val, loaded := m.inner.LoadAndDelete(key)
	if loaded {
		return val.(V), true
	}
	return value, false
}

// LoadOrStore 已存在则返回旧值，loaded为true
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	val, loaded := m.inner.LoadOrStore(key, value)
	return val.(V), loaded
}

// CompareAndDelete 只有当前值等于old时才删除
func (m *Map[K, V]) CompareAndDelete(key K, old V) bool {
	return m.inner.CompareAndDelete(key, old)
}

// Range 不保证一致性快照，f返回false停止遍历
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.inner.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

func (m *Map[K, V]) Store(key K, value V) {
	m.inner.Store(key, value)
}

// Size O(N)，只用于统计
func (m *Map[K, V]) Size() int {
	n := 0
	m.inner.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
