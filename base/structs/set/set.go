package set

// Set 基于map的集合，非线程安全
type Set[T comparable] struct {
	values map[T]struct{}
}

func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{values: make(map[T]struct{}, len(items))}
	s.AddItem(items...)
	return s
}

func (set *Set[T]) AddItem(items ...T) *Set[T] {
	for _, item := range items {
		set.values[item] = struct{}{}
	}
	return set
}

func (set *Set[T]) RemoveItem(items ...T) *Set[T] {
	for _, item := range items {
		delete(set.values, item)
	}
	return set
}

func (set *Set[T]) Contains(item T) bool {
	_, ok := set.values[item]
	return ok
}

func (set *Set[T]) Size() int {
	return len(set.values)
}

// ToArray 转为数组，顺序不定
func (set *Set[T]) ToArray() []T {
	r := make([]T, 0, set.Size())
	for t := range set.values {
		r = append(r, t)
	}
	return r
}

// ForEach 遍历，回调里不要修改set
func (set *Set[T]) ForEach(f func(T)) {
	for t := range set.values {
		f(t)
	}
}
