package store

import (
	"context"
	"sync"
)

// FetchFunc 缓存未命中时的取数函数（通常是一次网络调用）
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Lazy 按需读取的记忆化缓存
// 命中直接返回；未命中走 FetchFunc 取数、写入后返回。
// 失效完全由事件驱动（Delete/DeleteAll），没有 TTL。
//
// 并发契约：同一个未命中 key 的并发 Get 可能各自触发一次取数，
// 不做在途去重——后写覆盖先写，两次结果在无并发变更时应一致。
// 缓存本身绝不伪造值，取数失败时错误原样上抛。
type Lazy[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
	fetch FetchFunc[K, V]
}

// NewLazy 创建缓存
func NewLazy[K comparable, V any](fetch FetchFunc[K, V]) *Lazy[K, V] {
	return &Lazy[K, V]{
		items: make(map[K]V),
		fetch: fetch,
	}
}

// Get 获取缓存值，未命中时取数并写入
func (s *Lazy[K, V]) Get(ctx context.Context, key K) (V, error) {
	s.mu.Lock()
	if v, ok := s.items[key]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	// 取数不持锁：网络调用期间允许其他 key 的读写
	v, err := s.fetch(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}

	s.mu.Lock()
	s.items[key] = v
	s.mu.Unlock()
	return v, nil
}

// Set 直接写入（预热或覆盖）
func (s *Lazy[K, V]) Set(key K, value V) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// Has 是否已缓存
func (s *Lazy[K, V]) Has(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

// Delete 删除单个条目，使其下次 Get 重新取数
func (s *Lazy[K, V]) Delete(key K) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// DeleteAll 清空缓存
func (s *Lazy[K, V]) DeleteAll() {
	s.mu.Lock()
	s.items = make(map[K]V)
	s.mu.Unlock()
}

// Len 当前条目数
func (s *Lazy[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
