package store

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/churnkit/core"
)

// MemoryStore 进程内 Store，用于测试与单机开发。读写都复制字节，调用方改动不影响已存值。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	sweep   *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type memEntry struct {
	value    []byte
	expireAt time.Time // 零值表示永不过期
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// NewMemoryStore 创建内存存储，后台每 sweepInterval 清理一次过期 key
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(10 * time.Second)
}

func newMemoryStore(sweepInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]memEntry),
		sweep:   time.NewTicker(sweepInterval),
		done:    make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return nil, core.ErrStoreNotFound
	}
	return clone(e.value), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.BatchSet(ctx, map[string][]byte{key: value}, ttl)
}

func (m *MemoryStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kvs {
		m.entries[k] = memEntry{value: clone(v), expireAt: expireAt}
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Len 当前未过期的 key 数
func (m *MemoryStore) Len() int {
	now := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.sweep.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) sweepLoop() {
	for {
		select {
		case now := <-m.sweep.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

var _ core.Store = (*MemoryStore)(nil)
