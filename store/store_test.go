package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/churnkit/core"
)

func exerciseStore(t *testing.T, s core.Store, prefix string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, prefix+"missing")
	assert.True(t, core.IsStoreNotFound(err))

	require.NoError(t, s.Set(ctx, prefix+"a", []byte("1"), 0))
	v, err := s.Get(ctx, prefix+"a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, s.BatchSet(ctx, map[string][]byte{prefix + "b": []byte("2"), prefix + "c": []byte("3")}, 0))
	for key, want := range map[string]string{"a": "1", "b": "2", "c": "3"} {
		got, err := s.Get(ctx, prefix+key)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	require.NoError(t, s.BatchSet(ctx, nil, 0))

	require.NoError(t, s.Delete(ctx, prefix+"a", prefix+"b", prefix+"missing"))
	_, err = s.Get(ctx, prefix+"a")
	assert.True(t, core.IsStoreNotFound(err))
	_, err = s.Get(ctx, prefix+"c")
	assert.NoError(t, err)
	require.NoError(t, s.Delete(ctx, prefix+"c"))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	assert.Equal(t, "memory", s.Name())
	exerciseStore(t, s, "")
	assert.Zero(t, s.Len())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
	v[1] = 'y'

	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(5 * time.Millisecond)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "short", []byte("v"), 20*time.Millisecond))
	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))
	_, err := s.Get(ctx, "short")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "short")
		return core.IsStoreNotFound(err)
	}, time.Second, 5*time.Millisecond)

	// 后台清理会删除过期 key
	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, ok := s.entries["short"]
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore("127.0.0.1:1", 0, WithRedisTimeout(200*time.Millisecond))
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CHURNKIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHURNKIT_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(addr, 0)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "redis:"+addr, s.Name())

	prefix := "churnkit:test:" + time.Now().Format("150405.000000") + ":"
	exerciseStore(t, s, prefix)
}
