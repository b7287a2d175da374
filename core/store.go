package core

import (
	"context"
	"time"
)

// Store 是模型产物的键值存储：训练侧发布，服务实例启动时读取。
// 实现位于 store 包（MemoryStore、RedisStore）。
type Store interface {
	// Name 后端名称，出现在模型来源（model_source）中
	Name() string

	// Get 读取单个 key，不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key，ttl 为 0 表示永不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// BatchSet 原子写入一组 key：读方要么看到全部新值，要么一个都看不到
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error

	// Delete 删除 key，不存在的 key 忽略
	Delete(ctx context.Context, keys ...string) error

	Close() error
}

var (
	// ErrStoreNotFound key 不存在或已过期
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")
)

// IsStoreNotFound 是否为存储层的 key 不存在
func IsStoreNotFound(err error) bool {
	de := GetDomainError(err)
	return de != nil && de.Module == ModuleStore && de.Code == ErrorCodeNotFound
}
