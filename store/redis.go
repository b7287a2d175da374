package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/churnkit/core"
)

// RedisStore 基于 Redis 的 Store。训练任务 publish 产物，服务实例启动时拉取。
type RedisStore struct {
	client *redis.Client
	addr   string
}

// RedisOption RedisStore 配置项
type RedisOption func(*redis.Options)

// WithRedisPassword 设置密码
func WithRedisPassword(password string) RedisOption {
	return func(o *redis.Options) { o.Password = password }
}

// WithRedisTimeout 同时设置连接、读、写超时
func WithRedisTimeout(d time.Duration) RedisOption {
	return func(o *redis.Options) {
		o.DialTimeout = d
		o.ReadTimeout = d
		o.WriteTimeout = d
	}
}

// NewRedisStore 连接 Redis 并 PING 一次，不可达时返回 UNAVAILABLE
func NewRedisStore(addr string, db int, opts ...RedisOption) (*RedisStore, error) {
	o := &redis.Options{Addr: addr, DB: db, DialTimeout: 3 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	client := redis.NewClient(o)

	ctx, cancel := context.WithTimeout(context.Background(), o.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, unavailable(err, "store: redis ping "+addr)
	}
	return &RedisStore{client: client, addr: addr}, nil
}

// NewRedisStoreWithClient 使用已有客户端（不做连通性检查）
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, addr: client.Options().Addr}
}

func (r *RedisStore) Name() string { return "redis:" + r.addr }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, core.ErrStoreNotFound
	case err != nil:
		return nil, unavailable(err, "store: redis get "+key)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err, "store: redis set "+key)
	}
	return nil
}

// BatchSet 在 MULTI/EXEC 事务中写入
func (r *RedisStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error {
	if len(kvs) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range kvs {
			pipe.Set(ctx, k, v, ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable(err, "store: redis multi set")
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err, "store: redis del")
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func unavailable(err error, msg string) error {
	return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err, msg)
}

var _ core.Store = (*RedisStore)(nil)
