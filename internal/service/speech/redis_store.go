package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 的共享音频存储，供多个实例共用预渲染结果。
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption 配置 RedisStore。
type RedisOption func(*RedisStore)

// WithRedisTTL 设置条目过期时间，0 表示不过期。
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithRedisPrefix 设置键前缀。
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore 按地址创建 Redis 存储。
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient 复用已有客户端。
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "voicebot:tts:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Ping 检查 Redis 是否可用。
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	audio, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get audio from redis: %w", err)
	}
	return audio, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, audio []byte) error {
	if err := s.client.Set(ctx, s.key(key), audio, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save audio to redis: %w", err)
	}
	return nil
}

// Len 通过 SCAN 统计当前前缀下的条目数。
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	return count, nil
}

// Close 关闭底层客户端。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
