package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore 以 Redis 實作的共享快取
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 使用已連線的 Redis 客戶端
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get 獲取緩存
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cache: %w", err)
	}
	return val, true, nil
}

// Set 設置緩存
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Len 回傳 LLM 快取鍵數量
func (s *RedisStore) Len() int {
	var count int
	iter := s.client.Scan(context.Background(), 0, "llm:*", 100).Iterator()
	for iter.Next(context.Background()) {
		count++
	}
	return count
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}
