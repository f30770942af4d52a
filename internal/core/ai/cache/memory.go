package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore 以 go-cache 實作的單機快取
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore 創建記憶體快取，過期項目依 cleanupInterval 清除
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{c: gocache.New(ttl, cleanupInterval)}
}

// Get 獲取緩存
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", false, nil
	}
	str, ok := v.(string)
	return str, ok, nil
}

// Set 設置緩存
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.c.Set(key, value, ttl)
	return nil
}

// Len 目前項目數
func (s *MemoryStore) Len() int {
	return s.c.ItemCount()
}

// Close 清空快取
func (s *MemoryStore) Close() error {
	s.c.Flush()
	return nil
}
