package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"todays-meal/internal/core/ai/provider"
	"todays-meal/internal/pkg/common"

	"go.uber.org/zap"
)

// Store 快取後端
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Len() int
	Close() error
}

// Manager 以請求內容雜湊為鍵的 LLM 回應快取
type Manager struct {
	store Store
	ttl   time.Duration
	name  string

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewManager 創建新的緩存管理器
func NewManager(store Store, backend string, ttl time.Duration) *Manager {
	common.LogInfo("快取管理員已初始化",
		zap.String("後端", backend),
		zap.Duration("存活時間", ttl),
	)
	return &Manager{store: store, ttl: ttl, name: backend}
}

// Key 由提示類型、模型與完整請求內容產生快取鍵
func Key(kind, model string, req *provider.Request) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('|')
	b.WriteString(model)
	b.WriteByte('|')
	b.WriteString(req.System)
	for _, m := range req.Messages {
		b.WriteByte('|')
		b.WriteString(m.Role)
		b.WriteByte(':')
		b.WriteString(m.Content)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return "llm:" + kind + ":" + hex.EncodeToString(sum[:])
}

// Get 獲取緩存值
func (m *Manager) Get(ctx context.Context, key string) (string, bool) {
	if m == nil {
		return "", false
	}

	val, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.errors.Add(1)
		common.LogWarn("讀取快取失敗", zap.Error(err))
		return "", false
	}
	if !ok {
		m.misses.Add(1)
		common.LogCacheMiss(m.name)
		return "", false
	}

	m.hits.Add(1)
	common.LogCacheHit(m.name)
	return val, true
}

// Set 設置緩存值
func (m *Manager) Set(ctx context.Context, key, value string) {
	if m == nil {
		return
	}
	if err := m.store.Set(ctx, key, value, m.ttl); err != nil {
		m.errors.Add(1)
		common.LogWarn("寫入快取失敗", zap.Error(err))
	}
}

// GetStats 獲取緩存統計信息
func (m *Manager) GetStats() map[string]interface{} {
	if m == nil {
		return map[string]interface{}{"enabled": false}
	}

	hits, misses := m.hits.Load(), m.misses.Load()
	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return map[string]interface{}{
		"enabled":   true,
		"backend":   m.name,
		"size":      m.store.Len(),
		"hits":      hits,
		"misses":    misses,
		"errors":    m.errors.Load(),
		"hit_ratio": ratio,
	}
}

// Close 關閉緩存管理器
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	common.LogInfo("快取管理員已關閉",
		zap.Int64("命中次數", m.hits.Load()),
		zap.Int64("未命中次數", m.misses.Load()),
	)
	return m.store.Close()
}
