package queue

import (
	"context"
	"sync/atomic"

	"todays-meal/internal/pkg/common"

	"go.uber.org/zap"
)

// Status 隊列狀態
type Status struct {
	InFlight       int   `json:"in_flight"`
	Waiting        int64 `json:"waiting"`
	ProcessedCount int64 `json:"processed_count"`
	MaxConcurrent  int   `json:"max_concurrent"`
}

// Manager 限制同時對外發出的 LLM 請求數量，所有模型共用一個
type Manager struct {
	slots     chan struct{}
	waiting   atomic.Int64
	processed atomic.Int64
}

// NewManager 創建新的隊列管理器
func NewManager(maxConcurrent int) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{slots: make(chan struct{}, maxConcurrent)}
}

// Acquire 取得一個執行名額，ctx 取消時放棄等待
func (m *Manager) Acquire(ctx context.Context) error {
	select {
	case m.slots <- struct{}{}:
		return nil
	default:
	}

	m.waiting.Add(1)
	defer m.waiting.Add(-1)
	common.LogDebug("LLM 請求排隊中",
		zap.Int("in_flight", len(m.slots)),
		zap.Int("max_concurrent", cap(m.slots)),
	)

	select {
	case m.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 釋放執行名額
func (m *Manager) Release() {
	<-m.slots
	m.processed.Add(1)
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		InFlight:       len(m.slots),
		Waiting:        m.waiting.Load(),
		ProcessedCount: m.processed.Load(),
		MaxConcurrent:  cap(m.slots),
	}
}
