package cache

import (
	"context"
	"testing"
	"time"

	"todays-meal/internal/core/ai/provider"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	req := &provider.Request{
		System:   "persona",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "豚肉"}},
	}
	same := &provider.Request{
		System:   "persona",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "豚肉"}},
	}
	other := &provider.Request{
		System:   "persona",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "鶏肉"}},
	}

	assert.Equal(t, Key("intent", "m", req), Key("intent", "m", same))
	assert.NotEqual(t, Key("intent", "m", req), Key("intent", "m", other))
	assert.NotEqual(t, Key("intent", "m", req), Key("intent", "m2", req))
	assert.Contains(t, Key("intent", "m", req), "llm:intent:")
}

func TestManagerMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(time.Minute, time.Minute), "memory", time.Minute)
	defer m.Close()

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	m.Set(ctx, "k", "v")
	val, ok := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
	assert.Equal(t, 1, stats["size"])
	assert.InDelta(t, 0.5, stats["hit_ratio"], 0.0001)
}

func TestManagerExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(20*time.Millisecond, time.Minute), "memory", 20*time.Millisecond)

	m.Set(ctx, "k", "v")
	time.Sleep(40 * time.Millisecond)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNilManager(t *testing.T) {
	var m *Manager
	_, ok := m.Get(context.Background(), "k")
	assert.False(t, ok)
	m.Set(context.Background(), "k", "v")
	assert.Equal(t, false, m.GetStats()["enabled"])
	assert.NoError(t, m.Close())
}
