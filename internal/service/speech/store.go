package speech

import (
	"context"
	"sync"
)

// AudioStore 保存按内容摘要索引的提示音频。返回的切片只读。
type AudioStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, audio []byte) error
	Len(ctx context.Context) (int, error)
}

// MemoryStore 进程内音频存储
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	audio, ok := m.entries[key]
	return audio, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, audio []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = audio
	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries), nil
}
