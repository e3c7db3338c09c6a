package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

// ErrSessionNotFound 表示会话不存在。
var ErrSessionNotFound = errors.New("session not found")

// Mode 标识会话的输入方式。
type Mode string

const (
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
)

// Info 是会话的只读快照。
type Info struct {
	ID        string         `json:"id"`
	Mode      Mode           `json:"mode"`
	Step      screening.Step `json:"step"`
	StartedAt time.Time      `json:"startedAt"`
}

type entry struct {
	info   Info
	cancel context.CancelFunc
	token  uint64
}

// Registry 记录当前连接的会话，连接建立时插入、断开时移除。
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	nextTok  uint64
	wg       sync.WaitGroup
}

// NewRegistry 创建会话注册表
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Lease 是一次登记的凭据。同一 ID 被新会话接管后，旧 Lease 的写入与注销都不再生效。
type Lease struct {
	registry *Registry
	id       string
	token    uint64
	once     sync.Once
}

// Register 登记会话并返回其 Lease。同一 ID 已存在时取消旧会话。
func (r *Registry) Register(id string, mode Mode, cancel context.CancelFunc) *Lease {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.sessions[id]; exists {
		old.cancel()
	}
	r.nextTok++
	r.sessions[id] = &entry{
		info:   Info{ID: id, Mode: mode, Step: screening.StepInit, StartedAt: time.Now()},
		cancel: cancel,
		token:  r.nextTok,
	}
	r.wg.Add(1)

	return &Lease{registry: r, id: id, token: r.nextTok}
}

// ID 返回登记的会话 ID。
func (l *Lease) ID() string {
	return l.id
}

// UpdateStep 记录会话当前所处的步骤。
func (l *Lease) UpdateStep(step screening.Step) {
	r := l.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[l.id]; ok && current.token == l.token {
		current.info.Step = step
	}
}

// Release 注销会话，可重复调用。
func (l *Lease) Release() {
	l.once.Do(func() {
		r := l.registry
		r.mu.Lock()
		if current, ok := r.sessions[l.id]; ok && current.token == l.token {
			delete(r.sessions, l.id)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

// Get 返回会话快照
func (r *Registry) Get(id string) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return Info{}, ErrSessionNotFound
	}
	return e.info, nil
}

// List 返回所有会话快照
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.info)
	}
	return out
}

// Count 返回活跃会话数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// CancelAll 取消所有会话，用于优雅停机。
func (r *Registry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.sessions {
		e.cancel()
	}
}

// Wait 等待所有已登记会话注销，或 ctx 结束。
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
