package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/quickrupee/voicebot/backend/internal/metrics"
)

// renderTimeout 限制共享渲染的时长，它不随任何单个调用方取消。
const renderTimeout = 60 * time.Second

// Renderer 把文本渲染为音频。
type Renderer interface {
	Render(ctx context.Context, text string) ([]byte, error)
}

// CacheOptions 配置 PromptCache。
type CacheOptions struct {
	Voice      string
	Model      string
	Vocabulary []string
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// PromptCache 是按内容寻址的提示音缓存，在所有会话间共享。
// 只有封闭词表内的文本会被写入存储，其他文本每次都重新渲染。
type PromptCache struct {
	renderer   Renderer
	store      AudioStore
	voice      string
	model      string
	vocabulary []string
	known      map[string]struct{}
	group      singleflight.Group
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewPromptCache 创建缓存。store 为 nil 时使用内存存储。
func NewPromptCache(renderer Renderer, store AudioStore, opts CacheOptions) *PromptCache {
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	known := make(map[string]struct{}, len(opts.Vocabulary))
	vocab := make([]string, 0, len(opts.Vocabulary))
	for _, text := range opts.Vocabulary {
		if _, dup := known[text]; dup || text == "" {
			continue
		}
		known[text] = struct{}{}
		vocab = append(vocab, text)
	}

	return &PromptCache{
		renderer:   renderer,
		store:      store,
		voice:      opts.Voice,
		model:      opts.Model,
		vocabulary: vocab,
		known:      known,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "tts_cache"),
	}
}

// Key 返回文本对应的缓存键：模型、音色与文本的 SHA-256。
func (c *PromptCache) Key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + c.voice + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Cacheable 判断文本是否属于封闭词表。
func (c *PromptCache) Cacheable(text string) bool {
	_, ok := c.known[text]
	return ok
}

// Vocabulary 返回词表副本。
func (c *PromptCache) Vocabulary() []string {
	return append([]string(nil), c.vocabulary...)
}

// GetOrRender 命中时直接返回缓存音频；未命中时渲染并写入。渲染失败不写入缓存。
func (c *PromptCache) GetOrRender(ctx context.Context, text string) ([]byte, error) {
	if !c.Cacheable(text) {
		c.metrics.CacheLookup(metrics.CacheUncacheable)
		return c.render(ctx, text)
	}

	key := c.Key(text)
	audio, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.CacheLookup(metrics.CacheError)
		c.logger.Warn("cache lookup failed, rendering directly", "error", err)
	case ok:
		c.metrics.CacheLookup(metrics.CacheHit)
		return audio, nil
	default:
		c.metrics.CacheLookup(metrics.CacheMiss)
	}

	// 同一键的并发未命中共享一次渲染。渲染脱离首个调用方的 ctx，
	// 每个调用方只在自己的 ctx 结束时提前返回。
	ch := c.group.DoChan(key, func() (interface{}, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
		defer cancel()

		rendered, err := c.render(renderCtx, text)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(renderCtx, key, rendered); err != nil {
			c.logger.Warn("cache store failed", "error", err)
		}
		return rendered, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Warm 并发预渲染整个词表，返回本次完成的条目数。遇到首个渲染失败即停止。
func (c *PromptCache) Warm(ctx context.Context, concurrency int) (int, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var warmed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, text := range c.vocabulary {
		text := text
		g.Go(func() error {
			if _, err := c.GetOrRender(gctx, text); err != nil {
				return fmt.Errorf("warm %q: %w", truncate(text, 32), err)
			}
			warmed.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return int(warmed.Load()), err
}

// Len 返回存储中的条目数。
func (c *PromptCache) Len(ctx context.Context) int {
	n, err := c.store.Len(ctx)
	if err != nil {
		c.logger.Warn("cache size unavailable", "error", err)
		return 0
	}
	return n
}

func (c *PromptCache) render(ctx context.Context, text string) ([]byte, error) {
	if c.renderer == nil {
		return nil, ErrSpeakerUnavailable
	}
	started := time.Now()
	audio, err := c.renderer.Render(ctx, text)
	c.metrics.ObserveRender(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
