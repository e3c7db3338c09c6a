package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quickrupee/voicebot/backend/internal/config"
	"github.com/quickrupee/voicebot/backend/internal/handler"
	"github.com/quickrupee/voicebot/backend/internal/handler/voice"
	"github.com/quickrupee/voicebot/backend/internal/logging"
	"github.com/quickrupee/voicebot/backend/internal/metrics"
	"github.com/quickrupee/voicebot/backend/internal/service/session"
	"github.com/quickrupee/voicebot/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, continuing with system environment variables only", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level)
	slog.SetDefault(logger)

	script, classifier, err := cfg.Eligibility.NewScreener()
	if err != nil {
		logger.Error("failed to build screening script", "error", err)
		os.Exit(1)
	}
	logger.Info("screening script loaded",
		"min_salary", script.MinSalary(),
		"cities", script.Cities(),
		"vocabulary", len(script.Vocabulary()))

	m := metrics.New()
	registry := session.NewRegistry()

	deps := handler.Dependencies{
		Script:     script,
		Classifier: classifier,
		Registry:   registry,
		Metrics:    m,
		Logger:     logger,
		Session: voice.Config{
			DrainDelay:   cfg.Session.DrainDelay,
			EndGrace:     cfg.Session.EndGrace,
			ReadTimeout:  cfg.Session.ReadTimeout,
			PingInterval: cfg.Session.PingInterval,
			WriteTimeout: 10 * time.Second,
		},
		OpenAIConfigured: cfg.Speech.Enabled,
	}

	var closeStore func() error
	if cfg.Speech.Enabled {
		speechCfg := cfg.Speech.Model()

		store, closer, err := newAudioStore(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Error("failed to initialize prompt audio store", "error", err)
			os.Exit(1)
		}
		closeStore = closer

		speaker := speech.NewOpenAISpeaker(speechCfg, logger)
		cache := speech.NewPromptCache(speaker, store, speech.CacheOptions{
			Voice:      speaker.Voice(),
			Model:      speaker.Model(),
			Vocabulary: script.Vocabulary(),
			Metrics:    m,
			Logger:     logger,
		})
		if cfg.Cache.Warmup {
			warmPrompts(ctx, cache, cfg.Cache.WarmupConcurrency, logger)
		}

		deps.Audio = cache
		deps.NewTranscriber = func(sessionID string) voice.Transcriber {
			return speech.NewRealtimeTranscriber(speechCfg, sessionID, logger, nil)
		}
		logger.Info("speech services initialized", "voice", speaker.Voice(), "tts_model", speaker.Model())
	} else {
		logger.Warn("OPENAI_API_KEY not set, voice sessions will run without speech")
	}

	router := handler.NewRouter(deps)

	startServer(ctx, cfg.Server, router, registry, logger)

	if closeStore != nil {
		if err := closeStore(); err != nil {
			logger.Warn("close prompt audio store failed", "error", err)
		}
	}
}

// newAudioStore 按配置选择内存或 Redis 存储。Redis 不可达时启动失败。
func newAudioStore(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (speech.AudioStore, func() error, error) {
	if cfg.Backend != config.CacheBackendRedis {
		return speech.NewMemoryStore(), nil, nil
	}

	store := speech.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		speech.WithRedisPrefix(cfg.RedisPrefix),
		speech.WithRedisTTL(cfg.RedisTTL),
	)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	logger.Info("using redis prompt audio store", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
	return store, store.Close, nil
}

// warmPrompts 预先渲染全部固定语句。失败只记录日志，未命中的语句在首次使用时渲染。
func warmPrompts(ctx context.Context, cache *speech.PromptCache, concurrency int, logger *slog.Logger) {
	warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	rendered, err := cache.Warm(warmCtx, concurrency)
	if err != nil {
		logger.Warn("prompt warmup incomplete", "rendered", rendered, "error", err)
		return
	}
	logger.Info("prompt warmup complete", "rendered", rendered, "elapsed", time.Since(start).Round(time.Millisecond))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, registry *session.Registry, logger *slog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("QuickRupee voice bot listening", "addr", addr)
	if err := runServer(ctx, srv, registry); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server, registry *session.Registry) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// WebSocket 连接已被劫持，Shutdown 不会等待它们。
		registry.CancelAll()
		_ = srv.Shutdown(shutdownCtx)
		if err := registry.Wait(shutdownCtx); err != nil {
			slog.Warn("sessions still open at shutdown", "count", registry.Count())
		}
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
