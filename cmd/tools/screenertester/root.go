package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quickrupee/voicebot/backend/internal/config"
	"github.com/quickrupee/voicebot/backend/internal/logging"
	"github.com/quickrupee/voicebot/backend/internal/service/speech"
)

var rootCmd = &cobra.Command{
	Use:   "screenertester",
	Short: "Operator tool for the QuickRupee eligibility screener",
	Long: `Run the screening script from a terminal, replay answer scenarios,
render prompt audio and pre-populate the shared prompt cache.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env", ".env", "Path to an env file to load before reading configuration")
	rootCmd.PersistentFlags().String("script", "", "Override SCRIPT_FILE")
}

// loadConfig 加载 .env 与环境变量配置，--script 覆盖 SCRIPT_FILE。
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if scriptFile, _ := cmd.Flags().GetString("script"); scriptFile != "" {
		cfg.Eligibility.ScriptFile = scriptFile
	}
	return cfg, logging.New(cfg.Log.Level), nil
}

// newPromptCache 按配置构造提示音缓存，返回的 close 函数释放存储连接。
func newPromptCache(ctx context.Context, cfg *config.Config, vocabulary []string, logger *slog.Logger) (*speech.PromptCache, func(), error) {
	if !cfg.Speech.Enabled {
		return nil, nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	var store speech.AudioStore = speech.NewMemoryStore()
	closeFn := func() {}
	if cfg.Cache.Backend == config.CacheBackendRedis {
		redisStore := speech.NewRedisStore(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB,
			speech.WithRedisPrefix(cfg.Cache.RedisPrefix),
			speech.WithRedisTTL(cfg.Cache.RedisTTL),
		)
		if err := redisStore.Ping(ctx); err != nil {
			_ = redisStore.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		store = redisStore
		closeFn = func() { _ = redisStore.Close() }
	}

	speaker := speech.NewOpenAISpeaker(cfg.Speech.Model(), logger)
	cache := speech.NewPromptCache(speaker, store, speech.CacheOptions{
		Voice:      speaker.Voice(),
		Model:      speaker.Model(),
		Vocabulary: vocabulary,
		Logger:     logger,
	})
	return cache, closeFn, nil
}
