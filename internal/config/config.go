package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quickrupee/voicebot/backend/internal/logging"
	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server      ServerConfig
	Speech      SpeechConfig
	Eligibility EligibilityConfig
	Session     SessionConfig
	Cache       CacheConfig
	Log         LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	elig, err := loadEligibilityConfig()
	if err != nil {
		return nil, err
	}

	sess, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	cache, err := loadCacheConfig()
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return &Config{
		Server:      server,
		Speech:      speech,
		Eligibility: elig,
		Session:     sess,
		Cache:       cache,
		Log:         LogConfig{Level: level},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	host := strings.TrimSpace(os.Getenv("HOST"))
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: host + ":" + port}, nil
}

// SpeechConfig 描述 OpenAI 语音相关配置
type SpeechConfig struct {
	APIKey          string
	BaseURL         string
	RealtimeURL     string
	RealtimeModel   string
	TranscribeModel string
	TTSModel        string
	Voice           string
	Language        string
	Timeout         int
	Enabled         bool
}

// Model 转换为语音服务使用的配置。
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		RealtimeURL:     c.RealtimeURL,
		RealtimeModel:   c.RealtimeModel,
		TranscribeModel: c.TranscribeModel,
		Language:        c.Language,
		VADThreshold:    0.5,
		VADPrefixMs:     300,
		VADSilenceMs:    600,
		TTSModel:        c.TTSModel,
		TTSVoice:        c.Voice,
		TTSFormat:       "mp3",
		Timeout:         c.Timeout,
	}
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))

	return SpeechConfig{
		APIKey:          apiKey,
		BaseURL:         getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		RealtimeURL:     getEnvOrDefault("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		TranscribeModel: getEnvOrDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		TTSModel:        getEnvOrDefault("TTS_MODEL", "tts-1"),
		Voice:           getEnvOrDefault("VOICE", "alloy"),
		Language:        getEnvOrDefault("LANGUAGE", "en"),
		Timeout:         timeoutSeconds,
		Enabled:         apiKey != "",
	}, nil
}

// EligibilityConfig 描述筛查规则与脚本来源。
type EligibilityConfig struct {
	MinSalary  int
	Cities     []string
	ScriptFile string
}

func loadEligibilityConfig() (EligibilityConfig, error) {
	minSalary, err := parseIntEnv("MIN_SALARY", eligibility.DefaultMinSalary)
	if err != nil {
		return EligibilityConfig{}, err
	}
	if minSalary < 0 {
		return EligibilityConfig{}, fmt.Errorf("invalid MIN_SALARY value %d: must not be negative", minSalary)
	}

	var cities []string
	for _, city := range strings.Split(os.Getenv("ELIGIBLE_CITIES"), ",") {
		if city = strings.TrimSpace(city); city != "" {
			cities = append(cities, city)
		}
	}
	if len(cities) == 0 {
		cities = append([]string(nil), eligibility.DefaultCities...)
	}

	return EligibilityConfig{
		MinSalary:  minSalary,
		Cities:     cities,
		ScriptFile: strings.TrimSpace(os.Getenv("SCRIPT_FILE")),
	}, nil
}

// SessionConfig 描述会话时序。
type SessionConfig struct {
	DrainDelay   time.Duration
	EndGrace     time.Duration
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	drain, err := parseIntEnv("TRANSCRIPT_DRAIN_MS", 300)
	if err != nil {
		return SessionConfig{}, err
	}
	grace, err := parseIntEnv("END_GRACE_MS", 5000)
	if err != nil {
		return SessionConfig{}, err
	}
	readTimeout, err := parseIntEnv("READ_TIMEOUT_SECONDS", 60)
	if err != nil {
		return SessionConfig{}, err
	}
	ping, err := parseIntEnv("PING_INTERVAL_SECONDS", 30)
	if err != nil {
		return SessionConfig{}, err
	}
	if readTimeout <= 0 || ping <= 0 {
		return SessionConfig{}, fmt.Errorf("READ_TIMEOUT_SECONDS and PING_INTERVAL_SECONDS must be positive")
	}

	return SessionConfig{
		DrainDelay:   time.Duration(drain) * time.Millisecond,
		EndGrace:     time.Duration(grace) * time.Millisecond,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		PingInterval: time.Duration(ping) * time.Second,
	}, nil
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig 描述提示音缓存。
type CacheConfig struct {
	Backend           string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisPrefix       string
	RedisTTL          time.Duration
	Warmup            bool
	WarmupConcurrency int
}

func loadCacheConfig() (CacheConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("TTS_CACHE_BACKEND", CacheBackendMemory))
	if backend != CacheBackendMemory && backend != CacheBackendRedis {
		return CacheConfig{}, fmt.Errorf("invalid TTS_CACHE_BACKEND value %q", backend)
	}

	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return CacheConfig{}, err
	}
	ttlHours, err := parseIntEnv("REDIS_TTL_HOURS", 0)
	if err != nil {
		return CacheConfig{}, err
	}
	warmup, err := parseBoolEnv("TTS_WARMUP", true)
	if err != nil {
		return CacheConfig{}, err
	}
	concurrency, err := parseIntEnv("TTS_WARMUP_CONCURRENCY", 4)
	if err != nil {
		return CacheConfig{}, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return CacheConfig{
		Backend:           backend,
		RedisAddr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           db,
		RedisPrefix:       getEnvOrDefault("REDIS_PREFIX", "voicebot:tts:"),
		RedisTTL:          time.Duration(ttlHours) * time.Hour,
		Warmup:            warmup,
		WarmupConcurrency: concurrency,
	}, nil
}

// LogConfig 描述日志级别。
type LogConfig struct {
	Level slog.Level
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
