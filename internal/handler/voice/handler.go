package voice

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quickrupee/voicebot/backend/internal/analysis/yesno"
	"github.com/quickrupee/voicebot/backend/internal/metrics"
	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
	"github.com/quickrupee/voicebot/backend/internal/service/session"
)

const maxSessionIDLength = 128

// Config 会话时序参数
type Config struct {
	DrainDelay   time.Duration // 接受回答后、静音前等待上游转写冲刷
	EndGrace     time.Duration // 结束语播放完毕前保持连接
	ReadTimeout  time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig 默认时序
func DefaultConfig() Config {
	return Config{
		DrainDelay:   300 * time.Millisecond,
		EndGrace:     5 * time.Second,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// TranscriberFactory 为会话创建转写客户端。
type TranscriberFactory func(sessionID string) Transcriber

// Options 构造 Handler 所需的依赖。
type Options struct {
	Script         *eligibility.Script
	Classifier     eligibility.Classifier
	Audio          AudioSource
	NewTranscriber TranscriberFactory
	Registry       *session.Registry
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Config         Config
}

// Handler 提供语音与文本两种会话入口。
type Handler struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New 创建会话处理器
func New(opts Options) *Handler {
	if opts.Script == nil {
		opts.Script = eligibility.DefaultScript()
	}
	if opts.Classifier == nil {
		opts.Classifier = yesno.Default()
	}
	if opts.Registry == nil {
		opts.Registry = session.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == (Config{}) {
		opts.Config = DefaultConfig()
	}

	return &Handler{
		opts:   opts,
		logger: opts.Logger.With("component", "voice"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/demo/voice/{sessionID}", h.handleVoice)
	r.Get("/ws/chat", h.handleChat)
}

// handleVoice 语音会话：音频经转写服务进入状态机，台词附带音频。
func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		http.Error(w, "invalid sessionID", http.StatusBadRequest)
		return
	}
	h.accept(w, r, sessionID, session.ModeVoice)
}

// handleChat 文本会话：来电方以 user_response 作答，不使用转写与音频。
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, uuid.NewString(), session.ModeText)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request, sessionID string, mode session.Mode) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	lease := h.opts.Registry.Register(sessionID, mode, cancel)
	defer lease.Release()

	h.opts.Metrics.SessionStarted(string(mode))
	defer h.opts.Metrics.SessionEnded()

	logger := h.logger.With("session_id", sessionID, "mode", mode)
	logger.Info("session started")

	s := h.newSession(conn, lease, mode, logger)
	s.serve(ctx, cancel)

	logger.Info("session cleaned up")
}

func (h *Handler) newSession(conn *websocket.Conn, lease *session.Lease, mode session.Mode, logger *slog.Logger) *Session {
	cfg := h.opts.Config
	sessionID := lease.ID()
	s := &Session{
		id:      sessionID,
		mode:    mode,
		conn:    conn,
		engine:  eligibility.NewEngine(h.opts.Script, h.opts.Classifier),
		out:     newOutboundWriter(conn, cfg.PingInterval, cfg.WriteTimeout, 64),
		gate:    newListeningGate(time.Now),
		inputs:  make(chan userInput, 8),
		cfg:     cfg,
		lease:   lease,
		metrics: h.opts.Metrics,
		logger:  logger,
	}

	if mode == session.ModeVoice {
		s.audio = h.opts.Audio
		if h.opts.NewTranscriber != nil {
			s.transcriber = h.opts.NewTranscriber(sessionID)
		}
	} else {
		// 文本会话没有上游缓冲需要冲刷，也没有音频需要播放完。
		s.cfg.DrainDelay = 0
		s.cfg.EndGrace = 0
	}
	return s
}
