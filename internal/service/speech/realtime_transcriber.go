package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
)

// ErrTranscriberClosed 表示连接已关闭或尚未建立。
var ErrTranscriberClosed = errors.New("transcriber is closed")

const (
	defaultRealtimeURL   = "wss://api.openai.com/v1/realtime"
	defaultRealtimeModel = "gpt-4o-realtime-preview-2024-12-17"
	eventBufferSize      = 32
)

// RealtimeTranscriber 通过 OpenAI Realtime WebSocket 只做语音转写。
// 所有事件按到达顺序写入 Events()，连接结束后该通道被关闭。
type RealtimeTranscriber struct {
	cfg       *speechmodel.SpeechConfig
	opts      *ConnectionOptions
	logger    *slog.Logger
	sessionID string

	conn    *websocket.Conn
	writeMu sync.Mutex
	events  chan speechmodel.TranscriptEvent
	cancel  context.CancelFunc
	done    chan struct{}

	connected atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewRealtimeTranscriber 创建转写客户端，需调用 Connect 后才能使用。
func NewRealtimeTranscriber(cfg *speechmodel.SpeechConfig, sessionID string, logger *slog.Logger, opts *ConnectionOptions) *RealtimeTranscriber {
	if opts == nil {
		opts = DefaultConnectionOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeTranscriber{
		cfg:       cfg,
		opts:      opts,
		logger:    logger.With("component", "transcriber", "session_id", sessionID),
		sessionID: sessionID,
		events:    make(chan speechmodel.TranscriptEvent, eventBufferSize),
		done:      make(chan struct{}),
	}
}

// Connect 建立连接并下发会话配置。ctx 同时决定接收循环的生命周期。
func (t *RealtimeTranscriber) Connect(ctx context.Context) error {
	if t.closed.Load() {
		return ErrTranscriberClosed
	}
	if t.connected.Load() {
		return nil
	}

	key, err := resolveAPIKey(t.cfg)
	if err != nil {
		return err
	}

	endpoint, err := realtimeEndpoint(t.cfg)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", authHeader(key))
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, err := dialWebSocket(ctx, endpoint, header, t.opts)
	if err != nil {
		return fmt.Errorf("connect realtime transcriber: %w", err)
	}
	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()

	if err := t.write(newSessionUpdate(t.cfg)); err != nil {
		conn.Close()
		return fmt.Errorf("configure realtime session: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.connected.Store(true)

	go t.receiveLoop(loopCtx)
	go pingLoop(loopCtx, conn, t.opts)

	t.logger.Info("realtime transcriber connected")
	return nil
}

// SendAudio 追加一段 PCM16 音频到上游缓冲区。
func (t *RealtimeTranscriber) SendAudio(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}
	return t.write(newAudioAppend(audio))
}

// Commit 提交当前缓冲区，表示一段话说完。
func (t *RealtimeTranscriber) Commit(ctx context.Context) error {
	return t.write(newBufferEvent(clientAudioCommit))
}

// ClearBuffer 丢弃上游尚未提交的音频。
func (t *RealtimeTranscriber) ClearBuffer(ctx context.Context) error {
	return t.write(newBufferEvent(clientAudioClear))
}

// Events 返回事件通道。
func (t *RealtimeTranscriber) Events() <-chan speechmodel.TranscriptEvent {
	return t.events
}

// Close 关闭连接并等待接收循环退出。可重复调用。
func (t *RealtimeTranscriber) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if !t.connected.Load() {
			return
		}

		t.writeMu.Lock()
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(t.opts.WriteTimeout),
		)
		err = t.conn.Close()
		t.writeMu.Unlock()

		t.cancel()
		<-t.done
		t.logger.Info("realtime transcriber closed")
	})
	return err
}

func (t *RealtimeTranscriber) write(evt clientEvent) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed.Load() || t.conn == nil {
		return ErrTranscriberClosed
	}

	t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	if err := t.conn.WriteJSON(evt); err != nil {
		return fmt.Errorf("send %s: %w", evt.Type, err)
	}
	return nil
}

func (t *RealtimeTranscriber) receiveLoop(ctx context.Context) {
	defer close(t.done)
	defer close(t.events)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if !t.closed.Load() && !IsConnectionClosed(err) {
				t.logger.Warn("realtime read failed", "error", err)
				t.emit(ctx, speechmodel.TranscriptEvent{
					Type:       speechmodel.EventError,
					Message:    "transcription connection lost",
					ReceivedAt: time.Now(),
				})
			}
			return
		}
		t.conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))

		evt, ok, err := decodeServerEvent(data, time.Now())
		if err != nil {
			t.logger.Warn("dropping realtime event", "error", err)
			continue
		}
		if !ok {
			continue
		}

		switch evt.Type {
		case speechmodel.EventTranscript:
			t.logger.Debug("transcript received", "text", evt.Text)
		case speechmodel.EventError:
			t.logger.Error("realtime error event", "message", evt.Message)
		}

		if !t.emit(ctx, evt) {
			return
		}
	}
}

func (t *RealtimeTranscriber) emit(ctx context.Context, evt speechmodel.TranscriptEvent) bool {
	select {
	case t.events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func realtimeEndpoint(cfg *speechmodel.SpeechConfig) (string, error) {
	base := strings.TrimSpace(cfg.RealtimeURL)
	if base == "" {
		base = defaultRealtimeURL
	}
	model := strings.TrimSpace(cfg.RealtimeModel)
	if model == "" {
		model = defaultRealtimeModel
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid realtime url %q: %w", base, err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
