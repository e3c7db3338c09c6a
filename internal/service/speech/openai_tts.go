package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultTTSModel  = "tts-1"
	defaultTTSFormat = "mp3"
	maxErrorBody     = 4096
)

// ErrEmptyAudio 表示合成接口返回了空音频。
var ErrEmptyAudio = errors.New("speech synthesis returned no audio")

// HTTPStatusError 记录上游返回的非 2xx 响应。
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

type ttsPayload struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float32 `json:"speed,omitempty"`
}

// SpeakerOption 配置 OpenAISpeaker。
type SpeakerOption func(*OpenAISpeaker)

// WithHTTPClient 替换默认 HTTP 客户端。
func WithHTTPClient(client *http.Client) SpeakerOption {
	return func(s *OpenAISpeaker) {
		s.httpClient = client
	}
}

// WithBaseURL 覆盖接口根地址。
func WithBaseURL(baseURL string) SpeakerOption {
	return func(s *OpenAISpeaker) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// OpenAISpeaker 调用 /audio/speech 把文本渲染为音频。
type OpenAISpeaker struct {
	cfg        *speechmodel.SpeechConfig
	httpClient *http.Client
	baseURL    string
	voice      string
	model      string
	format     string
	logger     *slog.Logger
}

// NewOpenAISpeaker 创建语音合成客户端。
func NewOpenAISpeaker(cfg *speechmodel.SpeechConfig, logger *slog.Logger, opts ...SpeakerOption) *OpenAISpeaker {
	if cfg == nil {
		cfg = &speechmodel.SpeechConfig{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.TTSModel)
	if model == "" {
		model = defaultTTSModel
	}
	format := strings.TrimSpace(cfg.TTSFormat)
	if format == "" {
		format = defaultTTSFormat
	}

	s := &OpenAISpeaker{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		voice:      NormalizeVoice(cfg.TTSVoice),
		model:      model,
		format:     format,
		logger:     logger.With("component", "speaker"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Voice 返回当前使用的音色。
func (s *OpenAISpeaker) Voice() string {
	return s.voice
}

// Model 返回合成模型。
func (s *OpenAISpeaker) Model() string {
	return s.model
}

// Render 使用默认音色渲染文本。
func (s *OpenAISpeaker) Render(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.Synthesize(ctx, &speechmodel.TTSRequest{Text: text})
	if err != nil {
		return nil, err
	}
	return resp.AudioData, nil
}

// Synthesize 执行一次合成请求。
func (s *OpenAISpeaker) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("synthesize: text is required")
	}

	key, err := resolveAPIKey(s.cfg)
	if err != nil {
		return nil, err
	}

	voice := s.voice
	if req.Voice != "" {
		voice = NormalizeVoice(req.Voice)
	}
	model := s.model
	if req.Model != "" {
		model = req.Model
	}
	format := s.format
	if req.Format != "" {
		format = req.Format
	}

	body, err := json.Marshal(ttsPayload{
		Model:          model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	endpoint := s.baseURL + "/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	httpReq.Header.Set("Authorization", authHeader(key))
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	elapsed := time.Since(started)
	s.logger.Debug("speech rendered", "chars", len(req.Text), "bytes", len(audio), "elapsed", elapsed)

	return &speechmodel.TTSResponse{
		SessionID: req.SessionID,
		AudioData: audio,
		Format:    format,
		Voice:     voice,
		Duration:  elapsed.Milliseconds(),
		CreatedAt: time.Now(),
	}, nil
}
