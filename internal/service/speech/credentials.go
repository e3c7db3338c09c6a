package speech

import (
	"errors"
	"fmt"
	"strings"

	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
)

// ErrMissingCredentials 表示未配置 OpenAI API Key。
var ErrMissingCredentials = errors.New("openai api key is not configured")

// resolveAPIKey 返回规范化后的 API Key，缺失时给出明确错误。
func resolveAPIKey(cfg *speechmodel.SpeechConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("speech config is nil: %w", ErrMissingCredentials)
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return "", ErrMissingCredentials
	}
	return key, nil
}

// authHeader 生成 Bearer 认证头的值。
func authHeader(key string) string {
	return "Bearer " + key
}

// ErrSpeakerUnavailable 表示没有可用的语音合成器。
var ErrSpeakerUnavailable = errors.New("speaker is unavailable")
