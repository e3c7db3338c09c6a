package speech

import "time"

// TTSResponse 语音合成响应
type TTSResponse struct {
	SessionID string    `json:"sessionId,omitempty"`
	AudioData []byte    `json:"-"`
	Format    string    `json:"format"`
	Voice     string    `json:"voice"`
	Cached    bool      `json:"cached"`
	Duration  int64     `json:"duration"` // milliseconds spent rendering
	CreatedAt time.Time `json:"createdAt"`
}
