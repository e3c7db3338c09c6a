package speech

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID string  `json:"sessionId,omitempty"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice,omitempty"`
	Model     string  `json:"model,omitempty"`
	Format    string  `json:"format,omitempty"` // mp3, opus, wav
	Speed     float32 `json:"speed,omitempty"`  // 0.25-4.0
}
