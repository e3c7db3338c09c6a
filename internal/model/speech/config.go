package speech

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	// OpenAI 凭证与端点
	APIKey      string `json:"-"`
	BaseURL     string `json:"baseUrl"`     // REST 接口根地址
	RealtimeURL string `json:"realtimeUrl"` // Realtime WebSocket 地址

	// 识别配置
	RealtimeModel   string  `json:"realtimeModel"`
	TranscribeModel string  `json:"transcribeModel"`
	Language        string  `json:"language"`
	VADThreshold    float64 `json:"vadThreshold"`
	VADPrefixMs     int     `json:"vadPrefixMs"`
	VADSilenceMs    int     `json:"vadSilenceMs"`

	// 合成配置
	TTSModel  string `json:"ttsModel"`
	TTSVoice  string `json:"ttsVoice"`
	TTSFormat string `json:"ttsFormat"`

	// 通用配置
	Timeout int `json:"timeout"` // seconds
}
