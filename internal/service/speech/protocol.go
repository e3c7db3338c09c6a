package speech

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
)

// Realtime 客户端事件
const (
	clientSessionUpdate = "session.update"
	clientAudioAppend   = "input_audio_buffer.append"
	clientAudioCommit   = "input_audio_buffer.commit"
	clientAudioClear    = "input_audio_buffer.clear"
)

// Realtime 服务端事件
const (
	serverSessionCreated      = "session.created"
	serverSessionUpdated      = "session.updated"
	serverSpeechStarted       = "input_audio_buffer.speech_started"
	serverSpeechStopped       = "input_audio_buffer.speech_stopped"
	serverBufferCommitted     = "input_audio_buffer.committed"
	serverTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	serverTranscriptFailed    = "conversation.item.input_audio_transcription.failed"
	serverError               = "error"
)

// ErrMalformedEvent 表示服务端事件无法解析。
var ErrMalformedEvent = errors.New("malformed realtime event")

type clientEvent struct {
	EventID string         `json:"event_id,omitempty"`
	Type    string         `json:"type"`
	Audio   string         `json:"audio,omitempty"`
	Session *sessionConfig `json:"session,omitempty"`
}

type sessionConfig struct {
	Modalities              []string             `json:"modalities"`
	InputAudioFormat        string               `json:"input_audio_format"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription"`
	TurnDetection           *turnDetection       `json:"turn_detection"`
	Temperature             float64              `json:"temperature"`
}

type transcriptionConfig struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
	CreateResponse    bool    `json:"create_response"`
}

type serverEvent struct {
	Type       string           `json:"type"`
	EventID    string           `json:"event_id"`
	ItemID     string           `json:"item_id"`
	Transcript string           `json:"transcript"`
	Error      *serverErrorBody `json:"error"`
}

type serverErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newEventID() string {
	return "evt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newSessionUpdate 只开启输入转写，关闭自动回复；机器人台词由脚本决定。
func newSessionUpdate(cfg *speechmodel.SpeechConfig) clientEvent {
	threshold := cfg.VADThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	prefix := cfg.VADPrefixMs
	if prefix <= 0 {
		prefix = 300
	}
	silence := cfg.VADSilenceMs
	if silence <= 0 {
		silence = 600
	}
	model := cfg.TranscribeModel
	if model == "" {
		model = "whisper-1"
	}

	return clientEvent{
		EventID: newEventID(),
		Type:    clientSessionUpdate,
		Session: &sessionConfig{
			Modalities:       []string{"text", "audio"},
			InputAudioFormat: "pcm16",
			InputAudioTranscription: &transcriptionConfig{
				Model:    model,
				Language: cfg.Language,
			},
			TurnDetection: &turnDetection{
				Type:              "server_vad",
				Threshold:         threshold,
				PrefixPaddingMs:   prefix,
				SilenceDurationMs: silence,
				CreateResponse:    false,
			},
			Temperature: 0.6,
		},
	}
}

func newAudioAppend(audio []byte) clientEvent {
	return clientEvent{
		EventID: newEventID(),
		Type:    clientAudioAppend,
		Audio:   base64.StdEncoding.EncodeToString(audio),
	}
}

func newBufferEvent(eventType string) clientEvent {
	return clientEvent{EventID: newEventID(), Type: eventType}
}

// decodeServerEvent 把服务端事件转换为 TranscriptEvent。
// 不关心的事件返回 ok=false；无法解析时返回 ErrMalformedEvent。
func decodeServerEvent(raw []byte, receivedAt time.Time) (speechmodel.TranscriptEvent, bool, error) {
	var evt serverEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return speechmodel.TranscriptEvent{}, false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.Type == "" {
		return speechmodel.TranscriptEvent{}, false, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}

	out := speechmodel.TranscriptEvent{ItemID: evt.ItemID, ReceivedAt: receivedAt}
	switch evt.Type {
	case serverTranscriptCompleted:
		out.Type = speechmodel.EventTranscript
		out.Text = strings.TrimSpace(evt.Transcript)
	case serverTranscriptFailed, serverError:
		out.Type = speechmodel.EventError
		out.Message = "transcription error"
		if evt.Error != nil && evt.Error.Message != "" {
			out.Message = evt.Error.Message
		}
	case serverSessionCreated, serverSessionUpdated:
		out.Type = speechmodel.EventSessionReady
	case serverSpeechStarted:
		out.Type = speechmodel.EventSpeechStarted
	case serverSpeechStopped:
		out.Type = speechmodel.EventSpeechStopped
	case serverBufferCommitted:
		out.Type = speechmodel.EventBufferCommitted
	default:
		return speechmodel.TranscriptEvent{}, false, nil
	}
	return out, true, nil
}
