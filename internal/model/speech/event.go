package speech

import "time"

// EventType 识别服务推送的事件类型
type EventType string

const (
	EventSessionReady    EventType = "session_ready"
	EventSpeechStarted   EventType = "speech_started"
	EventSpeechStopped   EventType = "speech_stopped"
	EventBufferCommitted EventType = "buffer_committed"
	EventTranscript      EventType = "transcript"
	EventError           EventType = "error"
)

// TranscriptEvent 识别服务的一条事件。ReceivedAt 在收到时打上，用于监听闸门判定。
type TranscriptEvent struct {
	Type       EventType `json:"type"`
	Text       string    `json:"text,omitempty"`
	Message    string    `json:"message,omitempty"`
	ItemID     string    `json:"itemId,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}
