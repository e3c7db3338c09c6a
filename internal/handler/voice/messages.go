package voice

import (
	"encoding/base64"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

// 来电方 -> 机器人
const (
	msgAudio        = "audio"
	msgAudioEnd     = "audio_end"
	msgUserResponse = "user_response"
	msgPing         = "ping"
	msgEnd          = "end"
)

// 机器人 -> 来电方
const (
	outReady           = "ready"
	outPong            = "pong"
	outMuteMic         = "mute_mic"
	outUnmuteMic       = "unmute_mic"
	outTranscript      = "transcript"
	outBotMessage      = "bot_message"
	outAudio           = "audio_mp3"
	outStateUpdate     = "state_update"
	outEndConversation = "end_conversation"
	outError           = "error"
)

const readyText = "Connected to voice bot"

type inboundMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Text string `json:"text,omitempty"`
}

func signalMessage(kind string) map[string]any {
	return map[string]any{"type": kind}
}

func readyMessage(sessionID, mode string) map[string]any {
	return map[string]any{
		"type":       outReady,
		"message":    readyText,
		"session_id": sessionID,
		"mode":       mode,
	}
}

func transcriptMessage(text string) map[string]any {
	return map[string]any{"type": outTranscript, "text": text, "role": "user"}
}

func botMessage(text string) map[string]any {
	return map[string]any{"type": outBotMessage, "text": text}
}

func audioMessage(audio []byte) map[string]any {
	return map[string]any{"type": outAudio, "data": base64.StdEncoding.EncodeToString(audio)}
}

// stateUpdateMessage 中 is_eligible 在非结论步骤为 null。
func stateUpdateMessage(res screening.Result) map[string]any {
	return map[string]any{
		"type":        outStateUpdate,
		"state":       res.Step,
		"should_end":  res.ShouldEnd,
		"is_eligible": res.IsEligible,
	}
}

func endMessage(isEligible *bool) map[string]any {
	return map[string]any{"type": outEndConversation, "is_eligible": isEligible}
}

func errorMessage(message string) map[string]any {
	return map[string]any{"type": outError, "message": message}
}
