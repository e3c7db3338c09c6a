package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickrupee/voicebot/backend/internal/logging"
	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
)

// fakeRealtimeServer 模拟 Realtime 接口：记录客户端事件，并按 commit 回放一条转写。
func fakeRealtimeServer(t *testing.T, received chan<- clientEvent) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "realtime=v1", r.Header.Get("OpenAI-Beta"))
		assert.Equal(t, "test-model", r.URL.Query().Get("model"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(map[string]any{"type": "session.created"})
		for {
			var evt clientEvent
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			received <- evt

			switch evt.Type {
			case clientAudioCommit:
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
				_ = conn.WriteJSON(map[string]any{"type": "input_audio_buffer.committed", "item_id": "it_1"})
				_ = conn.WriteJSON(map[string]any{
					"type":       "conversation.item.input_audio_transcription.completed",
					"item_id":    "it_1",
					"transcript": "yes",
				})
			case clientAudioClear:
				_ = conn.WriteJSON(map[string]any{
					"type":  "error",
					"error": map[string]any{"message": "buffer already empty"},
				})
			}
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func nextEvent(t *testing.T, events <-chan speechmodel.TranscriptEvent, want speechmodel.EventType) speechmodel.TranscriptEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-events:
			require.True(t, ok, "events closed before %s", want)
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestRealtimeTranscriberFlow(t *testing.T) {
	received := make(chan clientEvent, 16)
	srv := fakeRealtimeServer(t, received)
	defer srv.Close()

	cfg := &speechmodel.SpeechConfig{APIKey: "sk-test", RealtimeURL: wsURL(srv.URL), RealtimeModel: "test-model"}
	tr := NewRealtimeTranscriber(cfg, "s1", logging.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Connect(ctx))

	first := <-received
	assert.Equal(t, clientSessionUpdate, first.Type)
	require.NotNil(t, first.Session)
	assert.False(t, first.Session.TurnDetection.CreateResponse)

	nextEvent(t, tr.Events(), speechmodel.EventSessionReady)

	require.NoError(t, tr.SendAudio(ctx, []byte{1, 2, 3, 4}))
	appendEvt := <-received
	assert.Equal(t, clientAudioAppend, appendEvt.Type)
	assert.NotEmpty(t, appendEvt.Audio)

	before := time.Now()
	require.NoError(t, tr.Commit(ctx))
	nextEvent(t, tr.Events(), speechmodel.EventBufferCommitted)
	transcript := nextEvent(t, tr.Events(), speechmodel.EventTranscript)
	assert.Equal(t, "yes", transcript.Text)
	assert.False(t, transcript.ReceivedAt.Before(before))

	require.NoError(t, tr.ClearBuffer(ctx))
	errEvt := nextEvent(t, tr.Events(), speechmodel.EventError)
	assert.Equal(t, "buffer already empty", errEvt.Message)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.SendAudio(ctx, []byte{1}), ErrTranscriberClosed)

	for range tr.Events() {
	}
}

func TestRealtimeTranscriberServerDisconnectEmitsError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var evt json.RawMessage
		_ = conn.ReadJSON(&evt)
		conn.Close()
	}))
	defer srv.Close()

	cfg := &speechmodel.SpeechConfig{APIKey: "sk-test", RealtimeURL: wsURL(srv.URL)}
	tr := NewRealtimeTranscriber(cfg, "s2", logging.NewNop(), nil)
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	evt := nextEvent(t, tr.Events(), speechmodel.EventError)
	assert.Equal(t, "transcription connection lost", evt.Message)
}

func TestRealtimeTranscriberConnectErrors(t *testing.T) {
	tr := NewRealtimeTranscriber(&speechmodel.SpeechConfig{}, "s3", logging.NewNop(), nil)
	require.ErrorIs(t, tr.Connect(context.Background()), ErrMissingCredentials)
	assert.ErrorIs(t, tr.Commit(context.Background()), ErrTranscriberClosed)
	require.NoError(t, tr.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := &speechmodel.SpeechConfig{APIKey: "sk-test", RealtimeURL: wsURL(srv.URL)}
	tr = NewRealtimeTranscriber(cfg, "s4", logging.NewNop(), nil)
	err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
