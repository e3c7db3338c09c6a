package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickrupee/voicebot/backend/internal/logging"
	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
)

func TestOpenAISpeakerRender(t *testing.T) {
	var got ttsPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	speaker := NewOpenAISpeaker(&speechmodel.SpeechConfig{APIKey: "sk-test", TTSVoice: "Nova"}, logging.NewNop(), WithBaseURL(srv.URL+"/"))

	audio, err := speaker.Render(context.Background(), "Are you currently a salaried employee?")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
	assert.Equal(t, ttsPayload{
		Model:          "tts-1",
		Input:          "Are you currently a salaried employee?",
		Voice:          "nova",
		ResponseFormat: "mp3",
	}, got)
}

func TestOpenAISpeakerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	speaker := NewOpenAISpeaker(&speechmodel.SpeechConfig{APIKey: "sk-test"}, logging.NewNop(), WithBaseURL(srv.URL))
	_, err := speaker.Render(context.Background(), "hello")

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "rate limited")
}

func TestOpenAISpeakerEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	speaker := NewOpenAISpeaker(&speechmodel.SpeechConfig{APIKey: "sk-test"}, logging.NewNop(), WithBaseURL(srv.URL))
	_, err := speaker.Render(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmptyAudio)
}

func TestOpenAISpeakerRequiresCredentials(t *testing.T) {
	speaker := NewOpenAISpeaker(&speechmodel.SpeechConfig{}, logging.NewNop())
	_, err := speaker.Render(context.Background(), "hello")
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, err = speaker.Synthesize(context.Background(), &speechmodel.TTSRequest{Text: " "})
	require.Error(t, err)
}
