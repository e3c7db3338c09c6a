package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickrupee/voicebot/backend/internal/analysis/yesno"
	"github.com/quickrupee/voicebot/backend/internal/logging"
	"github.com/quickrupee/voicebot/backend/internal/model/screening"
	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
	"github.com/quickrupee/voicebot/backend/internal/service/session"
)

type stubAudio struct {
	err   error
	calls []string
}

func (s *stubAudio) GetOrRender(_ context.Context, text string) ([]byte, error) {
	s.calls = append(s.calls, text)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3" + text), nil
}

func setupRouter(audio AudioSource) (*chi.Mux, *eligibility.Script, *session.Registry) {
	script := eligibility.DefaultScript()
	registry := session.NewRegistry()
	handler := New(script, yesno.Default(), audio, registry, logging.NewNop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, script, registry
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestScriptEndpoint(t *testing.T) {
	r, script, _ := setupRouter(nil)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/script", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var body scriptResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, eligibility.DefaultMinSalary, body.MinSalary)
	assert.Equal(t, []string{"delhi", "mumbai", "bangalore"}, body.Cities)
	assert.Equal(t, script.Prompt(screening.StepAskSalary), body.Prompts[screening.StepAskSalary])
	assert.Equal(t, 9, body.VocabularySize)
}

func TestEvaluateEndpoint(t *testing.T) {
	r, _, _ := setupRouter(nil)

	resp := postJSON(r, "/screening/evaluate", map[string]any{"answers": []string{"yes", "umm", "no"}})
	require.Equal(t, http.StatusOK, resp.Code)

	var eval eligibility.Evaluation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &eval))
	assert.True(t, eval.Complete)
	require.NotNil(t, eval.Outcome)
	assert.False(t, *eval.Outcome)
	assert.Equal(t, screening.StepNotEligible, eval.Final.Step)
	assert.Equal(t, screening.ReasonSalaryBelowThreshold, eval.Final.RejectionReason)
	assert.Equal(t, 1, eval.Final.Reprompts)
	assert.Len(t, eval.Turns, 4)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	r, _, _ := setupRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/screening/evaluate", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	answers := make([]string, maxAnswers+1)
	resp = postJSON(r, "/screening/evaluate", map[string]any{"answers": answers})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSynthesizeServesScriptAudio(t *testing.T) {
	audio := &stubAudio{}
	r, script, _ := setupRouter(audio)
	text := script.Prompt(screening.StepAskCity)

	resp := postJSON(r, "/speech/synthesize", map[string]string{"text": text})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "audio/mpeg", resp.Header().Get("Content-Type"))
	assert.Equal(t, "ID3"+text, resp.Body.String())
	assert.Equal(t, []string{text}, audio.calls)
}

func TestSynthesizeRejectsFreeText(t *testing.T) {
	audio := &stubAudio{}
	r, _, _ := setupRouter(audio)

	resp := postJSON(r, "/speech/synthesize", map[string]string{"text": "Say something else"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = postJSON(r, "/speech/synthesize", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, audio.calls)
}

func TestSynthesizeFailures(t *testing.T) {
	r, script, _ := setupRouter(nil)
	resp := postJSON(r, "/speech/synthesize", map[string]string{"text": script.Prompt(screening.StepGreeting)})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	r, script, _ = setupRouter(&stubAudio{err: errors.New("upstream 500")})
	resp = postJSON(r, "/speech/synthesize", map[string]string{"text": script.Prompt(screening.StepGreeting)})
	assert.Equal(t, http.StatusBadGateway, resp.Code)
}

func TestSessionsEndpoint(t *testing.T) {
	r, _, registry := setupRouter(nil)
	lease := registry.Register("abc", session.ModeText, func() {})
	defer lease.Release()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var infos []session.Info
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "abc", infos[0].ID)
	assert.Equal(t, session.ModeText, infos[0].Mode)
}
