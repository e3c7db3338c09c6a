package screening

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
	"github.com/quickrupee/voicebot/backend/internal/service/session"
	"github.com/quickrupee/voicebot/backend/pkg/utils"
)

const maxAnswers = 32

// AudioSource 返回提示语音频。
type AudioSource interface {
	GetOrRender(ctx context.Context, text string) ([]byte, error)
}

// Handler 筛查脚本相关的 REST 接口
type Handler struct {
	script     *eligibility.Script
	classifier eligibility.Classifier
	audio      AudioSource
	registry   *session.Registry
	logger     *slog.Logger
}

// New 创建筛查处理器，audio 与 registry 可以为 nil。
func New(script *eligibility.Script, classifier eligibility.Classifier, audio AudioSource, registry *session.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		script:     script,
		classifier: classifier,
		audio:      audio,
		registry:   registry,
		logger:     logger.With("component", "screening"),
	}
}

// RegisterRoutes 注册筛查相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/script", h.handleScript)
	r.Post("/screening/evaluate", h.handleEvaluate)
	r.Post("/speech/synthesize", h.handleSynthesize)
	r.Get("/sessions", h.handleSessions)
}

type scriptResponse struct {
	Prompts        map[screening.Step]string `json:"prompts"`
	Clarification  string                    `json:"clarification"`
	MinSalary      int                       `json:"min_salary"`
	Cities         []string                  `json:"cities"`
	VocabularySize int                       `json:"vocabulary_size"`
}

func (h *Handler) handleScript(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, scriptResponse{
		Prompts:        h.script.Prompts(),
		Clarification:  h.script.Clarification(),
		MinSalary:      h.script.MinSalary(),
		Cities:         h.script.Cities(),
		VocabularySize: len(h.script.Vocabulary()),
	})
}

type evaluateRequest struct {
	Answers []string `json:"answers"`
}

// handleEvaluate 用一组回答离线跑一遍脚本。
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Answers) > maxAnswers {
		utils.RespondError(w, http.StatusBadRequest, "too many answers (max "+strconv.Itoa(maxAnswers)+")")
		return
	}

	utils.RespondJSON(w, http.StatusOK, eligibility.Evaluate(h.script, h.classifier, req.Answers))
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// handleSynthesize 只为脚本中的固定语句返回音频。
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if h.audio == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis unavailable")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if !h.script.Contains(text) {
		utils.RespondError(w, http.StatusBadRequest, "text is not part of the screening script")
		return
	}

	audio, err := h.audio.GetOrRender(r.Context(), text)
	if err != nil {
		h.logger.Error("synthesize prompt failed", "error", err)
		utils.RespondError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		h.logger.Warn("write audio response failed", "error", err)
	}
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		utils.RespondJSON(w, http.StatusOK, []session.Info{})
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.registry.List())
}
