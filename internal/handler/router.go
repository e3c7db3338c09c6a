package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quickrupee/voicebot/backend/internal/handler/screening"
	"github.com/quickrupee/voicebot/backend/internal/handler/voice"
	"github.com/quickrupee/voicebot/backend/internal/metrics"
	middlewarePkg "github.com/quickrupee/voicebot/backend/internal/middleware"
	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
	"github.com/quickrupee/voicebot/backend/internal/service/session"
	"github.com/quickrupee/voicebot/backend/pkg/utils"
)

// PromptAudio 是共享的提示音来源，通常为 speech.PromptCache。
type PromptAudio interface {
	GetOrRender(ctx context.Context, text string) ([]byte, error)
	Len(ctx context.Context) int
}

// Dependencies 汇总路由需要的服务。Audio 与 NewTranscriber 在未配置语音服务时为 nil。
type Dependencies struct {
	Script           *eligibility.Script
	Classifier       eligibility.Classifier
	Audio            PromptAudio
	NewTranscriber   voice.TranscriberFactory
	Registry         *session.Registry
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
	Session          voice.Config
	OpenAIConfigured bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Registry == nil {
		deps.Registry = session.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var audio voice.AudioSource
	var screeningAudio screening.AudioSource
	if deps.Audio != nil {
		audio = deps.Audio
		screeningAudio = deps.Audio
	}

	voiceHandler := voice.New(voice.Options{
		Script:         deps.Script,
		Classifier:     deps.Classifier,
		Audio:          audio,
		NewTranscriber: deps.NewTranscriber,
		Registry:       deps.Registry,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
		Config:         deps.Session,
	})
	screeningHandler := screening.New(deps.Script, deps.Classifier, screeningAudio, deps.Registry, deps.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		cached := 0
		if deps.Audio != nil {
			cached = deps.Audio.Len(r.Context())
		}
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":            "healthy",
			"active_sessions":   deps.Registry.Count(),
			"openai_configured": deps.OpenAIConfigured,
			"mode":              "voice",
			"cached_prompts":    cached,
		})
	})
	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		screeningHandler.RegisterRoutes(api)
	})

	voiceHandler.RegisterRoutes(r)

	return r
}
