package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 会话结局标签。
const (
	OutcomeEligible    = "eligible"
	OutcomeNotEligible = "not_eligible"
	OutcomeAbandoned   = "abandoned"
)

// 缓存查询结果标签。
const (
	CacheHit         = "hit"
	CacheMiss        = "miss"
	CacheError       = "error"
	CacheUncacheable = "uncacheable"
)

// Metrics 汇总语音机器人的 Prometheus 指标。
// nil *Metrics 上的所有方法都是空操作。
type Metrics struct {
	registry *prometheus.Registry

	activeSessions       prometheus.Gauge
	sessionsTotal        *prometheus.CounterVec
	outcomes             *prometheus.CounterVec
	reprompts            prometheus.Counter
	discardedTranscripts prometheus.Counter
	cacheLookups         *prometheus.CounterVec
	renderDuration       prometheus.Histogram
}

// New 在独立的 registry 上注册全部指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicebot_active_sessions",
			Help: "Number of screening sessions currently connected",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_sessions_total",
			Help: "Screening sessions accepted, by mode",
		}, []string{"mode"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_outcomes_total",
			Help: "Finished screening sessions by outcome and rejection reason",
		}, []string{"outcome", "reason"}),
		reprompts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_reprompts_total",
			Help: "Questions repeated after an ambiguous answer",
		}),
		discardedTranscripts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_discarded_transcripts_total",
			Help: "Transcripts dropped because the listening gate was closed",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebot_tts_cache_lookups_total",
			Help: "Prompt audio cache lookups by result",
		}, []string{"result"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_tts_render_seconds",
			Help:    "Duration of text-to-speech render calls",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.activeSessions,
		m.sessionsTotal,
		m.outcomes,
		m.reprompts,
		m.discardedTranscripts,
		m.cacheLookups,
		m.renderDuration,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler 返回 /metrics 的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 暴露底层 registry，便于测试读取。
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SessionStarted(mode string) {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
	m.sessionsTotal.WithLabelValues(mode).Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) Outcome(outcome, reason string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) Reprompt() {
	if m == nil {
		return
	}
	m.reprompts.Inc()
}

func (m *Metrics) TranscriptDiscarded() {
	if m == nil {
		return
	}
	m.discardedTranscripts.Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRender(seconds float64) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(seconds)
}
