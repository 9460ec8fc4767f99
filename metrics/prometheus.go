// Package metrics exposes the Prometheus collectors for the push-to-talk service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on its own registry, so tests can build as
// many instances as they like. All Record methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	Requests       *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	StageFailures  *prometheus.CounterVec
	SilenceTrims   *prometheus.CounterVec
	UtteranceAudio prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// WebSocket metrics
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ptt_requests_total",
			Help: "Push-to-talk turns by result",
		}, []string{"result"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ptt_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ptt_stage_failures_total",
			Help: "Pipeline failures by stage",
		}, []string{"stage"}),
		SilenceTrims: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ptt_silence_trim_total",
			Help: "Silence trimming outcomes",
		}, []string{"outcome"}),
		UtteranceAudio: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ptt_utterance_duration_seconds",
			Help:    "Length of normalized utterances sent to speech recognition",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~30s
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ptt_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ptt_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "ptt_ws_active_sessions",
			Help: "Currently open WebSocket sessions",
		}),
	}
}

// Handler serves this instance's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordStage observes how long a stage took and counts it as a failure when failed is set.
func (m *Metrics) RecordStage(stage string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
	if failed {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRequest counts a finished turn. result is "ok" or the failing stage.
func (m *Metrics) RecordRequest(result string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTrim(outcome string) {
	if m == nil {
		return
	}
	m.SilenceTrims.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordUtterance(seconds float64) {
	if m == nil {
		return
	}
	m.UtteranceAudio.Observe(seconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
