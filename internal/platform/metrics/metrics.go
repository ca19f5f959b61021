package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the camera wall.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	sessions          *prometheus.GaugeVec
	retriesTotal      prometheus.Counter
	failuresTotal     prometheus.Counter
	levelSwitches     *prometheus.CounterVec
	revealsTotal      *prometheus.CounterVec
	startupSeconds    prometheus.Histogram
	cameraSyncsFailed prometheus.Counter
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camwall_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camwall_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	sessions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "camwall_sessions",
		Help: "Number of playback sessions by state",
	}, []string{"state"})
	retriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camwall_session_retries_total",
		Help: "Total number of autonomous session retries scheduled",
	})
	failuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camwall_session_failures_total",
		Help: "Total number of sessions that exhausted retries or are unsupported",
	})
	levelSwitches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camwall_quality_switches_total",
		Help: "Quality level changes requested by the buffer health monitor",
	}, []string{"direction"})
	revealsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camwall_video_reveals_total",
		Help: "Video surfaces revealed, by whether the grace period forced it",
	}, []string{"forced"})
	startupSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camwall_session_startup_seconds",
		Help:    "Time from entering Loading to reaching Playing",
		Buckets: []float64{0.5, 1, 2, 4, 8, 12, 20},
	})
	cameraSyncsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camwall_camera_sync_failures_total",
		Help: "Camera list fetches that failed",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		sessions,
		retriesTotal,
		failuresTotal,
		levelSwitches,
		revealsTotal,
		startupSeconds,
		cameraSyncsFailed,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		sessions:          sessions,
		retriesTotal:      retriesTotal,
		failuresTotal:     failuresTotal,
		levelSwitches:     levelSwitches,
		revealsTotal:      revealsTotal,
		startupSeconds:    startupSeconds,
		cameraSyncsFailed: cameraSyncsFailed,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetSessionStates replaces the per-state session gauge. States missing from
// counts are reported as zero.
func (m *Metrics) SetSessionStates(states []string, counts map[string]int) {
	for _, s := range states {
		m.sessions.WithLabelValues(s).Set(float64(counts[s]))
	}
}

// IncRetries increments the scheduled retries counter.
func (m *Metrics) IncRetries() {
	m.retriesTotal.Inc()
}

// IncFailures increments the failed sessions counter.
func (m *Metrics) IncFailures() {
	m.failuresTotal.Inc()
}

// IncLevelSwitch counts a quality change; direction is "up" or "down".
func (m *Metrics) IncLevelSwitch(direction string) {
	m.levelSwitches.WithLabelValues(direction).Inc()
}

// IncReveal counts a video reveal.
func (m *Metrics) IncReveal(forced bool) {
	label := "false"
	if forced {
		label = "true"
	}
	m.revealsTotal.WithLabelValues(label).Inc()
}

// ObserveStartup records seconds spent between Loading and Playing.
func (m *Metrics) ObserveStartup(seconds float64) {
	m.startupSeconds.Observe(seconds)
}

// IncCameraSyncFailures counts a failed camera list fetch.
func (m *Metrics) IncCameraSyncFailures() {
	m.cameraSyncsFailed.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. sessions by state).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
