package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame processing counters
	FramesProcessed    atomic.Uint64
	MotionFrames       atomic.Uint64
	FirstFrames        atomic.Uint64
	StretchSuggestions atomic.Uint64

	// Presence transitions
	AbsenceTransitions atomic.Uint64
	Returns            atomic.Uint64
	Resets             atomic.Uint64

	// Error counters
	DecodeErrors   atomic.Uint64
	InternalErrors atomic.Uint64

	// Alert persistence
	AlertsRecorded atomic.Uint64
	AlertErrors    atomic.Uint64

	// Result stream
	StreamClients atomic.Int64
	StreamDropped atomic.Uint64

	// Latency tracking
	ProcessLatencyMs atomic.Uint64 // Last frame processing latency in ms

	activeSessions atomic.Pointer[func() int]
	processSeconds prometheus.Histogram

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		processSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "presence_frame_process_seconds",
			Help:    "Time spent decoding and comparing one frame",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.counter("presence_frames_processed_total", "Total frames processed", &m.FramesProcessed)
	m.counter("presence_motion_frames_total", "Frames classified as motion", &m.MotionFrames)
	m.counter("presence_first_frames_total", "Frames that started a session", &m.FirstFrames)
	m.counter("presence_stretch_suggestions_total", "Results that suggested a stretch", &m.StretchSuggestions)
	m.counter("presence_absence_transitions_total", "Present to absent transitions", &m.AbsenceTransitions)
	m.counter("presence_returns_total", "Absent to present transitions (pauses)", &m.Returns)
	m.counter("presence_resets_total", "Session resets", &m.Resets)
	m.counter("presence_decode_errors_total", "Frames that could not be decoded", &m.DecodeErrors)
	m.counter("presence_internal_errors_total", "Frames that failed during processing", &m.InternalErrors)
	m.counter("presence_alerts_recorded_total", "Alerts handed to the alert sink", &m.AlertsRecorded)
	m.counter("presence_alert_errors_total", "Alerts the sink failed to record", &m.AlertErrors)
	m.counter("presence_stream_dropped_total", "Stream events skipped for slow clients", &m.StreamDropped)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "presence_stream_clients",
			Help: "Connected result stream clients",
		},
		func() float64 { return float64(m.StreamClients.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "presence_active_sessions",
			Help: "Users with a live monitoring session",
		},
		func() float64 {
			if fn := m.activeSessions.Load(); fn != nil {
				return float64((*fn)())
			}
			return 0
		},
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "presence_process_latency_ms",
			Help: "Last frame processing latency in milliseconds",
		},
		func() float64 { return float64(m.ProcessLatencyMs.Load()) },
	))

	m.registry.MustRegister(m.processSeconds)
}

// SetSessionCounter installs the function that reports the active session count.
func (m *Metrics) SetSessionCounter(fn func() int) {
	m.activeSessions.Store(&fn)
}

// UpdateProcessLatency records the processing time of one frame
func (m *Metrics) UpdateProcessLatency(duration time.Duration) {
	m.ProcessLatencyMs.Store(uint64(duration.Milliseconds()))
	m.processSeconds.Observe(duration.Seconds())
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServer returns the metrics HTTP server
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
