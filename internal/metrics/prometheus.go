package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame types used as label values
const (
	FrameBinary = "binary"
	FrameText   = "text"
)

// Flush results used as label values
const (
	FlushWritten = "written"
	FlushEmpty   = "empty"
	FlushFailed  = "failed"
)

// Metrics contains all Prometheus metrics for the capture service
type Metrics struct {
	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsOpened   prometheus.Counter
	SessionsClosed   prometheus.Counter
	SessionsRejected prometheus.Counter
	SessionDuration  prometheus.Histogram
	SessionErrors    prometheus.Counter

	// Inbound frame metrics
	FramesReceived *prometheus.CounterVec
	BytesReceived  prometheus.Counter
	FramesDropped  prometheus.Counter

	// Flush metrics
	Flushes         *prometheus.CounterVec
	FlushSize       prometheus.Histogram
	FlushDuration   prometheus.Histogram
	RecordedSeconds prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capture_active_sessions",
			Help: "Current number of open capture sessions",
		}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_opened_total",
			Help: "Total number of capture sessions opened",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_closed_total",
			Help: "Total number of capture sessions closed",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_rejected_total",
			Help: "Total number of connections rejected because the session limit was reached",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_session_duration_seconds",
			Help:    "Duration of capture sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		SessionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_session_errors_total",
			Help: "Total number of transport errors reported by sessions",
		}),

		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_frames_received_total",
			Help: "Total number of WebSocket frames received",
		}, []string{"type"}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_audio_bytes_received_total",
			Help: "Total number of PCM bytes buffered",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_frames_dropped_total",
			Help: "Total number of binary frames dropped because their session was closing",
		}),

		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_flushes_total",
			Help: "Total number of buffer flushes by result",
		}, []string{"result"}),
		FlushSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_flush_size_bytes",
			Help:    "PCM payload size of non-empty flushes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 14), // 1KB to ~8MB
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_flush_write_duration_seconds",
			Help:    "Time spent writing a recording to storage",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
		RecordedSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_recorded_audio_seconds_total",
			Help: "Total playback length of audio written to recordings",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "capture_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionOpened increments the opened counter and the active gauge
func (m *Metrics) RecordSessionOpened() {
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionClosed records a closed session and its duration
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.SessionsClosed.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionRejected increments the rejected sessions counter
func (m *Metrics) RecordSessionRejected() {
	m.SessionsRejected.Inc()
}

// RecordSessionError increments the session errors counter
func (m *Metrics) RecordSessionError() {
	m.SessionErrors.Inc()
}

// RecordBinaryFrame records one buffered binary frame
func (m *Metrics) RecordBinaryFrame(sizeBytes int) {
	m.FramesReceived.WithLabelValues(FrameBinary).Inc()
	m.BytesReceived.Add(float64(sizeBytes))
}

// RecordTextFrame records one ignored text frame
func (m *Metrics) RecordTextFrame() {
	m.FramesReceived.WithLabelValues(FrameText).Inc()
}

// RecordFrameDropped increments the dropped frames counter
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordFlushEmpty records a flush that found nothing to write
func (m *Metrics) RecordFlushEmpty() {
	m.Flushes.WithLabelValues(FlushEmpty).Inc()
}

// RecordFlushWritten records a successfully written recording
func (m *Metrics) RecordFlushWritten(sizeBytes int, audioSeconds, writeSeconds float64) {
	m.Flushes.WithLabelValues(FlushWritten).Inc()
	m.FlushSize.Observe(float64(sizeBytes))
	m.FlushDuration.Observe(writeSeconds)
	m.RecordedSeconds.Add(audioSeconds)
}

// RecordFlushFailed records a flush whose recording could not be written
func (m *Metrics) RecordFlushFailed(sizeBytes int, writeSeconds float64) {
	m.Flushes.WithLabelValues(FlushFailed).Inc()
	m.FlushSize.Observe(float64(sizeBytes))
	m.FlushDuration.Observe(writeSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
