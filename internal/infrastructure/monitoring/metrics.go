package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aion_terminal"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsSpawned prometheus.Counter
	SessionExits    *prometheus.CounterVec
	BytesRelayed    prometheus.Counter
	PublishFailures *prometheus.CounterVec

	// Scraper metrics
	UsageRecords *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalErrors      int64   `json:"total_errors"`
	ActiveSessions   int64   `json:"active_sessions"`
	SpawnedSessions  int64   `json:"spawned_sessions"`
	UsageRecords     int64   `json:"usage_records"`
	WSConnections    int64   `json:"ws_connections"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	AvgLatencySecond float64 `json:"avg_latency_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector registered against reg. Passing a
// fresh prometheus.NewRegistry() keeps instances isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.RequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)
	m.ResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)

	m.SessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of live terminal sessions",
	})
	m.SessionsSpawned = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_spawned_total",
		Help:      "Total number of terminal sessions spawned",
	})
	m.SessionExits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_exits_total",
			Help:      "Total number of session terminations by reason",
		},
		[]string{"reason"},
	)
	m.BytesRelayed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bytes_relayed_total",
		Help:      "Total PTY output bytes relayed to subscribers",
	})
	m.PublishFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Events the sink failed to deliver",
		},
		[]string{"event"},
	)

	m.UsageRecords = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_records_total",
			Help:      "Usage summaries captured by outcome",
		},
		[]string{"status"},
	)

	m.WSConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Backend uptime in seconds",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	})

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SessionStarted records a successful spawn.
func (m *Metrics) SessionStarted() {
	m.SessionsSpawned.Inc()
	m.SessionsActive.Inc()

	m.mu.Lock()
	m.snapshot.SpawnedSessions++
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionEnded records a session leaving the registry. Reason is "exit" or
// "killed".
func (m *Metrics) SessionEnded(reason string) {
	m.SessionExits.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()

	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// RecordBytesRelayed records n bytes of terminal output.
func (m *Metrics) RecordBytesRelayed(n int) {
	m.BytesRelayed.Add(float64(n))
}

// PublishFailed records an event the sink could not deliver.
func (m *Metrics) PublishFailed(event string) {
	m.PublishFailures.WithLabelValues(event).Inc()
}

// UsageRecorded records a completed usage summary. Status is "stored" or
// "failed".
func (m *Metrics) UsageRecorded(status string) {
	m.UsageRecords.WithLabelValues(status).Inc()
	if status != "stored" {
		return
	}
	m.mu.Lock()
	m.snapshot.UsageRecords++
	m.mu.Unlock()
}

// WSConnected increments WebSocket connections
func (m *Metrics) WSConnected() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.WSConnections++
	m.mu.Unlock()
}

// WSDisconnected decrements WebSocket connections
func (m *Metrics) WSDisconnected() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.WSConnections--
	m.mu.Unlock()
}

// WSMessage records a WebSocket message
func (m *Metrics) WSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// GetSnapshot returns a copy of the current values.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	if snap.TotalRequests > 0 {
		snap.AvgLatencySecond = snap.totalDuration / float64(snap.TotalRequests)
	}
	return snap
}
