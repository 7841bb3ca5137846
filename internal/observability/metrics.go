package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamring",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests to the admin surface.",
		},
		[]string{"relay", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamring",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"relay", "method", "path", "status"},
	)
	ingestBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamring",
			Subsystem: "relay",
			Name:      "ingest_bytes_total",
			Help:      "Bytes accepted into the ring buffer.",
		},
		[]string{"relay"},
	)
	droppedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamring",
			Subsystem: "relay",
			Name:      "dropped_bytes_total",
			Help:      "Bytes discarded to make room or rejected on a full buffer.",
		},
		[]string{"relay", "policy"},
	)
	records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamring",
			Subsystem: "relay",
			Name:      "records_total",
			Help:      "Complete separator-framed records extracted.",
		},
		[]string{"relay"},
	)
	recordBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamring",
			Subsystem: "relay",
			Name:      "record_payload_bytes",
			Help:      "Payload size of extracted records.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"relay"},
	)
	scanMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamring",
			Subsystem: "relay",
			Name:      "scan_misses_total",
			Help:      "Scans that found no complete record buffered.",
		},
		[]string{"relay"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			ingestBytes, droppedBytes, records, recordBytes, scanMisses,
		)
	})
}

func RecordHTTPRequest(relay, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(relay, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(relay, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordIngest(relay string, n int) {
	RegisterMetrics()
	ingestBytes.WithLabelValues(relay).Add(float64(n))
}

func RecordDrop(relay, policy string, n int) {
	RegisterMetrics()
	droppedBytes.WithLabelValues(relay, policy).Add(float64(n))
}

func RecordExtracted(relay string, payloadLen int) {
	RegisterMetrics()
	records.WithLabelValues(relay).Inc()
	recordBytes.WithLabelValues(relay).Observe(float64(payloadLen))
}

func RecordScanMiss(relay string) {
	RegisterMetrics()
	scanMisses.WithLabelValues(relay).Inc()
}
