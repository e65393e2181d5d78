// Package metrics provides the Prometheus metrics of the defect register.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels shared by the counters below.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// InspectionMetrics contains the metrics of intake, confirmation and
// deletion. A nil *InspectionMetrics is valid and records nothing.
type InspectionMetrics struct {
	IntakeTotal        *prometheus.CounterVec
	OracleDuration     prometheus.Histogram
	OraclePlaceholders prometheus.Counter
	BlobBytes          prometheus.Counter
	ConfirmTotal       *prometheus.CounterVec
	DeleteTotal        *prometheus.CounterVec
	BlobDeleteErrors   prometheus.Counter
	SweepRemoved       prometheus.Counter
	registry           *prometheus.Registry
}

// NewInspectionMetrics creates the metrics and registers them on registry.
func NewInspectionMetrics(registry *prometheus.Registry) (*InspectionMetrics, error) {
	m := &InspectionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register inspection metrics: %w", err)
	}
	return m, nil
}

// NewRegistry returns a private registry with the Go runtime and process
// collectors already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func (m *InspectionMetrics) initMetrics() {
	m.IntakeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspection_intake_total",
		Help: "Total number of intake attempts by image source and result.",
	}, []string{"source", "result"})

	m.OracleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inspection_oracle_duration_seconds",
		Help:    "Duration of classification oracle calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.OraclePlaceholders = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspection_oracle_placeholder_total",
		Help: "Total number of intakes that fell back to the placeholder outcome.",
	})

	m.BlobBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspection_blob_bytes_total",
		Help: "Total number of image bytes written to the blob store.",
	})

	m.ConfirmTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspection_confirm_total",
		Help: "Total number of confirm attempts by result.",
	}, []string{"result"})

	m.DeleteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspection_delete_total",
		Help: "Total number of delete attempts by result.",
	}, []string{"result"})

	m.BlobDeleteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspection_blob_delete_errors_total",
		Help: "Total number of blobs that could not be removed after their record was deleted.",
	})

	m.SweepRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspection_sweep_removed_total",
		Help: "Total number of orphan blobs removed by the sweep.",
	})
}

// RecordIntake counts one intake attempt.
func (m *InspectionMetrics) RecordIntake(source, result string) {
	if m == nil {
		return
	}
	m.IntakeTotal.WithLabelValues(source, result).Inc()
}

// ObserveOracle records the duration of one oracle call and whether the
// placeholder had to be used.
func (m *InspectionMetrics) ObserveOracle(seconds float64, placeholder bool) {
	if m == nil {
		return
	}
	m.OracleDuration.Observe(seconds)
	if placeholder {
		m.OraclePlaceholders.Inc()
	}
}

func (m *InspectionMetrics) AddBlobBytes(n int) {
	if m == nil {
		return
	}
	m.BlobBytes.Add(float64(n))
}

func (m *InspectionMetrics) RecordConfirm(result string) {
	if m == nil {
		return
	}
	m.ConfirmTotal.WithLabelValues(result).Inc()
}

func (m *InspectionMetrics) RecordDelete(result string) {
	if m == nil {
		return
	}
	m.DeleteTotal.WithLabelValues(result).Inc()
}

func (m *InspectionMetrics) IncrementBlobDeleteErrors() {
	if m == nil {
		return
	}
	m.BlobDeleteErrors.Inc()
}

func (m *InspectionMetrics) AddSweepRemoved(n int) {
	if m == nil {
		return
	}
	m.SweepRemoved.Add(float64(n))
}

// Collect implements the prometheus.Collector interface.
func (m *InspectionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.IntakeTotal.Collect(ch)
	ch <- m.OracleDuration
	ch <- m.OraclePlaceholders
	ch <- m.BlobBytes
	m.ConfirmTotal.Collect(ch)
	m.DeleteTotal.Collect(ch)
	ch <- m.BlobDeleteErrors
	ch <- m.SweepRemoved
}

// Describe implements the prometheus.Collector interface.
func (m *InspectionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.IntakeTotal.Describe(ch)
	ch <- m.OracleDuration.Desc()
	ch <- m.OraclePlaceholders.Desc()
	ch <- m.BlobBytes.Desc()
	m.ConfirmTotal.Describe(ch)
	m.DeleteTotal.Describe(ch)
	ch <- m.BlobDeleteErrors.Desc()
	ch <- m.SweepRemoved.Desc()
}
