// Package metrics exposes Prometheus instrumentation for collector runs and
// the read API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/ohss-collector/internal/model"
)

const namespace = "ohss_collector"

// Metrics holds the collectors registered on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastSuccess     prometheus.Gauge
	FilesTotal      *prometheus.CounterVec
	RowsTotal       *prometheus.CounterVec
	RecordsInserted *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New creates Metrics on a fresh registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Collector runs by outcome.",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a collector run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		FilesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Discovered data files by kind and outcome.",
		}, []string{"kind", "status"}),
		RowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Data rows read by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RecordsInserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_inserted_total",
			Help:      "Records newly written to the store.",
		}, []string{"kind"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Read API requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Read API latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun records a finished run and each of its files.
func (m *Metrics) ObserveRun(res model.RunResult, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	status := string(model.HealthFailed)
	if res.Success {
		status = string(model.HealthSuccess)
		m.LastSuccess.Set(float64(finished.Unix()))
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())

	for _, f := range res.Files {
		kind := string(f.Kind)
		m.FilesTotal.WithLabelValues(kind, string(f.Status)).Inc()
		if f.RowsRead > 0 {
			m.RowsTotal.WithLabelValues(kind, "built").Add(float64(f.RowsRead - f.RowsSkipped))
		}
		if f.RowsSkipped > 0 {
			m.RowsTotal.WithLabelValues(kind, "skipped").Add(float64(f.RowsSkipped))
		}
		if f.Inserted > 0 {
			m.RecordsInserted.WithLabelValues(kind).Add(float64(f.Inserted))
		}
	}
}

// ObserveRequest records one read API request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
