package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	exportDuration  *prometheus.HistogramVec
	exportTotal     *prometheus.CounterVec
	canvasSessions  prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	exportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "export_job_duration_seconds",
		Help:    "Duration of export composer runs",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"kind"})

	exportTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_total",
		Help: "Export jobs by kind and terminal status",
	}, []string{"kind", "status"})

	canvasSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "canvas_sessions_open",
		Help: "Currently open annotation sessions",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, exportDuration, exportTotal, canvasSessions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		exportDuration:  exportDuration,
		exportTotal:     exportTotal,
		canvasSessions:  canvasSessions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveExportJob records one finished composer run.
func (m *MetricsService) ObserveExportJob(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.exportDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.exportTotal.WithLabelValues(kind, status).Inc()
}

// SetOpenCanvasSessions tracks the annotation session gauge.
func (m *MetricsService) SetOpenCanvasSessions(n int) {
	if m == nil {
		return
	}
	m.canvasSessions.Set(float64(n))
}
