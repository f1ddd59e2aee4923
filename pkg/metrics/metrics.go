package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of requests",
		},
		[]string{"service", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)

	// Upload metrics
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_uploads_total",
			Help: "Total number of video uploads",
		},
		[]string{"mode", "status"}, // mode: single|multipart
	)

	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "video_upload_bytes_total",
			Help: "Total bytes uploaded to object storage",
		},
	)

	// Pipeline metrics
	StepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_step_transitions_total",
			Help: "Total number of pipeline step status transitions",
		},
		[]string{"step", "status"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_sessions",
			Help: "Number of pipeline sessions currently running",
		},
	)

	PollRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoder_poll_requests_total",
			Help: "Total number of transcoder status poll requests",
		},
		[]string{"status"},
	)

	PipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		UploadsTotal,
		UploadBytesTotal,
		StepTransitionsTotal,
		ActiveSessions,
		PollRequestsTotal,
		PipelineDuration,
	)
}

// StartMetricsServer starts a standalone metrics HTTP server.
func StartMetricsServer(port string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":"+port, nil); err != nil {
			panic("failed to start metrics server: " + err.Error())
		}
	}()
}

// RecordRequest records one HTTP request observation.
func RecordRequest(service, method, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(service, method, status).Inc()
	RequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordStepTransition records one pipeline step status change.
func RecordStepTransition(step, status string) {
	StepTransitionsTotal.WithLabelValues(step, status).Inc()
}
