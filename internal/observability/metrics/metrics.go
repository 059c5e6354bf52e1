package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policydesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policydesk_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policydesk_logins_total",
		Help: "Count of login attempts by result",
	}, []string{"result"})

	accountsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policydesk_accounts_created_total",
		Help: "Count of provisioned accounts by role",
	}, []string{"role"})

	vpConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policydesk_vp_conflicts_total",
		Help: "Count of rejected second-VP creation attempts",
	})

	documentUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policydesk_document_uploads_total",
		Help: "Count of uploaded documents",
	})

	extractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policydesk_extraction_duration_seconds",
		Help:    "Duration of document extraction attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	extractionJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policydesk_extraction_jobs_total",
		Help: "Count of extraction jobs by outcome",
	}, []string{"outcome"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt with a result label.
func ObserveLogin(result string) {
	logins.WithLabelValues(result).Inc()
}

// ObserveAccountCreated records a provisioned account.
func ObserveAccountCreated(role string) {
	accountsCreated.WithLabelValues(role).Inc()
}

// ObserveVPConflict records a rejected second-VP insert.
func ObserveVPConflict() {
	vpConflicts.Inc()
}

// ObserveDocumentUpload records an accepted upload.
func ObserveDocumentUpload() {
	documentUploads.Inc()
}

// ObserveExtraction records the duration of an extraction attempt with a
// result label.
func ObserveExtraction(result string, duration time.Duration) {
	extractionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveExtractionJob increments the job counter for the given outcome.
func ObserveExtractionJob(outcome string) {
	extractionJobs.WithLabelValues(outcome).Inc()
}
