package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docvault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docvault_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// Document lifecycle metrics
	DocumentsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docvault_documents_uploaded_total",
			Help: "Total number of documents uploaded",
		},
	)

	DocumentsTrashed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docvault_documents_trashed_total",
			Help: "Total number of documents moved to trash",
		},
	)

	DocumentsRestored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docvault_documents_restored_total",
			Help: "Total number of documents restored from trash",
		},
	)

	DocumentsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_documents_purged_total",
			Help: "Total number of documents permanently removed",
		},
		[]string{"trigger"}, // "user" or "sweep"
	)

	StorageUsageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docvault_storage_usage_bytes",
			Help: "Current storage usage in bytes per user",
		},
		[]string{"user_id"},
	)

	// Authentication metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_login_attempts_total",
			Help: "Total number of password login attempts",
		},
		[]string{"status"},
	)

	OTPRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docvault_otp_requests_total",
			Help: "Total number of OTP challenges issued",
		},
	)

	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_otp_verifications_total",
			Help: "Total number of OTP verification attempts",
		},
		[]string{"status"},
	)

	// Share link metrics
	ShareLinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docvault_share_links_created_total",
			Help: "Total number of share links issued",
		},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := httpStatusToString(status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

func httpStatusToString(code int) string {
	if code >= 200 && code < 300 {
		return "2xx"
	} else if code >= 300 && code < 400 {
		return "3xx"
	} else if code >= 400 && code < 500 {
		return "4xx"
	} else if code >= 500 {
		return "5xx"
	}
	return "unknown"
}

// RecordLogin increments the password login attempt counter
func RecordLogin(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	LoginAttempts.WithLabelValues(status).Inc()
}

// RecordOTPVerification increments the OTP verification counter
func RecordOTPVerification(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	OTPVerifications.WithLabelValues(status).Inc()
}
