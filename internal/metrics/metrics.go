package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireready_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hireready_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireready_auth_attempts_total",
			Help: "Registration, login and refresh attempts by outcome",
		},
		[]string{"operation", "outcome"},
	)

	TokenRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireready_token_redemptions_total",
			Help: "Verification and reset token redemptions by outcome",
		},
		[]string{"purpose", "outcome"},
	)

	QuotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireready_quota_decisions_total",
			Help: "Usage quota decisions by feature and outcome",
		},
		[]string{"feature", "outcome"},
	)

	PasswordHashDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hireready_password_hash_duration_seconds",
			Help:    "Time spent waiting for and computing bcrypt operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireready_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	CacheAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hireready_cache_access_total",
			Help: "Cache lookups by result",
		},
		[]string{"cache", "result"},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordAuthAttempt(operation string, err error) {
	AuthAttemptsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func RecordTokenRedemption(purpose string, err error) {
	TokenRedemptionsTotal.WithLabelValues(purpose, outcome(err)).Inc()
}

func RecordQuotaDecision(feature string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	QuotaDecisionsTotal.WithLabelValues(feature, result).Inc()
}

func RecordPasswordHash(operation string, duration time.Duration) {
	PasswordHashDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordRateLimited(route string) {
	RateLimitedTotal.WithLabelValues(route).Inc()
}

func RecordCacheAccess(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheAccessTotal.WithLabelValues(cache, result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
