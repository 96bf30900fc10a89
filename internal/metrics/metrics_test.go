package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "GET /auth/me", 200, 120*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "GET /auth/me", "200")))
}

func TestRecordAuthAttempt(t *testing.T) {
	AuthAttemptsTotal.Reset()

	RecordAuthAttempt("login", nil)
	RecordAuthAttempt("login", errors.New("bad password"))
	RecordAuthAttempt("login", errors.New("bad password"))

	assert.Equal(t, 1.0, testutil.ToFloat64(AuthAttemptsTotal.WithLabelValues("login", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(AuthAttemptsTotal.WithLabelValues("login", "failure")))
}

func TestRecordQuotaDecision(t *testing.T) {
	QuotaDecisionsTotal.Reset()

	RecordQuotaDecision("pdf_download", true)
	RecordQuotaDecision("pdf_download", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(QuotaDecisionsTotal.WithLabelValues("pdf_download", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(QuotaDecisionsTotal.WithLabelValues("pdf_download", "denied")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordCacheAccess("admin_stats", true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "hireready_cache_access_total"))
}
