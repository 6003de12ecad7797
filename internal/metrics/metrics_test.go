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
	"github.com/stretchr/testify/require"
)

func TestAuthOperation_Counts(t *testing.T) {
	m := New()

	m.AuthOperation("login", "success")
	m.AuthOperation("login", "success")
	m.AuthOperation("login", "denied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authOps.WithLabelValues("login", "denied")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.AuthOperation("login", "success")
		m.ObserveHTTP("/auth/login", http.MethodPost, 200, time.Millisecond)
		m.RateLimited("auth")
		m.AuditPublishFailed()
		m.AuditConsumed("written", 3)
		m.TrackAuditPending(func() (int64, error) { return 0, nil })
	})
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.ObserveHTTP("/auth/me", http.MethodGet, 200, 5*time.Millisecond)
	m.RateLimited("global")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `talentlens_http_requests_total{method="GET",route="/auth/me",status="200"} 1`))
	assert.True(t, strings.Contains(body, `talentlens_rate_limited_total{scope="global"} 1`))
}

func TestAuditWorkerMetrics(t *testing.T) {
	m := New()
	m.AuditConsumed("written", 3)
	m.AuditConsumed("retried", 2)
	m.AuditConsumed("dropped", 0)

	pending, pendingErr := int64(7), error(nil)
	m.TrackAuditPending(func() (int64, error) { return pending, pendingErr })

	scrape := func() string {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return rec.Body.String()
	}

	body := scrape()
	assert.Contains(t, body, `talentlens_audit_events_consumed_total{outcome="written"} 3`)
	assert.Contains(t, body, `talentlens_audit_events_consumed_total{outcome="retried"} 2`)
	assert.NotContains(t, body, `outcome="dropped"`)
	assert.Contains(t, body, "talentlens_audit_pending_events 7")

	pendingErr = errors.New("redis down")
	assert.Contains(t, scrape(), "talentlens_audit_pending_events -1")
}
