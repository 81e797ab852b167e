package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/recommend", nil)
	req.RemoteAddr = ip + ":40000"
	return req
}

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	h := RateLimit("ratelimit-burst", RateLimitConfig{RPS: 0.001, Burst: 2}, discardLogger())(okHandler())
	before := counterValue(t, rateLimitedTotal.WithLabelValues("ratelimit-burst"))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("203.0.113.7"))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, before+1, counterValue(t, rateLimitedTotal.WithLabelValues("ratelimit-burst")))
}

func TestRateLimit_ClientsHaveSeparateBuckets(t *testing.T) {
	h := RateLimit("ratelimit-clients", RateLimitConfig{RPS: 0.001, Burst: 1}, discardLogger())(okHandler())

	for _, ip := range []string{"198.51.100.1", "198.51.100.2"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom(ip))
		assert.Equal(t, http.StatusOK, rec.Code, ip)
	}
}

func TestRateLimit_ZeroRPSDisables(t *testing.T) {
	h := RateLimit("ratelimit-off", RateLimitConfig{}, discardLogger())(okHandler())

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.0.2.9"))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestVisitorStore_SweepsIdleClients(t *testing.T) {
	s := newVisitorStore(RateLimitConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.lastSweep = now

	s.allow("10.0.0.1")
	s.allow("10.0.0.2")
	require.Equal(t, 2, s.size())

	now = now.Add(2 * time.Minute)
	s.allow("10.0.0.3")

	assert.Equal(t, 1, s.size())
}

func TestRateLimit_IgnoresForwardedHeadersByDefault(t *testing.T) {
	h := RateLimit("ratelimit-spoof", RateLimitConfig{RPS: 0.001, Burst: 1}, discardLogger())(okHandler())

	codes := make([]int, 0, 2)
	for _, xff := range []string{"198.51.100.10", "198.51.100.11"} {
		req := requestFrom("203.0.113.50")
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_TrustedProxyHeadersSplitClients(t *testing.T) {
	cfg := RateLimitConfig{RPS: 0.001, Burst: 1, TrustProxyHeaders: true}
	h := RateLimit("ratelimit-proxy", cfg, discardLogger())(okHandler())

	for _, xff := range []string{"198.51.100.20", "198.51.100.21"} {
		req := requestFrom("10.0.0.2")
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, xff)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req, true))

	req.Header.Set("X-Real-IP", "192.0.2.2")
	assert.Equal(t, "192.0.2.2", ClientIP(req, true))

	req.Header.Set("X-Forwarded-For", " 192.0.2.3 , 10.0.0.1")
	assert.Equal(t, "192.0.2.3", ClientIP(req, true))
	assert.Equal(t, "192.0.2.1", ClientIP(req, false))

	req.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "192.0.2.2", ClientIP(req, true))
}
