package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func healthRouter(hc *HealthChecker) http.Handler {
	return SetupRoutes(RouteConfig{Health: hc})
}

func TestHealthAllUp(t *testing.T) {
	hc := NewHealthChecker("1.2.3").
		Register("warehouse", PingFunc(func(context.Context) error { return nil }), true).
		Register("redis", nil, false)

	rec, body := do(t, healthRouter(hc), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.NotEmpty(t, body["timestamp"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "up", checks["warehouse"].(map[string]any)["status"])
	assert.Equal(t, "not_configured", checks["redis"].(map[string]any)["status"])
}

func TestHealthNonCriticalDownDegrades(t *testing.T) {
	hc := NewHealthChecker("dev").
		Register("warehouse", PingFunc(func(context.Context) error { return nil }), true).
		Register("reports", PingFunc(func(context.Context) error { return errors.New("403") }), false)

	_, body := do(t, healthRouter(hc), http.MethodGet, "/health", "")
	assert.Equal(t, "degraded", body["status"])

	rec, ready := do(t, healthRouter(hc), http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, ready["ready"])
}

func TestHealthCriticalDownIsUnready(t *testing.T) {
	hc := NewHealthChecker("dev").
		Register("documentStore", PingFunc(func(context.Context) error { return errors.New("no route") }), true)

	rec, body := do(t, healthRouter(hc), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])

	rec, body = do(t, healthRouter(hc), http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ready"])
}

func TestHealthLiveness(t *testing.T) {
	hc := NewHealthChecker("dev").
		Register("documentStore", PingFunc(func(context.Context) error { return errors.New("down") }), true)

	rec, body := do(t, healthRouter(hc), http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5s", formatUptime(5e9))
	assert.Equal(t, "2m 5s", formatUptime(125e9))
	assert.Equal(t, "1d 0h 0m 0s", formatUptime(24*3600e9))
}

func TestHooksMounted(t *testing.T) {
	hooks := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"success":true,"path":"` + r.URL.Path + `"}`))
	})
	h := SetupRoutes(RouteConfig{Hooks: hooks})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/message-events", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
