package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ignite/campaign-targeting/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status    string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version   string                    `json:"version"`
	Timestamp time.Time                 `json:"timestamp"`
	Uptime    string                    `json:"uptime"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Pinger is any dependency that can prove it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type dependency struct {
	name     string
	pinger   Pinger
	critical bool
	timeout  time.Duration
	slow     time.Duration
}

// HealthChecker reports on the warehouse, document store, lock backend and
// report archive.
type HealthChecker struct {
	version   string
	deps      []dependency
	startTime time.Time
	now       func() time.Time
}

// NewHealthChecker creates a checker with no dependencies registered.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version, startTime: time.Now(), now: time.Now}
}

// Register adds a dependency. A nil pinger is reported as not configured.
// When a critical dependency is down the service is unhealthy; any other
// failure only degrades it.
func (hc *HealthChecker) Register(name string, p Pinger, critical bool) *HealthChecker {
	hc.deps = append(hc.deps, dependency{
		name:     name,
		pinger:   p,
		critical: critical,
		timeout:  3 * time.Second,
		slow:     time.Second,
	})
	return hc
}

// HandleHealth returns the status of every component. It always answers
// 200; use /health/ready for probes that need a 503.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:    hc.overallStatus(checks),
		Version:   hc.version,
		Timestamp: hc.now().UTC(),
		Uptime:    formatUptime(time.Since(hc.startTime)),
		Checks:    checks,
	})
}

// HandleLiveness answers 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status":    "alive",
		"version":   hc.version,
		"timestamp": hc.now().UTC(),
		"uptime":    formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness answers 200 only when no critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := hc.overallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]any{
		"ready":     ready,
		"status":    overall,
		"timestamp": hc.now().UTC(),
		"checks":    checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	checks := make(map[string]ComponentCheck, len(hc.deps))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, d := range hc.deps {
		wg.Add(1)
		go func(d dependency) {
			defer wg.Done()
			c := hc.check(ctx, d)
			mu.Lock()
			checks[d.name] = c
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return checks
}

func (hc *HealthChecker) check(ctx context.Context, d dependency) ComponentCheck {
	if d.pinger == nil {
		return ComponentCheck{Status: "not_configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.pinger.Ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > d.slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// overallStatus is "unhealthy" if a critical dependency is down, "degraded"
// if anything else is down or slow, and "healthy" otherwise.
func (hc *HealthChecker) overallStatus(checks map[string]ComponentCheck) string {
	status := "healthy"
	for _, d := range hc.deps {
		c, ok := checks[d.name]
		if !ok {
			continue
		}
		switch c.Status {
		case "down":
			if d.critical {
				return "unhealthy"
			}
			status = "degraded"
		case "degraded":
			status = "degraded"
		}
	}
	return status
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
