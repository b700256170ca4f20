package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is any dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyCheck is one dependency probed by the readiness endpoint.
// A failing critical dependency makes the service not ready; any other
// failure only degrades it.
type DependencyCheck struct {
	Name     string
	Critical bool
	Pinger   Pinger
}

// HealthHandlers handles health check endpoints
type HealthHandlers struct {
	checks  []DependencyCheck
	version string
	started time.Time
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(version string, checks ...DependencyCheck) *HealthHandlers {
	return &HealthHandlers{checks: checks, version: version, started: time.Now()}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// Root greets callers of the bare service URL
func (h *HealthHandlers) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Welcome to the Organization Management Service API",
		"version": h.version,
	})
}

// LivenessCheck reports that the process is serving requests
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, &HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	})
}

// ReadinessCheck probes every dependency. 503 when a critical one fails.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	health := &HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string, len(h.checks)),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Version:   h.version,
	}

	statusCode := http.StatusOK
	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			health.Services[check.Name] = "unhealthy"
			if check.Critical {
				health.Status = "not_ready"
				statusCode = http.StatusServiceUnavailable
			} else if health.Status == "ready" {
				health.Status = "degraded"
			}
			continue
		}
		health.Services[check.Name] = "healthy"
	}

	return c.JSON(statusCode, health)
}
