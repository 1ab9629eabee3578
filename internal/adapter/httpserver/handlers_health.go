package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gilrm92/trading-spot/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe run by the startup and readiness endpoints.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// probeResponse lists every check. failed_check and error repeat the first
// failure in registration order.
type probeResponse struct {
	Status      string                 `json:"status"`
	FailedCheck string                 `json:"failed_check,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Checks      map[string]checkResult `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	return s.probe(c, startupProbeTimeout)
}

func (s *Server) handleReadiness(c echo.Context) error {
	return s.probe(c, readinessProbeTimeout)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) probe(c echo.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	response := s.runHealthChecks(ctx)
	status := http.StatusOK
	if response.FailedCheck != "" {
		status = http.StatusServiceUnavailable
	}
	if err := c.JSON(status, response); err != nil {
		return fmt.Errorf("failed to write probe response: %w", err)
	}
	return nil
}

// runHealthChecks runs every check in registration order and reports each one.
func (s *Server) runHealthChecks(ctx context.Context) probeResponse {
	response := probeResponse{Status: "ready"}
	if len(s.healthChecks) == 0 {
		return response
	}

	response.Checks = make(map[string]checkResult, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		start := s.clock.Now()
		err := hc.Check(ctx)
		result := checkResult{Status: "ok", LatencyMS: s.clock.Since(start).Milliseconds()}

		if err != nil {
			slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
			result.Status = "failed"
			result.Error = err.Error()
			if response.FailedCheck == "" {
				response.Status = "unhealthy"
				response.FailedCheck = hc.Name
				response.Error = err.Error()
			}
		}
		response.Checks[hc.Name] = result
	}
	return response
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
