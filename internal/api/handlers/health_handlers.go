package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthStatus is the overall or per-dependency state
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// CheckFunc checks one dependency
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one dependency check
type CheckResult struct {
	Status HealthStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checks    map[string]CheckFunc
	timeout   time.Duration
	logger    *zap.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a health handler; checks are the readiness checks
func NewHealthHandler(checks map[string]CheckFunc, logger *zap.Logger, version string) *HealthHandler {
	if checks == nil {
		checks = map[string]CheckFunc{}
	}
	return &HealthHandler{
		checks:    checks,
		timeout:   5 * time.Second,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health/live
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, h.response(StatusHealthy, nil))
}

// Readiness handles GET /health and GET /health/ready
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := StatusHealthy
	results := make(map[string]CheckResult, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = StatusUnhealthy
			results[name] = CheckResult{Status: StatusUnhealthy, Error: err.Error()}
			h.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = CheckResult{Status: StatusHealthy}
	}

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, h.response(status, results))
}

func (h *HealthHandler) response(status HealthStatus, checks map[string]CheckResult) HealthResponse {
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}
}
