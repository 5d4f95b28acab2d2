package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the result of one component's check.
type HealthCheckResult struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// HealthChecker performs a health check for one component.
type HealthChecker func(ctx context.Context) HealthCheckResult

// HealthRegistry aggregates health checks for a service's components
// (store, broker, backplane) and serves them over HTTP.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds a health checker for a component.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// CheckAll runs all registered checks and returns their results.
func (r *HealthRegistry) CheckAll(ctx context.Context) map[string]HealthCheckResult {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	results := make(map[string]HealthCheckResult, len(checkers))
	for name, check := range checkers {
		results[name] = check(ctx)
	}
	return results
}

// Overall reduces component results to a single status. Any unhealthy
// component makes the service unhealthy; any degraded one makes it
// degraded.
func Overall(results map[string]HealthCheckResult) HealthStatus {
	status := HealthStatusHealthy
	for _, res := range results {
		switch res.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

// Handler serves the aggregated health report. Unhealthy services
// respond 503 so load balancers rotate them out; degraded ones stay
// in rotation.
func (r *HealthRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		results := r.CheckAll(ctx)
		overall := Overall(results)

		status := http.StatusOK
		if overall == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     overall,
			"components": results,
		})
	})
}

// Healthy is a shorthand for a passing result.
func Healthy(message string) HealthCheckResult {
	return HealthCheckResult{
		Status:    HealthStatusHealthy,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Degraded is a shorthand for a degraded result.
func Degraded(message string) HealthCheckResult {
	return HealthCheckResult{
		Status:    HealthStatusDegraded,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Unhealthy is a shorthand for a failing result.
func Unhealthy(err error) HealthCheckResult {
	return HealthCheckResult{
		Status:    HealthStatusUnhealthy,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}
