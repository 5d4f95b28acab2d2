package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONIncludesService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:   "info",
		Format:  LogFormatJSON,
		Output:  &buf,
		Service: "team-service",
	})

	logger.Info("team created", "team_id", "t1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "team-service", entry["service"])
	assert.Equal(t, "team created", entry["msg"])
	assert.Equal(t, "t1", entry["team_id"])
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: LogFormatText, Output: &buf})

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewServiceLoggerFormatByEnv(t *testing.T) {
	assert.NotNil(t, NewServiceLogger("user-service", "debug", "development"))
	assert.NotNil(t, NewServiceLogger("user-service", "info", "production"))
}

func TestHealthRegistryAggregates(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("store", func(context.Context) HealthCheckResult {
		return Healthy("connected")
	})
	reg.Register("broker", func(context.Context) HealthCheckResult {
		return Degraded("publishing disabled")
	})

	results := reg.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, HealthStatusDegraded, Overall(results))
}

func TestHealthHandlerReports503WhenUnhealthy(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("store", func(context.Context) HealthCheckResult {
		return Unhealthy(errors.New("connection refused"))
	})

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, 503, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(HealthStatusUnhealthy), body["status"])
}

func TestHealthHandlerReports200WhenHealthy(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("store", func(context.Context) HealthCheckResult {
		return Healthy("ok")
	})

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, 200, rec.Code)
}
