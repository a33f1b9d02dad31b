package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthHandlerHealthy tests the aggregate healthy response
func TestHealthHandlerHealthy(t *testing.T) {
	SetVersion("test")
	SetComponentHealth("coordinator", true, "")

	rec := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, "healthy", status.Components["coordinator"])
}

// TestHealthHandlerUnhealthy tests that one failing component degrades the aggregate
func TestHealthHandlerUnhealthy(t *testing.T) {
	SetComponentHealth("coordinator", true, "")
	SetComponentHealth("run", false, "aborted: math domain error")
	defer SetComponentHealth("run", true, "")

	rec := httptest.NewRecorder()
	HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "aborted: math domain error", status.Components["run"])
}
