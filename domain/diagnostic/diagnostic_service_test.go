package diagnostic

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/scheduler"
)

type staticJobs []scheduler.JobInfo

func (j staticJobs) Jobs() []scheduler.JobInfo { return j }

func TestCollect(t *testing.T) {
	jobs := staticJobs{
		{Node: "controller", Metrics: scheduler.JobMetrics{ActivationCount: 10, ErrorCount: 1}},
		{Node: "idle"},
		{Node: "broken", Metrics: scheduler.JobMetrics{ActivationCount: 2, ErrorCount: 2}},
	}
	s := NewDiagnosticService(jobs, nil)

	m := s.Collect()
	assert.Equal(t, os.Getpid(), m.PID)
	assert.Greater(t, m.Goroutines, 0)
	require.Len(t, m.NodeStatus, 3)
	assert.Equal(t, "active", m.NodeStatus[0].Status)
	assert.Equal(t, "idle", m.NodeStatus[1].Status)
	assert.Equal(t, "error", m.NodeStatus[2].Status)
	assert.Equal(t, m.Timestamp, s.GetMetrics().Timestamp)
}

func TestGetMetricsHandler(t *testing.T) {
	s := NewDiagnosticService(nil, nil)
	app := fiber.New()
	app.Get("/api/diagnostics", s.GetMetricsHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/diagnostics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload struct {
		Status  string        `json:"status"`
		Metrics SystemMetrics `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "success", payload.Status)
	assert.Equal(t, os.Getpid(), payload.Metrics.PID)
}
