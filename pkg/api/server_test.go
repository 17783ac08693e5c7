package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/codelet"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
	"github.com/open-teleop/codelets/pkg/scheduler"
	"github.com/open-teleop/codelets/pkg/sight"
	"github.com/open-teleop/codelets/services"
)

type gainParams struct {
	Gain float64 `yaml:"gain" json:"gain"`
}

type fakeNodes struct{}

func (fakeNodes) NodeInfos() []NodeInfo {
	return []NodeInfo{{
		Name:      "controller",
		Component: "control.ProportionalController",
		Schedule:  "periodic 10ms",
		HasParams: true,
		Metrics:   scheduler.JobMetrics{ActivationCount: 42},
	}}
}

func newTestServer(t *testing.T) (*fiber.App, *channel.Hub, *sight.Store) {
	t.Helper()
	logger := customlog.Discard()

	params := services.NewParamService("", nil, logger)
	params.Register("controller", codelet.NewParams(gainParams{Gain: 1}))
	params.Register("ping", nil)

	hub := channel.NewHub(logger)
	store := sight.NewStore()

	app := NewServer(Deps{
		AppName: "test",
		Nodes:   fakeNodes{},
		Params:  params,
		Sight:   store,
		Hub:     hub,
		Diagnostics: func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "success"})
		},
		Logger: logger,
	})
	return app, hub, store
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHealthAndRoot(t *testing.T) {
	app, _, _ := newTestServer(t)

	code, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"healthy"}`, body)

	code, body = do(t, app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"online"`)

	code, _ = do(t, app, http.MethodGet, "/api/diagnostics", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestNodes(t *testing.T) {
	app, _, _ := newTestServer(t)

	code, body := do(t, app, http.MethodGet, "/api/v1/nodes", "")
	require.Equal(t, http.StatusOK, code)

	var nodes []NodeInfo
	require.NoError(t, json.Unmarshal([]byte(body), &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, "controller", nodes[0].Name)
	assert.Equal(t, int64(42), nodes[0].Metrics.ActivationCount)
	assert.Contains(t, body, `"activation_count":42`)
}

func TestParamsRoutes(t *testing.T) {
	app, _, _ := newTestServer(t)

	code, body := do(t, app, http.MethodGet, "/api/v1/nodes/controller/params", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"gain":1}`, body)

	code, body = do(t, app, http.MethodPut, "/api/v1/nodes/controller/params", `{"gain": 2.5}`)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"gain":2.5}`, body)

	code, _ = do(t, app, http.MethodPut, "/api/v1/nodes/controller/params", `{"gian": 2.5}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodPut, "/api/v1/nodes/controller/params", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/nodes/nobody/params", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, app, http.MethodPut, "/api/v1/nodes/ping/params", `{"message": "hi"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, body = do(t, app, http.MethodGet, "/api/v1/config/app", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "gain: 2.5")
}

func TestSightRoutes(t *testing.T) {
	app, _, store := newTestServer(t)
	store.Show("controller", "control", 0.5)

	code, body := do(t, app, http.MethodGet, "/api/v1/sight", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"control"`)

	code, body = do(t, app, http.MethodGet, "/api/v1/sight/controller", "")
	assert.Equal(t, http.StatusOK, code)

	var values map[string]sight.Value
	require.NoError(t, json.Unmarshal([]byte(body), &values))
	assert.Equal(t, 0.5, values["control"].Value)

	code, body = do(t, app, http.MethodGet, "/api/v1/sight/nobody", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, `"error"`)

	code, _ = do(t, app, http.MethodGet, "/api/v1/sight/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestChannelRoutes(t *testing.T) {
	app, hub, _ := newTestServer(t)
	_, err := channel.NewRx[message.Odometry2](hub, "controller", "odometry")
	require.NoError(t, err)
	_, err = channel.NewTx[message.DifferentialBaseControl](hub, "controller", "cmd")
	require.NoError(t, err)

	code, body := do(t, app, http.MethodGet, "/api/v1/channels", "")
	require.Equal(t, http.StatusOK, code)

	var statuses []ChannelStatus
	require.NoError(t, json.Unmarshal([]byte(body), &statuses))
	require.Len(t, statuses, 2)
	assert.Equal(t, "controller/cmd", statuses[0].Name)
	assert.Equal(t, "tx", statuses[0].Direction)
	assert.Equal(t, "Odometry2", statuses[1].MessageType)

	code, _ = do(t, app, http.MethodGet, "/api/v1/channels/controller/missing/ws", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/channels/controller/cmd/ws", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/v1/channels/controller/odometry/ws", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestInjectTwist(t *testing.T) {
	hub := channel.NewHub(customlog.Discard())
	rx, err := channel.NewRx[message.DifferentialBaseControl](hub, "base", "cmd")
	require.NoError(t, err)
	e, ok := hub.Endpoint("base/cmd")
	require.True(t, ok)

	require.NoError(t, inject(hub, e, []byte(`{"linear": {"x": 0.4}, "angular": {"z": -0.1}}`)))
	cmd, _ := rx.Read()
	assert.Equal(t, []float64{0.4, -0.1}, cmd.Data)

	require.NoError(t, inject(hub, e, []byte(`{"data": [0.2, 0.3]}`)))
	cmd, _ = rx.Read()
	assert.Equal(t, []float64{0.2, 0.3}, cmd.Data)
}

func TestInjectOdometryJSON(t *testing.T) {
	hub := channel.NewHub(customlog.Discard())
	rx, err := channel.NewRx[message.Odometry2](hub, "controller", "odometry")
	require.NoError(t, err)
	e, _ := hub.Endpoint("controller/odometry")

	require.NoError(t, inject(hub, e, []byte(fmt.Sprintf(`{"translation": {"X": %g}}`, 0.75))))
	odom, _ := rx.Read()
	assert.Equal(t, 0.75, odom.Translation.X)

	assert.Error(t, inject(hub, e, []byte(`not json`)))
}
