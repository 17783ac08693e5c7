package control

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/codelet"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
	"github.com/open-teleop/codelets/pkg/sight"
)

type harness struct {
	controller *ProportionalController
	ctx        *codelet.Context
	hub        *channel.Hub
	store      *sight.Store
	cmd        *channel.Rx[message.DifferentialBaseControl]
}

func newHarness(t *testing.T, params Params) *harness {
	t.Helper()

	logger := customlog.Discard()
	hub := channel.NewHub(logger)
	store := sight.NewStore()
	ctx := codelet.NewContext("py_controller", logger, hub, store)

	c := NewProportionalController(params)
	require.NoError(t, c.Initialize(ctx))

	cmd, err := channel.NewRx[message.DifferentialBaseControl](hub, "base", "cmd")
	require.NoError(t, err)
	require.NoError(t, hub.Connect("py_controller/cmd", "base/cmd"))

	return &harness{controller: c, ctx: ctx, hub: hub, store: store, cmd: cmd}
}

func (h *harness) odometry(t *testing.T, x float64) {
	t.Helper()
	require.NoError(t, h.hub.Deliver("py_controller/odometry", message.Odometry2{Translation: r3.Vector{X: x}}))
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, h.controller.OnActivation(h.ctx))
}

func TestControlLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		gain := rng.NormFloat64() * 10
		reference := rng.NormFloat64() * 100
		position := rng.NormFloat64() * 100
		assert.Equal(t, gain*(reference-position), Control(gain, reference, position))
	}

	assert.True(t, math.IsNaN(Control(math.NaN(), 1, 0)))
	assert.True(t, math.IsInf(Control(math.Inf(1), 1, 0), 1))
}

func TestInitialize(t *testing.T) {
	h := newHarness(t, DefaultParams())

	s, err := h.ctx.Schedule()
	require.NoError(t, err)
	assert.Equal(t, codelet.TickPeriodic, s.Mode)
	assert.Equal(t, 10*time.Millisecond, s.Period)

	_, ok := h.hub.Endpoint("py_controller/odometry")
	assert.True(t, ok)
	assert.Equal(t, Params{DesiredPositionMeters: 1.0, Gain: 1.0}, h.controller.Settings().Get())
}

func TestNoInputNoOutput(t *testing.T) {
	h := newHarness(t, DefaultParams())

	for i := 0; i < 5; i++ {
		h.tick(t)
	}
	assert.False(t, h.cmd.Available())
	_, ok := h.store.Node("py_controller")
	assert.False(t, ok)

	h.odometry(t, 0.25)
	h.tick(t)
	require.True(t, h.cmd.Available())
	h.cmd.Read()

	h.tick(t)
	assert.False(t, h.cmd.Available())
}

func TestScenarioQuarterMeter(t *testing.T) {
	h := newHarness(t, DefaultParams())

	h.odometry(t, 0.25)
	h.tick(t)

	cmd, _ := h.cmd.Read()
	assert.Equal(t, []float64{0.75, 0.0}, cmd.Data)

	node, ok := h.store.Node("py_controller")
	require.True(t, ok)
	assert.Equal(t, 1.0, node[SightReference].Value)
	assert.Equal(t, 0.25, node[SightPosition].Value)
	assert.Equal(t, 0.75, node[SightControl].Value)
	assert.Equal(t, 1.0, node[SightGain].Value)
}

func TestScenarioAtReference(t *testing.T) {
	h := newHarness(t, Params{DesiredPositionMeters: 1.0, Gain: 2.0})

	h.odometry(t, 1.0)
	h.tick(t)

	cmd, _ := h.cmd.Read()
	assert.Equal(t, []float64{0.0, 0.0}, cmd.Data)
}

func TestGainChangedMidRun(t *testing.T) {
	h := newHarness(t, DefaultParams())

	h.odometry(t, 0.5)
	h.tick(t)
	cmd, _ := h.cmd.Read()
	assert.Equal(t, 0.5, cmd.LinearSpeed())

	require.NoError(t, h.controller.Params().Patch([]byte(`{"gain": 0.0}`)))

	for _, x := range []float64{-3, 0, 0.5, 7.25} {
		h.odometry(t, x)
		h.tick(t)
		cmd, _ := h.cmd.Read()
		assert.Equal(t, 0.0, cmd.LinearSpeed())
		assert.Equal(t, 0.0, cmd.AngularSpeed())
	}
}

func TestAngularAlwaysZero(t *testing.T) {
	h := newHarness(t, Params{DesiredPositionMeters: -2, Gain: 3})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		x := rng.NormFloat64()
		h.odometry(t, x)
		h.tick(t)
		cmd, _ := h.cmd.Read()
		require.Len(t, cmd.Data, 2)
		assert.Equal(t, Control(3, -2, x), cmd.Data[0])
		assert.Equal(t, 0.0, cmd.Data[1])
	}
}

func TestLatestOdometryIsUsed(t *testing.T) {
	h := newHarness(t, DefaultParams())

	h.odometry(t, 5)
	h.odometry(t, 0.25)
	h.tick(t)

	cmd, _ := h.cmd.Read()
	assert.Equal(t, 0.75, cmd.LinearSpeed())
}
