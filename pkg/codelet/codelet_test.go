package codelet

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/channel"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
	"github.com/open-teleop/codelets/pkg/sight"
)

type testParams struct {
	Message string  `yaml:"message" json:"message"`
	Gain    float64 `yaml:"gain" json:"gain"`
}

func newTestContext(node string) (*Context, *channel.Hub, *sight.Store) {
	logger := customlog.Discard()
	hub := channel.NewHub(logger)
	store := sight.NewStore()
	return NewContext(node, logger, hub, store), hub, store
}

func TestScheduleRequiresTickMode(t *testing.T) {
	ctx, _, _ := newTestContext("ping")

	_, err := ctx.Schedule()
	assert.True(t, errors.Is(err, ErrNoTickMode))

	err = ctx.TickPeriodically(0)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))

	require.NoError(t, ctx.TickPeriodically(Seconds(0.01)))
	s, err := ctx.Schedule()
	require.NoError(t, err)
	assert.Equal(t, TickPeriodic, s.Mode)
	assert.Equal(t, 10*time.Millisecond, s.Period)
}

func TestTickOnMessage(t *testing.T) {
	ctx, hub, _ := newTestContext("controller")
	rx, err := Rx[message.Odometry2](ctx, "odometry")
	require.NoError(t, err)

	ctx.TickOnMessage(rx)
	s, err := ctx.Schedule()
	require.NoError(t, err)
	assert.Equal(t, TickOnMessage, s.Mode)
	assert.Equal(t, "controller/odometry", s.Channel)

	require.NoError(t, hub.Deliver("controller/odometry", message.Odometry2{}))
	select {
	case <-s.Trigger:
	default:
		t.Fatal("expected trigger after delivery")
	}
}

func TestPortsAreScopedToNode(t *testing.T) {
	ctx, hub, _ := newTestContext("controller")
	_, err := Tx[message.DifferentialBaseControl](ctx, "cmd")
	require.NoError(t, err)

	e, ok := hub.Endpoint("controller/cmd")
	require.True(t, ok)
	assert.Equal(t, channel.DirectionTx, e.Direction())
}

func TestShow(t *testing.T) {
	ctx, _, store := newTestContext("controller")
	ctx.Show("gain", 2.0)

	v, ok := store.Get("controller", "gain")
	require.True(t, ok)
	assert.Equal(t, 2.0, v.Value)

	bare := NewContext("bare", customlog.Discard(), channel.NewHub(customlog.Discard()), nil)
	bare.Show("gain", 1.0)
}

func TestParamsPatch(t *testing.T) {
	p := NewParams(testParams{Message: "Hello World!", Gain: 1})

	require.NoError(t, p.Patch([]byte(`gain: 2.5`)))
	assert.Equal(t, testParams{Message: "Hello World!", Gain: 2.5}, p.Get())

	require.NoError(t, p.Patch([]byte(`{"message": "Bye"}`)))
	assert.Equal(t, "Bye", p.Get().Message)
	assert.Equal(t, 2.5, p.Get().Gain)

	require.NoError(t, p.Patch(nil))
	assert.Equal(t, "Bye", p.Get().Message)
}

func TestParamsPatchRejectsWholeDocument(t *testing.T) {
	p := NewParams(testParams{Message: "Hello World!", Gain: 1})

	err := p.Patch([]byte("gain: 3\nunknown: 1\n"))
	assert.True(t, errors.Is(err, ErrInvalidParameters))
	assert.Equal(t, 1.0, p.Get().Gain)

	err = p.Patch([]byte(`gain: fast`))
	assert.True(t, errors.Is(err, ErrInvalidParameters))

	var ps ParamSet = p
	assert.Equal(t, testParams{Message: "Hello World!", Gain: 1}, ps.Value())
}

func TestParamsPreviewLeavesValue(t *testing.T) {
	p := NewParams(testParams{Message: "Hello World!", Gain: 1})

	next, err := p.Preview([]byte(`gain: 3`))
	require.NoError(t, err)
	assert.Equal(t, testParams{Message: "Hello World!", Gain: 3}, next)
	assert.Equal(t, 1.0, p.Get().Gain)

	_, err = p.Preview([]byte(`gian: 3`))
	assert.True(t, errors.Is(err, ErrInvalidParameters))
}
