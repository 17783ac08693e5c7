package ping

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/codelet"
	customlog "github.com/open-teleop/codelets/pkg/log"
)

func newContext() *codelet.Context {
	logger := customlog.Discard()
	return codelet.NewContext("ping_node", logger, channel.NewHub(logger), nil)
}

func TestInitializeRequestsOneSecondTick(t *testing.T) {
	h := NewHelloTicker()
	ctx := newContext()
	require.NoError(t, h.Initialize(ctx))

	s, err := ctx.Schedule()
	require.NoError(t, err)
	assert.Equal(t, codelet.TickPeriodic, s.Mode)
	assert.Equal(t, time.Second, s.Period)
	assert.Equal(t, "Hello World!", h.Settings().Get().Message)
}

func TestOnActivationPrintsCurrentMessage(t *testing.T) {
	var out bytes.Buffer
	h := NewHelloTicker(WithOutput(&out))
	ctx := newContext()
	require.NoError(t, h.Initialize(ctx))

	require.NoError(t, h.OnActivation(ctx))
	require.NoError(t, h.Params().Patch([]byte(`message: Goodbye`)))
	require.NoError(t, h.OnActivation(ctx))
	h.Settings().Set(Params{Message: "again"})
	require.NoError(t, h.OnActivation(ctx))

	assert.Equal(t, "Hello World!\nGoodbye\nagain\n", out.String())
}

func TestComponent(t *testing.T) {
	c := Component()
	assert.Equal(t, "ping", c.Module)
	assert.Equal(t, "HelloTicker", c.Type)

	cl, err := c.New("ping_node")
	require.NoError(t, err)
	assert.IsType(t, &HelloTicker{}, cl)
}
