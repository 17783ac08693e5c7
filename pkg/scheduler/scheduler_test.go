package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/codelet"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
)

type countingCodelet struct {
	activations atomic.Int64
	running     atomic.Int32
	overlapped  atomic.Bool
	stopped     atomic.Bool
	err         error
}

func (c *countingCodelet) Initialize(ctx *codelet.Context) error { return nil }

func (c *countingCodelet) OnActivation(ctx *codelet.Context) error {
	if c.running.Add(1) > 1 {
		c.overlapped.Store(true)
	}
	defer c.running.Add(-1)
	c.activations.Add(1)
	return c.err
}

func (c *countingCodelet) Stop(ctx *codelet.Context) error {
	c.stopped.Store(true)
	return nil
}

func newContext(hub *channel.Hub, node string) *codelet.Context {
	return codelet.NewContext(node, customlog.Discard(), hub, nil)
}

func TestPeriodicJob(t *testing.T) {
	hub := channel.NewHub(customlog.Discard())
	s := New(customlog.Discard())

	c := &countingCodelet{}
	ctx := newContext(hub, "ping")
	require.NoError(t, ctx.TickPeriodically(2*time.Millisecond))
	require.NoError(t, s.Add("ping", c, ctx))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.True(t, errors.Is(s.Start(context.Background()), ErrRunning))

	assert.Eventually(t, func() bool { return c.activations.Load() >= 3 }, time.Second, time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.True(t, c.stopped.Load())
	assert.False(t, c.overlapped.Load())

	info, ok := s.Job("ping")
	require.True(t, ok)
	assert.Equal(t, codelet.TickPeriodic, info.Mode)
	assert.Equal(t, "2ms", info.Period)
	assert.Equal(t, c.activations.Load(), info.Metrics.ActivationCount)

	count := c.activations.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, count, c.activations.Load())
}

func TestOnMessageJob(t *testing.T) {
	hub := channel.NewHub(customlog.Discard())
	s := New(customlog.Discard())

	c := &countingCodelet{}
	ctx := newContext(hub, "logger")
	rx, err := codelet.Rx[message.Odometry2](ctx, "odometry")
	require.NoError(t, err)
	ctx.TickOnMessage(rx)
	require.NoError(t, s.Add("logger", c, ctx))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int64(0), c.activations.Load())

	require.NoError(t, hub.Deliver("logger/odometry", message.Odometry2{}))
	assert.Eventually(t, func() bool { return c.activations.Load() == 1 }, time.Second, time.Millisecond)
}

func TestActivationErrorsAreCounted(t *testing.T) {
	hub := channel.NewHub(customlog.Discard())
	s := New(customlog.Discard())

	c := &countingCodelet{err: errors.New("boom")}
	ctx := newContext(hub, "faulty")
	require.NoError(t, ctx.TickPeriodically(time.Millisecond))
	require.NoError(t, s.Add("faulty", c, ctx))

	ctxRun, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctxRun))
	assert.Eventually(t, func() bool { return c.activations.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	s.Stop()

	info, _ := s.Job("faulty")
	assert.Equal(t, info.Metrics.ActivationCount, info.Metrics.ErrorCount)
}

func TestAddValidation(t *testing.T) {
	hub := channel.NewHub(customlog.Discard())
	s := New(customlog.Discard())

	err := s.Add("idle", &countingCodelet{}, newContext(hub, "idle"))
	assert.True(t, errors.Is(err, codelet.ErrNoTickMode))

	ctx := newContext(hub, "ping")
	require.NoError(t, ctx.TickPeriodically(time.Second))
	require.NoError(t, s.Add("ping", &countingCodelet{}, ctx))
	err = s.Add("ping", &countingCodelet{}, ctx)
	assert.True(t, errors.Is(err, ErrDuplicateNode))

	assert.Len(t, s.Jobs(), 1)
}
