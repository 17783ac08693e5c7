// Package codelet defines the lifecycle contract between a codelet and the
// loop that drives it.
//
// A host constructs a codelet, calls Initialize once with a Context, then
// calls OnActivation every time the tick mode requested during Initialize
// fires. Activations of one codelet never overlap.
package codelet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/open-teleop/codelets/pkg/channel"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/sight"
)

// Common errors
var (
	ErrNoTickMode    = errors.New("codelet requested no tick mode")
	ErrInvalidPeriod = errors.New("tick period must be positive")
)

// Codelet is a unit of behavior driven by an external loop.
type Codelet interface {
	// Initialize declares ports and requests a tick mode.
	Initialize(ctx *Context) error
	// OnActivation runs one step of the codelet.
	OnActivation(ctx *Context) error
}

// Stopper is implemented by codelets that release resources on shutdown.
type Stopper interface {
	Stop(ctx *Context) error
}

// Factory builds a codelet for the named node.
type Factory func(node string) (Codelet, error)

// Component is a codelet type offered by a module, e.g. sim/DifferentialBaseSimulator.
type Component struct {
	Module string
	Type   string
	New    Factory
}

// TickMode selects what activates a codelet.
type TickMode string

// Tick modes
const (
	TickNone      TickMode = "none"
	TickPeriodic  TickMode = "periodic"
	TickOnMessage TickMode = "on_message"
)

// Schedule is the activation request recorded during Initialize.
type Schedule struct {
	Mode    TickMode
	Period  time.Duration
	Trigger <-chan struct{}
	Channel string
}

// Context is the view of the host given to one codelet.
type Context struct {
	node   string
	logger customlog.Logger
	hub    *channel.Hub
	sight  *sight.Store

	mu       sync.Mutex
	schedule Schedule
}

// NewContext creates the context of node. sight may be nil.
func NewContext(node string, logger customlog.Logger, hub *channel.Hub, store *sight.Store) *Context {
	return &Context{
		node:     node,
		logger:   logger.WithField("node", node),
		hub:      hub,
		sight:    store,
		schedule: Schedule{Mode: TickNone},
	}
}

// Node returns the node name.
func (c *Context) Node() string { return c.node }

// Logger returns a logger tagged with the node name.
func (c *Context) Logger() customlog.Logger { return c.logger }

// TickPeriodically requests an activation every period.
func (c *Context) TickPeriodically(period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = Schedule{Mode: TickPeriodic, Period: period}
	return nil
}

// TickOnMessage requests an activation whenever rx receives a message.
func (c *Context) TickOnMessage(rx channel.Receiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schedule = Schedule{Mode: TickOnMessage, Trigger: rx.Notify(), Channel: rx.Name()}
}

// Schedule returns the requested tick mode, or ErrNoTickMode.
func (c *Context) Schedule() (Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule.Mode == TickNone {
		return c.schedule, fmt.Errorf("%w: %s", ErrNoTickMode, c.node)
	}
	return c.schedule, nil
}

// Show publishes a named value for live introspection.
func (c *Context) Show(name string, value interface{}) {
	if c.sight == nil {
		return
	}
	c.sight.Show(c.node, name, value)
}

// Rx declares an input port tag on the context's node.
func Rx[T any](ctx *Context, tag string) (*channel.Rx[T], error) {
	return channel.NewRx[T](ctx.hub, ctx.node, tag)
}

// Tx declares an output port tag on the context's node.
func Tx[T any](ctx *Context, tag string) (*channel.Tx[T], error) {
	return channel.NewTx[T](ctx.hub, ctx.node, tag)
}

// Seconds converts a period in seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
