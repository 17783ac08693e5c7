// Package control provides ProportionalController, a codelet that drives a
// differential base toward a reference x position.
package control

import (
	"time"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/codelet"
	"github.com/open-teleop/codelets/pkg/message"
)

// Module and component names used in graph files.
const (
	ModuleName    = "control"
	ComponentType = "ProportionalController"
)

// Port tags.
const (
	OdometryTag = "odometry"
	CommandTag  = "cmd"
)

// Names of the values shown in Sight.
const (
	SightReference = "reference (m)"
	SightPosition  = "position (m)"
	SightControl   = "control"
	SightGain      = "gain"
)

// DefaultTickPeriod is the activation period.
const DefaultTickPeriod = 10 * time.Millisecond

// Params are the tunable parameters of ProportionalController.
type Params struct {
	// DesiredPositionMeters is the reference x position in meters.
	DesiredPositionMeters float64 `yaml:"desired_position_meters" json:"desired_position_meters"`
	// Gain converts a position error in meters to a linear speed in m/s.
	Gain float64 `yaml:"gain" json:"gain"`
}

// DefaultParams returns the parameters ProportionalController starts with.
func DefaultParams() Params {
	return Params{DesiredPositionMeters: 1.0, Gain: 1.0}
}

// Control is the proportional law gain * (reference - position).
func Control(gain, reference, position float64) float64 {
	return gain * (reference - position)
}

// ProportionalController reads odometry and publishes a linear speed
// command proportional to the x position error. Angular speed is always 0.
type ProportionalController struct {
	params *codelet.Params[Params]
	period time.Duration

	rx *channel.Rx[message.Odometry2]
	tx *channel.Tx[message.DifferentialBaseControl]
}

var (
	_ codelet.Codelet       = (*ProportionalController)(nil)
	_ codelet.Parameterized = (*ProportionalController)(nil)
)

// NewProportionalController creates a controller with params.
func NewProportionalController(params Params) *ProportionalController {
	return &ProportionalController{
		params: codelet.NewParams(params),
		period: DefaultTickPeriod,
	}
}

// Component describes ProportionalController for graph files.
func Component() codelet.Component {
	return codelet.Component{
		Module: ModuleName,
		Type:   ComponentType,
		New: func(node string) (codelet.Codelet, error) {
			return NewProportionalController(DefaultParams()), nil
		},
	}
}

// Params exposes the parameters for live tuning.
func (c *ProportionalController) Params() codelet.ParamSet { return c.params }

// Settings returns the typed parameter holder.
func (c *ProportionalController) Settings() *codelet.Params[Params] { return c.params }

// Initialize declares the odometry input and command output and requests
// periodic activation.
func (c *ProportionalController) Initialize(ctx *codelet.Context) error {
	rx, err := codelet.Rx[message.Odometry2](ctx, OdometryTag)
	if err != nil {
		return err
	}
	tx, err := codelet.Tx[message.DifferentialBaseControl](ctx, CommandTag)
	if err != nil {
		return err
	}
	c.rx = rx
	c.tx = tx

	logger := ctx.Logger()
	logger.Infof("Please head to the Sight website at <IP>:<PORT> to see how I am doing.")
	logger.Infof("<IP> is the address where the app is running,")
	logger.Infof("and <PORT> is set in the config file, typically to '3000'.")
	logger.Infof("By default, local link is 'localhost:3000'.")

	return ctx.TickPeriodically(c.period)
}

// OnActivation computes and publishes one command. Without a new odometry
// message it does nothing.
func (c *ProportionalController) OnActivation(ctx *codelet.Context) error {
	if !c.rx.Available() {
		return nil
	}

	p := c.params.Get()
	odom, _ := c.rx.Read()
	position := odom.Translation.X
	control := Control(p.Gain, p.DesiredPositionMeters, position)

	ctx.Show(SightReference, p.DesiredPositionMeters)
	ctx.Show(SightPosition, position)
	ctx.Show(SightControl, control)
	ctx.Show(SightGain, p.Gain)

	c.tx.Publish(message.NewDifferentialBaseControl(control, 0.0))
	return nil
}
