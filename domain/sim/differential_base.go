// Package sim provides a kinematic differential base simulator so control
// graphs can run closed loop without hardware.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/codelet"
	"github.com/open-teleop/codelets/pkg/message"
)

// Module and component names used in graph files.
const (
	ModuleName    = "sim"
	ComponentType = "DifferentialBaseSimulator"
)

// Port tags.
const (
	CommandTag  = "cmd"
	OdometryTag = "odometry"
)

// DefaultTickPeriod is the integration step.
const DefaultTickPeriod = 10 * time.Millisecond

// Params set the pose the base starts from. They are read once, on the
// first activation.
type Params struct {
	InitialX       float64 `yaml:"initial_x" json:"initial_x"`
	InitialY       float64 `yaml:"initial_y" json:"initial_y"`
	InitialHeading float64 `yaml:"initial_heading" json:"initial_heading"`
}

// DifferentialBaseSimulator integrates the last received command and
// publishes odometry every tick.
type DifferentialBaseSimulator struct {
	params *codelet.Params[Params]
	period time.Duration
	now    func() time.Time

	rx *channel.Rx[message.DifferentialBaseControl]
	tx *channel.Tx[message.Odometry2]

	mu      sync.Mutex
	started bool
	last    time.Time
	pose    message.Odometry2
	command message.DifferentialBaseControl
}

var (
	_ codelet.Codelet       = (*DifferentialBaseSimulator)(nil)
	_ codelet.Parameterized = (*DifferentialBaseSimulator)(nil)
)

// NewDifferentialBaseSimulator creates a simulator at the origin.
func NewDifferentialBaseSimulator() *DifferentialBaseSimulator {
	return &DifferentialBaseSimulator{
		params: codelet.NewParams(Params{}),
		period: DefaultTickPeriod,
		now:    time.Now,
	}
}

// Component describes DifferentialBaseSimulator for graph files.
func Component() codelet.Component {
	return codelet.Component{
		Module: ModuleName,
		Type:   ComponentType,
		New: func(node string) (codelet.Codelet, error) {
			return NewDifferentialBaseSimulator(), nil
		},
	}
}

// Params exposes the parameters for live tuning.
func (s *DifferentialBaseSimulator) Params() codelet.ParamSet { return s.params }

// Initialize declares the command input and odometry output.
func (s *DifferentialBaseSimulator) Initialize(ctx *codelet.Context) error {
	rx, err := codelet.Rx[message.DifferentialBaseControl](ctx, CommandTag)
	if err != nil {
		return err
	}
	tx, err := codelet.Tx[message.Odometry2](ctx, OdometryTag)
	if err != nil {
		return err
	}
	s.rx = rx
	s.tx = tx
	return ctx.TickPeriodically(s.period)
}

// OnActivation advances the pose by the measured time step and publishes it.
func (s *DifferentialBaseSimulator) OnActivation(ctx *codelet.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.started {
		p := s.params.Get()
		s.pose.Translation = r3.Vector{X: p.InitialX, Y: p.InitialY}
		s.pose.Heading = p.InitialHeading
		s.started = true
	} else {
		s.step(now.Sub(s.last).Seconds())
	}
	s.last = now

	if s.rx.Available() {
		s.command, _ = s.rx.Read()
	}

	linear := s.command.LinearSpeed()
	angular := s.command.AngularSpeed()
	s.pose.LinearSpeed = r3.Vector{X: linear}
	s.pose.AngularSpeed = angular

	ctx.Show("x (m)", s.pose.Translation.X)
	ctx.Show("heading (rad)", s.pose.Heading)
	s.tx.Publish(s.pose)
	return nil
}

// Pose returns the current simulated odometry.
func (s *DifferentialBaseSimulator) Pose() message.Odometry2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

func (s *DifferentialBaseSimulator) step(dt float64) {
	if dt <= 0 {
		return
	}
	linear := s.command.LinearSpeed()
	angular := s.command.AngularSpeed()

	s.pose.Translation.X += linear * dt * math.Cos(s.pose.Heading)
	s.pose.Translation.Y += linear * dt * math.Sin(s.pose.Heading)
	s.pose.Heading += angular * dt
}
