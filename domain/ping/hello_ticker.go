// Package ping provides HelloTicker, a codelet that periodically prints a
// configurable message.
package ping

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/open-teleop/codelets/pkg/codelet"
)

// Module and component names used in graph files.
const (
	ModuleName    = "ping"
	ComponentType = "HelloTicker"
)

// DefaultTickPeriod is the activation period.
const DefaultTickPeriod = time.Second

// Params are the tunable parameters of HelloTicker.
type Params struct {
	// Message is printed at every activation.
	Message string `yaml:"message" json:"message"`
}

// DefaultParams returns the parameters HelloTicker starts with.
func DefaultParams() Params {
	return Params{Message: "Hello World!"}
}

// HelloTicker writes its message to a text sink once per period.
type HelloTicker struct {
	params *codelet.Params[Params]
	out    io.Writer
	period time.Duration
}

var (
	_ codelet.Codelet       = (*HelloTicker)(nil)
	_ codelet.Parameterized = (*HelloTicker)(nil)
)

// Option configures a HelloTicker.
type Option func(*HelloTicker)

// WithOutput sets the text sink. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(h *HelloTicker) { h.out = w }
}

// WithTickPeriod overrides DefaultTickPeriod.
func WithTickPeriod(d time.Duration) Option {
	return func(h *HelloTicker) { h.period = d }
}

// NewHelloTicker creates a HelloTicker with default parameters.
func NewHelloTicker(opts ...Option) *HelloTicker {
	h := &HelloTicker{
		params: codelet.NewParams(DefaultParams()),
		out:    os.Stdout,
		period: DefaultTickPeriod,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Component describes HelloTicker for graph files.
func Component() codelet.Component {
	return codelet.Component{
		Module: ModuleName,
		Type:   ComponentType,
		New: func(node string) (codelet.Codelet, error) {
			return NewHelloTicker(), nil
		},
	}
}

// Params exposes the parameters for live tuning.
func (h *HelloTicker) Params() codelet.ParamSet { return h.params }

// Settings returns the typed parameter holder.
func (h *HelloTicker) Settings() *codelet.Params[Params] { return h.params }

// Initialize requests periodic activation.
func (h *HelloTicker) Initialize(ctx *codelet.Context) error {
	return ctx.TickPeriodically(h.period)
}

// OnActivation prints the current message.
func (h *HelloTicker) OnActivation(ctx *codelet.Context) error {
	if _, err := fmt.Fprintln(h.out, h.params.Get().Message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
