package channel

import (
	"fmt"
	"sync"

	"github.com/open-teleop/codelets/pkg/message"
)

// Tap observes every message published on a Tx. Taps must not block.
type Tap func(header Header, msg interface{})

// Transmitter is the untyped view of a Tx used for wiring.
type Transmitter interface {
	Endpoint
	ConnectTo(target Receiver) error
	AddTap(tap Tap)
}

// Tx is an output port fanning messages out to connected Rx ports and taps.
type Tx[T any] struct {
	name     string
	registry *Registry

	mu      sync.RWMutex
	targets []*Rx[T]
	taps    []Tap
}

var _ Transmitter = (*Tx[message.Odometry2])(nil)

func newTx[T any](name string, registry *Registry) *Tx[T] {
	return &Tx[T]{name: name, registry: registry}
}

// Name returns the channel name, node/tag.
func (t *Tx[T]) Name() string { return t.name }

// Direction returns DirectionTx.
func (t *Tx[T]) Direction() Direction { return DirectionTx }

// MessageType returns the registry name of T.
func (t *Tx[T]) MessageType() string {
	var zero T
	return message.TypeName(zero)
}

// ConnectTo wires target to this port. target must carry the same type.
func (t *Tx[T]) ConnectTo(target Receiver) error {
	rx, ok := target.(*Rx[T])
	if !ok {
		return fmt.Errorf("%w: %s (%s) -> %s (%s)",
			ErrTypeMismatch, t.name, t.MessageType(), target.Name(), target.MessageType())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.targets {
		if existing == rx {
			return nil
		}
	}
	t.targets = append(t.targets, rx)
	return nil
}

// AddTap registers an observer for published messages.
func (t *Tx[T]) AddTap(tap Tap) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.taps = append(t.taps, tap)
}

// Publish stamps msg with a new header and delivers it to every connected
// port and tap. It never blocks on a receiver.
func (t *Tx[T]) Publish(msg T) Header {
	header := NewHeader(t.name)

	t.mu.RLock()
	targets := t.targets
	taps := t.taps
	t.mu.RUnlock()

	if t.registry != nil {
		t.registry.UpdateStats(t.name, header.Timestamp.UnixNano())
	}
	for _, rx := range targets {
		rx.Deliver(msg, header)
	}
	for _, tap := range taps {
		tap(header, msg)
	}
	return header
}
