// Package channel implements typed message ports between codelets and the
// hub that wires them together.
package channel

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/open-teleop/codelets/pkg/message"
)

// Direction of an endpoint as seen from its codelet.
type Direction string

// Endpoint directions
const (
	DirectionRx Direction = "rx"
	DirectionTx Direction = "tx"
)

// Header describes one delivered message.
type Header struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel"`
}

// NewHeader stamps a header for a message published on channel.
func NewHeader(channel string) Header {
	return Header{
		ID:        xid.New().String(),
		Timestamp: time.Now(),
		Channel:   channel,
	}
}

// Endpoint is the untyped view of an Rx or Tx used for wiring and bridges.
type Endpoint interface {
	Name() string
	Direction() Direction
	MessageType() string
}

// Receiver is an rx endpoint that accepts untyped or encoded deliveries.
type Receiver interface {
	Endpoint
	DeliverAny(msg interface{}, header Header) error
	DeliverEncoded(contentType message.ContentType, data []byte, header Header) error
	DeliverJSON(data []byte, header Header) error
	Notify() <-chan struct{}
}

// Rx is an input port holding the most recent message.
type Rx[T any] struct {
	name     string
	registry *Registry

	mu       sync.Mutex
	msg      T
	header   Header
	unread   bool
	received int64
	dropped  int64

	notify chan struct{}
}

var _ Receiver = (*Rx[message.Odometry2])(nil)

func newRx[T any](name string, registry *Registry) *Rx[T] {
	return &Rx[T]{
		name:     name,
		registry: registry,
		notify:   make(chan struct{}, 1),
	}
}

// Name returns the channel name, node/tag.
func (r *Rx[T]) Name() string { return r.name }

// Direction returns DirectionRx.
func (r *Rx[T]) Direction() Direction { return DirectionRx }

// MessageType returns the registry name of T.
func (r *Rx[T]) MessageType() string {
	var zero T
	return message.TypeName(zero)
}

// Available reports whether a message arrived since the last Read.
func (r *Rx[T]) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unread
}

// Read returns the most recent message and marks it read. Without any
// delivery it returns the zero message and an empty header.
func (r *Rx[T]) Read() (T, Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unread = false
	return r.msg, r.header
}

// Stats returns the number of received messages and of messages replaced
// before being read.
func (r *Rx[T]) Stats() (received, dropped int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received, r.dropped
}

// Notify returns a channel signalled after each delivery. Signals coalesce.
func (r *Rx[T]) Notify() <-chan struct{} { return r.notify }

// Deliver stores msg as the most recent message.
func (r *Rx[T]) Deliver(msg T, header Header) {
	r.mu.Lock()
	if r.unread {
		r.dropped++
		if r.registry != nil {
			r.registry.AddDropped(r.name, 1)
		}
	}
	r.msg = msg
	r.header = header
	r.unread = true
	r.received++
	r.mu.Unlock()

	if r.registry != nil {
		r.registry.UpdateStats(r.name, header.Timestamp.UnixNano())
	}

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// DeliverAny delivers msg if it is a T or *T.
func (r *Rx[T]) DeliverAny(msg interface{}, header Header) error {
	switch m := msg.(type) {
	case T:
		r.Deliver(m, header)
	case *T:
		if m == nil {
			return fmt.Errorf("%w: nil message for %s", ErrTypeMismatch, r.name)
		}
		r.Deliver(*m, header)
	default:
		return fmt.Errorf("%w: %s expects %s, got %s", ErrTypeMismatch, r.name, r.MessageType(), message.TypeName(msg))
	}
	return nil
}

// DeliverEncoded decodes a wire payload and delivers it.
func (r *Rx[T]) DeliverEncoded(contentType message.ContentType, data []byte, header Header) error {
	var msg T
	if err := message.UnmarshalInto(contentType, data, &msg); err != nil {
		return fmt.Errorf("failed to decode message for %s: %w", r.name, err)
	}
	r.Deliver(msg, header)
	return nil
}

// DeliverJSON decodes a JSON message and delivers it.
func (r *Rx[T]) DeliverJSON(data []byte, header Header) error {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to decode JSON message for %s: %w", r.name, err)
	}
	r.Deliver(msg, header)
	return nil
}
