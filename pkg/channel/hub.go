package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
)

// Common errors
var (
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrDuplicateChannel = errors.New("channel already declared")
	ErrTypeMismatch     = errors.New("message type mismatch")
	ErrDirection        = errors.New("wrong channel direction")
	ErrInvalidName      = errors.New("invalid channel name")
)

// Hub owns every endpoint of an application, keyed node/tag.
type Hub struct {
	logger    customlog.Logger
	registry  *Registry
	endpoints map[string]Endpoint
	mu        sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger customlog.Logger) *Hub {
	return &Hub{
		logger:    logger,
		registry:  NewRegistry(logger),
		endpoints: make(map[string]Endpoint),
	}
}

// ChannelName joins a node and a tag.
func ChannelName(node, tag string) string {
	return node + "/" + tag
}

// NewRx declares an input port on node.
func NewRx[T any](h *Hub, node, tag string) (*Rx[T], error) {
	name, err := channelName(node, tag)
	if err != nil {
		return nil, err
	}
	rx := newRx[T](name, h.registry)
	if err := h.add(rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// NewTx declares an output port on node.
func NewTx[T any](h *Hub, node, tag string) (*Tx[T], error) {
	name, err := channelName(node, tag)
	if err != nil {
		return nil, err
	}
	tx := newTx[T](name, h.registry)
	if err := h.add(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func channelName(node, tag string) (string, error) {
	if node == "" || tag == "" || strings.Contains(node, "/") || strings.Contains(tag, "/") {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidName, node, tag)
	}
	return ChannelName(node, tag), nil
}

func (h *Hub) add(e Endpoint) error {
	h.mu.Lock()
	if _, exists := h.endpoints[e.Name()]; exists {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, e.Name())
	}
	h.endpoints[e.Name()] = e
	h.mu.Unlock()

	h.registry.Register(e.Name(), e.MessageType(), e.Direction())
	return nil
}

// Registry returns the channel statistics registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Endpoint looks up an endpoint by name.
func (h *Hub) Endpoint(name string) (Endpoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.endpoints[name]
	return e, ok
}

// Endpoints returns every endpoint sorted by name.
func (h *Hub) Endpoints() []Endpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Endpoint, 0, len(h.endpoints))
	for _, e := range h.endpoints {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Connect wires the tx endpoint source to the rx endpoint target.
func (h *Hub) Connect(source, target string) error {
	tx, err := h.transmitter(source)
	if err != nil {
		return err
	}
	rx, err := h.receiver(target)
	if err != nil {
		return err
	}
	if err := tx.ConnectTo(rx); err != nil {
		return err
	}
	h.logger.Infof("Connected %s -> %s (%s)", source, target, tx.MessageType())
	return nil
}

// Tap registers an observer on the tx endpoint source.
func (h *Hub) Tap(source string, tap Tap) error {
	tx, err := h.transmitter(source)
	if err != nil {
		return err
	}
	tx.AddTap(tap)
	return nil
}

// Deliver injects a typed message into the rx endpoint target.
func (h *Hub) Deliver(target string, msg interface{}) error {
	rx, err := h.receiver(target)
	if err != nil {
		return err
	}
	return rx.DeliverAny(msg, NewHeader(target))
}

// DeliverEncoded injects a wire payload into the rx endpoint target.
func (h *Hub) DeliverEncoded(target string, contentType message.ContentType, data []byte) error {
	rx, err := h.receiver(target)
	if err != nil {
		return err
	}
	return rx.DeliverEncoded(contentType, data, NewHeader(target))
}

// DeliverJSON injects a JSON message into the rx endpoint target.
func (h *Hub) DeliverJSON(target string, data []byte) error {
	rx, err := h.receiver(target)
	if err != nil {
		return err
	}
	return rx.DeliverJSON(data, NewHeader(target))
}

// DeliverEnvelope injects an enveloped message into the rx endpoint named by
// env.Channel, keeping the envelope's id and timestamp.
func (h *Hub) DeliverEnvelope(env message.Envelope) error {
	rx, err := h.receiver(env.Channel)
	if err != nil {
		return err
	}
	header := Header{ID: env.ID, Timestamp: env.Timestamp, Channel: env.Channel}
	if header.ID == "" || header.Timestamp.IsZero() {
		header = NewHeader(env.Channel)
	}
	return rx.DeliverEncoded(env.ContentType, env.Payload, header)
}

func (h *Hub) transmitter(name string) (Transmitter, error) {
	e, ok := h.Endpoint(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	tx, ok := e.(Transmitter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, expected tx", ErrDirection, name, e.Direction())
	}
	return tx, nil
}

func (h *Hub) receiver(name string) (Receiver, error) {
	e, ok := h.Endpoint(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	rx, ok := e.(Receiver)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, expected rx", ErrDirection, name, e.Direction())
	}
	return rx, nil
}
