package codelet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrInvalidParameters is returned when a parameter patch cannot be applied.
var ErrInvalidParameters = errors.New("invalid parameters")

// ParamSet is the untyped view of a codelet's parameters.
type ParamSet interface {
	// Value returns a copy of the current parameters.
	Value() interface{}
	// Preview returns the parameters Patch(doc) would produce without
	// applying them.
	Preview(doc []byte) (interface{}, error)
	// Patch applies a YAML or JSON document. Omitted keys keep their value.
	Patch(doc []byte) error
}

// Parameterized is implemented by codelets with runtime-tunable parameters.
type Parameterized interface {
	Params() ParamSet
}

// Params holds a codelet's typed parameters. T is a struct with yaml and
// json tags; changes are seen by the next Get.
type Params[T any] struct {
	mu    sync.RWMutex
	value T
}

var _ ParamSet = (*Params[struct{}])(nil)

// NewParams creates a holder initialized with defaults.
func NewParams[T any](defaults T) *Params[T] {
	return &Params[T]{value: defaults}
}

// Get returns the current parameters.
func (p *Params[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set replaces the parameters.
func (p *Params[T]) Set(value T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = value
}

// Value returns the current parameters untyped.
func (p *Params[T]) Value() interface{} {
	return p.Get()
}

// Preview decodes doc on top of the current parameters and returns the
// result, leaving the parameters unchanged.
func (p *Params[T]) Preview(doc []byte) (interface{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return decodeOnto(p.value, doc)
}

// Patch decodes doc on top of the current parameters. Unknown keys and
// mistyped values reject the whole document.
func (p *Params[T]) Patch(doc []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, err := decodeOnto(p.value, doc)
	if err != nil {
		return err
	}
	p.value = next
	return nil
}

func decodeOnto[T any](base T, doc []byte) (T, error) {
	next := base
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(&next); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return base, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return next, nil
}
