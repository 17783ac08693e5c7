// Package sight records the values codelets show for live introspection.
package sight

import (
	"sort"
	"sync"
	"time"
)

// Sample is one value shown by a node.
type Sample struct {
	Node      string      `json:"node"`
	Name      string      `json:"name"`
	Value     interface{} `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

// Value is the latest value of a named series.
type Value struct {
	Value     interface{} `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

// Store keeps the latest value per node and name and streams every sample
// to subscribers.
type Store struct {
	mu          sync.RWMutex
	values      map[string]map[string]Value
	subscribers map[int]chan Sample
	nextID      int
	dropped     int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values:      make(map[string]map[string]Value),
		subscribers: make(map[int]chan Sample),
	}
}

// Show records value under node/name. Subscribers that are not keeping up
// miss the sample.
func (s *Store) Show(node, name string, value interface{}) {
	sample := Sample{Node: node, Name: name, Value: value, Timestamp: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.values[node]
	if !ok {
		series = make(map[string]Value)
		s.values[node] = series
	}
	series[name] = Value{Value: value, Timestamp: sample.Timestamp}

	for _, ch := range s.subscribers {
		select {
		case ch <- sample:
		default:
			s.dropped++
		}
	}
}

// Snapshot returns a copy of the latest values of every node.
func (s *Store) Snapshot() map[string]map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]Value, len(s.values))
	for node, series := range s.values {
		out[node] = copySeries(series)
	}
	return out
}

// Node returns a copy of the latest values of one node.
func (s *Store) Node(node string) (map[string]Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.values[node]
	if !ok {
		return nil, false
	}
	return copySeries(series), true
}

// Get returns the latest value of node/name.
func (s *Store) Get(node, name string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[node][name]
	return v, ok
}

// Nodes returns the names of nodes that showed at least one value.
func (s *Store) Nodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]string, 0, len(s.values))
	for node := range s.values {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Dropped returns how many samples were not delivered to slow subscribers.
func (s *Store) Dropped() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Subscribe returns a channel receiving every new sample and a function that
// removes the subscription and closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Sample, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Sample, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func copySeries(series map[string]Value) map[string]Value {
	out := make(map[string]Value, len(series))
	for name, v := range series {
		out[name] = v
	}
	return out
}
