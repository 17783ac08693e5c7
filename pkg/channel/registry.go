package channel

import (
	"sort"
	"sync"

	customlog "github.com/open-teleop/codelets/pkg/log"
)

// ChannelInfo holds metadata and traffic statistics for a channel endpoint.
type ChannelInfo struct {
	Name         string
	MessageType  string
	Direction    Direction
	StatCount    int64
	Dropped      int64
	LastReceived int64
}

// Registry keeps per-channel statistics for every endpoint of a Hub.
type Registry struct {
	logger   customlog.Logger
	channels map[string]*ChannelInfo
	mu       sync.RWMutex
}

// NewRegistry creates an empty channel registry.
func NewRegistry(logger customlog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		channels: make(map[string]*ChannelInfo),
	}
}

// Register adds a channel. Registering an existing name resets its statistics.
func (r *Registry) Register(name, messageType string, direction Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels[name] = &ChannelInfo{
		Name:        name,
		MessageType: messageType,
		Direction:   direction,
	}
	r.logger.Debugf("Registered %s channel %s (%s)", direction, name, messageType)
}

// UpdateStats counts one message on the channel.
func (r *Registry) UpdateStats(name string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.channels[name]
	if !exists {
		return
	}
	info.StatCount++
	info.LastReceived = timestamp
}

// AddDropped counts messages overwritten before they were read.
func (r *Registry) AddDropped(name string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, exists := r.channels[name]; exists {
		info.Dropped += n
	}
}

// GetChannelInfo returns a copy of the channel's info.
func (r *Registry) GetChannelInfo(name string) (ChannelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.channels[name]
	if !exists {
		return ChannelInfo{}, false
	}
	return *info, true
}

// GetAllChannels returns the registered channel names in sorted order.
func (r *Registry) GetAllChannels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetChannelStats returns a map of channel statistics keyed by channel name.
func (r *Registry) GetChannelStats() map[string]map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]map[string]interface{}, len(r.channels))
	for name, info := range r.channels {
		stats[name] = map[string]interface{}{
			"count":         info.StatCount,
			"dropped":       info.Dropped,
			"last_received": info.LastReceived,
			"type":          info.MessageType,
			"direction":     string(info.Direction),
		}
	}
	return stats
}
