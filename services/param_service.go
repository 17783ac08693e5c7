package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/open-teleop/codelets/pkg/codelet"
	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
)

// Common errors
var (
	ErrUnknownNode = errors.New("unknown node")
	ErrNoParams    = errors.New("node has no parameters")
)

// ParamPublisher announces parameter changes to other processes.
type ParamPublisher interface {
	PublishParamsUpdatedNotification(node string) error
}

// ParamService gives the web and bus layers access to node parameters and
// keeps the application config file in sync with live edits.
type ParamService struct {
	configPath string
	appConfig  config.AppConfig
	nodes      map[string]codelet.ParamSet
	known      map[string]bool
	publisher  ParamPublisher
	logger     customlog.Logger
	mu         sync.RWMutex
}

// NewParamService creates a service persisting to configPath. An empty
// path keeps edits in memory only.
func NewParamService(configPath string, appConfig config.AppConfig, logger customlog.Logger) *ParamService {
	if appConfig == nil {
		appConfig = config.AppConfig{}
	}
	if logger == nil {
		logger = customlog.Discard()
	}
	return &ParamService{
		configPath: configPath,
		appConfig:  appConfig,
		nodes:      make(map[string]codelet.ParamSet),
		known:      make(map[string]bool),
		logger:     logger,
	}
}

// Register makes a node known. params may be nil for nodes without parameters.
func (s *ParamService) Register(node string, params codelet.ParamSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.known[node] = true
	if params != nil {
		s.nodes[node] = params
	}
}

// SetPublisher injects the publisher after construction.
func (s *ParamService) SetPublisher(p ParamPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
	s.logger.Infof("ParamPublisher injected into ParamService")
}

// Nodes returns the nodes that have parameters, sorted.
func (s *ParamService) Nodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]string, 0, len(s.nodes))
	for node := range s.nodes {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// HasParams reports whether node has tunable parameters.
func (s *ParamService) HasParams(node string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[node]
	return ok
}

// Get returns a copy of the current parameters of node.
func (s *ParamService) Get(node string) (interface{}, error) {
	params, err := s.lookup(node)
	if err != nil {
		return nil, err
	}
	return params.Value(), nil
}

// Update applies a YAML or JSON patch to node, persists the resulting
// config and notifies the publisher.
func (s *ParamService) Update(node string, doc []byte) (interface{}, error) {
	params, err := s.lookup(node)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	preview, err := params.Preview(doc)
	if err != nil {
		s.logger.Warnf("Rejected parameter update for %s: %v", node, err)
		return nil, err
	}

	// persist first; a failed save leaves the live parameters untouched
	next := s.appConfig.Clone()
	if err := next.SetParams(node, preview); err != nil {
		return nil, err
	}
	if s.configPath != "" {
		if err := next.Save(s.configPath); err != nil {
			s.logger.Errorf("Error persisting parameters to '%s': %v", s.configPath, err)
			return nil, err
		}
		s.logger.Debugf("Persisted parameters to %s", s.configPath)
	}

	if err := params.Patch(doc); err != nil {
		return nil, err
	}
	s.appConfig = next
	value := params.Value()
	s.logger.Infof("Updated parameters of %s: %+v", node, value)

	if s.publisher != nil {
		go func(publisher ParamPublisher) {
			if err := publisher.PublishParamsUpdatedNotification(node); err != nil {
				s.logger.Warnf("Failed to publish params update notification: %v", err)
			}
		}(s.publisher)
	}

	return value, nil
}

// ConfigYAML returns the application config including live edits.
func (s *ParamService) ConfigYAML() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appConfig.Marshal(false)
}

func (s *ParamService) lookup(node string) (codelet.ParamSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	params, ok := s.nodes[node]
	if ok {
		return params, nil
	}
	if s.known[node] {
		return nil, fmt.Errorf("%w: %s", ErrNoParams, node)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNode, node)
}
