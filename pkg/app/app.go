// Package app assembles an application from a graph of codelets: it builds
// the nodes, applies their configuration, wires their channels, and drives
// them with a scheduler until the caller's context ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/codelets/domain/control"
	"github.com/open-teleop/codelets/domain/diagnostic"
	"github.com/open-teleop/codelets/domain/ping"
	"github.com/open-teleop/codelets/domain/sim"
	"github.com/open-teleop/codelets/pkg/api"
	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/codelet"
	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/scheduler"
	"github.com/open-teleop/codelets/pkg/sight"
	"github.com/open-teleop/codelets/services"
)

// Common errors
var (
	ErrUnknownModule     = errors.New("unknown module")
	ErrUnknownComponent  = errors.New("unknown component type")
	ErrUnregisteredNode  = errors.New("node has no codelet")
	ErrAlreadyRegistered = errors.New("node already registered")
	ErrAlreadyRun        = errors.New("application already run")
)

const shutdownTimeout = 5 * time.Second

// Bridge moves messages between the application and the outside world.
// Bridges start after every node is initialized and stop after the
// scheduler.
type Bridge interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// DefaultComponents returns the codelet types shipped with this module.
func DefaultComponents() []codelet.Component {
	return []codelet.Component{
		ping.Component(),
		control.Component(),
		sim.Component(),
	}
}

// ComponentName is the graph file name of a component: module.Type.
func ComponentName(c codelet.Component) string {
	return c.Module + "." + c.Type
}

type node struct {
	name      string
	component string
	codelet   codelet.Codelet
	ctx       *codelet.Context
	hasParams bool
}

// Application hosts the nodes of one graph.
type Application struct {
	name       string
	modules    []string
	components map[string]codelet.Component
	logger     customlog.Logger

	hub       *channel.Hub
	sight     *sight.Store
	scheduler *scheduler.Scheduler
	params    *services.ParamService

	graph     *config.Graph
	appConfig config.AppConfig
	factories map[string]codelet.Factory
	order     []string
	bridges   []Bridge
	webAddr   string
	web       *fiber.App

	mu       sync.RWMutex
	nodes    []*node
	setUp    bool
	setUpErr error
	ran      bool
}

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the application logger.
func WithLogger(logger customlog.Logger) Option {
	return func(a *Application) { a.logger = logger }
}

// WithComponents adds codelet types to the catalog.
func WithComponents(components ...codelet.Component) Option {
	return func(a *Application) {
		for _, c := range components {
			a.components[ComponentName(c)] = c
		}
	}
}

// New creates an application loading the named modules. Module names are
// checked when the application runs.
func New(name string, modules []string, opts ...Option) *Application {
	a := &Application{
		name:       name,
		modules:    modules,
		components: make(map[string]codelet.Component),
		logger:     customlog.Discard(),
		sight:      sight.NewStore(),
		appConfig:  config.AppConfig{},
		factories:  make(map[string]codelet.Factory),
	}
	for _, c := range DefaultComponents() {
		a.components[ComponentName(c)] = c
	}
	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.WithField("app", name)
	a.hub = channel.NewHub(a.logger)
	a.scheduler = scheduler.New(a.logger)
	a.params = services.NewParamService("", a.appConfig, a.logger)
	return a
}

// Name returns the application name.
func (a *Application) Name() string { return a.name }

// Hub returns the channel hub.
func (a *Application) Hub() *channel.Hub { return a.hub }

// Sight returns the store of shown values.
func (a *Application) Sight() *sight.Store { return a.sight }

// Scheduler returns the activation scheduler.
func (a *Application) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Params returns the parameter service. LoadConfig replaces it.
func (a *Application) Params() *services.ParamService { return a.params }

// LoadGraph reads the nodes and edges of the application.
func (a *Application) LoadGraph(path string) error {
	graph, err := config.LoadGraph(path)
	if err != nil {
		return err
	}
	a.graph = graph
	a.logger.Infof("Loaded graph %s: %d nodes, %d edges", path, len(graph.Nodes), len(graph.Edges))
	return nil
}

// LoadConfig reads node parameters. Live parameter edits are written back
// to path.
func (a *Application) LoadConfig(path string) error {
	cfg, err := config.LoadAppConfig(path)
	if err != nil {
		return err
	}
	a.appConfig = cfg
	a.params = services.NewParamService(path, cfg, a.logger)
	a.logger.Infof("Loaded config %s for nodes %v", path, cfg.Nodes())
	return nil
}

// Register binds a codelet factory to a node of the graph.
func (a *Application) Register(nodeName string, factory codelet.Factory) error {
	if _, exists := a.factories[nodeName]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, nodeName)
	}
	a.factories[nodeName] = factory
	a.order = append(a.order, nodeName)
	return nil
}

// AddBridge adds a bridge started by Run.
func (a *Application) AddBridge(b Bridge) {
	a.bridges = append(a.bridges, b)
}

// StartWebServer serves the API on addr, e.g. ":3000", while the
// application runs.
func (a *Application) StartWebServer(addr string) {
	a.webAddr = addr
}

// Run builds and initializes every node, starts the bridges and the
// scheduler, then blocks until ctx is done and shuts everything down.
func (a *Application) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.ran {
		a.mu.Unlock()
		return ErrAlreadyRun
	}
	a.ran = true
	a.mu.Unlock()

	if err := a.Setup(); err != nil {
		return err
	}

	started := make([]Bridge, 0, len(a.bridges))
	for _, b := range a.bridges {
		if err := b.Start(ctx); err != nil {
			stopBridges(started, a.logger)
			return fmt.Errorf("failed to start %s bridge: %w", b.Name(), err)
		}
		a.logger.Infof("Started %s bridge", b.Name())
		started = append(started, b)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		stopBridges(started, a.logger)
		return err
	}

	if a.webAddr != "" {
		a.startWeb()
	}

	<-ctx.Done()
	a.logger.Infof("Shutting down %s...", a.name)

	a.scheduler.Stop()
	errs := stopBridges(started, a.logger)

	if a.web != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.web.ShutdownWithContext(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("web server shutdown: %w", err))
		}
	}

	a.logger.Infof("%s exited", a.name)
	return errors.Join(errs...)
}

// Setup builds, configures and initializes every node and connects the
// graph edges. Run calls it; later calls return the result of the first.
func (a *Application) Setup() error {
	if err := a.checkModules(); err != nil {
		return err
	}

	a.mu.Lock()
	if a.setUp {
		err := a.setUpErr
		a.mu.Unlock()
		return err
	}
	a.setUp = true
	a.mu.Unlock()

	err := a.setup()
	if err != nil {
		a.mu.Lock()
		a.setUpErr = err
		a.mu.Unlock()
	}
	return err
}

func (a *Application) setup() error {
	for _, name := range a.nodeNames() {
		n, err := a.buildNode(name)
		if err != nil {
			return err
		}
		if err := n.codelet.Initialize(n.ctx); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", name, err)
		}
		if err := a.scheduler.Add(name, n.codelet, n.ctx); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
		a.mu.Lock()
		a.nodes = append(a.nodes, n)
		a.mu.Unlock()
	}

	if a.graph != nil {
		for _, edge := range a.graph.Edges {
			if err := a.hub.Connect(edge.Source, edge.Target); err != nil {
				return fmt.Errorf("failed to connect %s -> %s: %w", edge.Source, edge.Target, err)
			}
		}
	}
	return nil
}

func (a *Application) checkModules() error {
	known := make(map[string]bool)
	for _, c := range a.components {
		known[c.Module] = true
	}
	for _, m := range a.modules {
		if !known[m] {
			return fmt.Errorf("%w: %s", ErrUnknownModule, m)
		}
	}
	return nil
}

// nodeNames lists graph nodes in file order followed by registered nodes
// missing from the graph.
func (a *Application) nodeNames() []string {
	var names []string
	seen := make(map[string]bool)
	if a.graph != nil {
		for _, n := range a.graph.Nodes {
			names = append(names, n.Name)
			seen[n.Name] = true
		}
	}
	for _, name := range a.order {
		if !seen[name] {
			names = append(names, name)
		}
	}
	return names
}

func (a *Application) buildNode(name string) (*node, error) {
	n := &node{name: name}

	factory, ok := a.factories[name]
	if ok {
		n.component = "registered"
	} else {
		var componentName string
		if a.graph != nil {
			if gn, found := a.graph.GetNode(name); found {
				componentName = gn.Component
			}
		}
		if componentName == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnregisteredNode, name)
		}
		component, err := a.component(componentName)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", name, err)
		}
		factory = component.New
		n.component = componentName
	}

	c, err := factory(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	n.codelet = c
	n.ctx = codelet.NewContext(name, a.logger, a.hub, a.sight)

	var paramSet codelet.ParamSet
	if p, ok := c.(codelet.Parameterized); ok {
		paramSet = p.Params()
		n.hasParams = true
		doc, exists, err := a.appConfig.Params(name)
		if err != nil {
			return nil, err
		}
		if exists {
			if err := paramSet.Patch(doc); err != nil {
				return nil, fmt.Errorf("config of %s: %w", name, err)
			}
		}
	}
	a.params.Register(name, paramSet)
	return n, nil
}

// component resolves a component among the loaded modules.
func (a *Application) component(name string) (codelet.Component, error) {
	c, ok := a.components[name]
	if !ok {
		return codelet.Component{}, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	for _, m := range a.modules {
		if m == c.Module {
			return c, nil
		}
	}
	return codelet.Component{}, fmt.Errorf("%w: %s (module %s not loaded)", ErrUnknownComponent, name, c.Module)
}

// NodeInfos describes every node for the web API.
func (a *Application) NodeInfos() []api.NodeInfo {
	a.mu.RLock()
	nodes := a.nodes
	a.mu.RUnlock()

	endpoints := a.hub.Endpoints()
	infos := make([]api.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		info := api.NodeInfo{
			Name:      n.name,
			Component: n.component,
			HasParams: n.hasParams,
			Channels:  []string{},
		}
		if job, ok := a.scheduler.Job(n.name); ok {
			info.Schedule = string(job.Mode)
			info.Metrics = job.Metrics
			if job.Period != "" {
				info.Schedule += " " + job.Period
			} else if job.Channel != "" {
				info.Schedule += " " + job.Channel
			}
		}
		for _, e := range endpoints {
			if strings.HasPrefix(e.Name(), n.name+"/") {
				info.Channels = append(info.Channels, e.Name())
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (a *Application) startWeb() {
	diag := diagnostic.NewDiagnosticService(a.scheduler, a.logger)
	a.web = api.NewServer(api.Deps{
		AppName:     a.name,
		Nodes:       a,
		Params:      a.params,
		Sight:       a.sight,
		Hub:         a.hub,
		Diagnostics: diag.GetMetricsHandler,
		Logger:      a.logger,
	})

	go func() {
		a.logger.Infof("Web server starting on %s", a.webAddr)
		if err := a.web.Listen(a.webAddr); err != nil {
			a.logger.Errorf("Web server stopped: %v", err)
		}
	}()
}

func stopBridges(bridges []Bridge, logger customlog.Logger) []error {
	var errs []error
	for i := len(bridges) - 1; i >= 0; i-- {
		if err := bridges[i].Stop(); err != nil {
			logger.Errorf("Error stopping %s bridge: %v", bridges[i].Name(), err)
			errs = append(errs, err)
		}
	}
	return errs
}
