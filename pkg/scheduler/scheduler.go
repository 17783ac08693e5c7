// Package scheduler drives codelet activations according to the tick mode
// each codelet requested during Initialize.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-teleop/codelets/pkg/codelet"
	customlog "github.com/open-teleop/codelets/pkg/log"
)

// Common errors
var (
	ErrRunning       = errors.New("scheduler already running")
	ErrDuplicateNode = errors.New("node already scheduled")
)

// JobMetrics tracks activations of one codelet.
type JobMetrics struct {
	ActivationCount   int64 `json:"activation_count"`
	ErrorCount        int64 `json:"error_count"`
	LastActivation    int64 `json:"last_activation"`
	ActivationTimeAvg int64 `json:"activation_time_avg_us"`
	ActivationTimeMax int64 `json:"activation_time_max_us"`
}

// JobInfo describes a scheduled codelet.
type JobInfo struct {
	Node    string           `json:"node"`
	Mode    codelet.TickMode `json:"tick_mode"`
	Period  string           `json:"period,omitempty"`
	Channel string           `json:"channel,omitempty"`
	Metrics JobMetrics       `json:"metrics"`
}

type job struct {
	node     string
	codelet  codelet.Codelet
	ctx      *codelet.Context
	schedule codelet.Schedule

	mu      sync.Mutex
	metrics JobMetrics
}

// Scheduler runs one goroutine per codelet. Activations of the same codelet
// are sequential.
type Scheduler struct {
	logger  customlog.Logger
	jobs    []*job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// New creates an empty scheduler.
func New(logger customlog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add schedules an initialized codelet with the tick mode recorded in ctx.
func (s *Scheduler) Add(node string, c codelet.Codelet, ctx *codelet.Context) error {
	schedule, err := ctx.Schedule()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("%w: cannot add %s", ErrRunning, node)
	}
	for _, j := range s.jobs {
		if j.node == node {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, node)
		}
	}

	s.jobs = append(s.jobs, &job{node: node, codelet: c, ctx: ctx, schedule: schedule})
	return nil
}

// Start launches every job. Jobs stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}
	s.running = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Infof("Starting scheduler with %d codelets", len(s.jobs))
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.run(runCtx, j)
	}
	return nil
}

// Stop cancels all jobs, waits for in-flight activations, then stops every
// codelet implementing codelet.Stopper.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	jobs := s.jobs
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	for _, j := range jobs {
		if stopper, ok := j.codelet.(codelet.Stopper); ok {
			if err := stopper.Stop(j.ctx); err != nil {
				s.logger.Errorf("Error stopping %s: %v", j.node, err)
			}
		}
		m := j.snapshot()
		s.logger.Infof("%s metrics: activations=%d, errors=%d, avg_time=%dµs, max_time=%dµs",
			j.node, m.ActivationCount, m.ErrorCount, m.ActivationTimeAvg, m.ActivationTimeMax)
	}
	s.logger.Infof("Scheduler stopped")
}

// IsRunning reports whether Start was called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs returns the scheduled codelets sorted by node.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	jobs := s.jobs
	s.mu.Unlock()

	out := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		info := JobInfo{
			Node:    j.node,
			Mode:    j.schedule.Mode,
			Channel: j.schedule.Channel,
			Metrics: j.snapshot(),
		}
		if j.schedule.Mode == codelet.TickPeriodic {
			info.Period = j.schedule.Period.String()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Node < out[b].Node })
	return out
}

// Job returns the info of one node.
func (s *Scheduler) Job(node string) (JobInfo, bool) {
	for _, info := range s.Jobs() {
		if info.Node == node {
			return info, true
		}
	}
	return JobInfo{}, false
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.wg.Done()

	switch j.schedule.Mode {
	case codelet.TickPeriodic:
		s.logger.Debugf("%s ticking every %s", j.node, j.schedule.Period)
		ticker := time.NewTicker(j.schedule.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.activate(j)
			}
		}
	case codelet.TickOnMessage:
		s.logger.Debugf("%s ticking on %s", j.node, j.schedule.Channel)
		for {
			select {
			case <-ctx.Done():
				return
			case <-j.schedule.Trigger:
				s.activate(j)
			}
		}
	}
}

func (s *Scheduler) activate(j *job) {
	startTime := time.Now()
	err := j.codelet.OnActivation(j.ctx)
	activationTime := time.Since(startTime).Microseconds()

	j.mu.Lock()
	j.metrics.ActivationCount++
	j.metrics.LastActivation = time.Now().UnixNano()
	if j.metrics.ActivationTimeAvg == 0 {
		j.metrics.ActivationTimeAvg = activationTime
	} else {
		j.metrics.ActivationTimeAvg = (j.metrics.ActivationTimeAvg + activationTime) / 2
	}
	if activationTime > j.metrics.ActivationTimeMax {
		j.metrics.ActivationTimeMax = activationTime
	}
	if err != nil {
		j.metrics.ErrorCount++
	}
	j.mu.Unlock()

	if err != nil {
		j.ctx.Logger().Errorf("Activation failed: %v", err)
	}
}

func (j *job) snapshot() JobMetrics {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.metrics
}
