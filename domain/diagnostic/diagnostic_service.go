package diagnostic

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shirou/gopsutil/process"

	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/scheduler"
)

// SystemMetrics represents process diagnostics information
type SystemMetrics struct {
	Timestamp   time.Time    `json:"timestamp"`
	PID         int          `json:"pid"`
	CPUUsage    float64      `json:"cpu_usage"`    // Percentage of one CPU used by the process
	MemoryUsage float32      `json:"memory_usage"` // Percentage of system memory used by the process
	MemoryRSS   uint64       `json:"memory_rss"`
	Threads     int32        `json:"threads"`
	Goroutines  int          `json:"goroutines"`
	NodeStatus  []NodeStatus `json:"node_status"`
}

// NodeStatus represents the status of a scheduled codelet
type NodeStatus struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "active", "idle", "error"
	Activations int64  `json:"activations"`
	Errors      int64  `json:"errors"`
}

// JobSource lists the scheduled codelets.
type JobSource interface {
	Jobs() []scheduler.JobInfo
}

// DiagnosticService handles process diagnostics
type DiagnosticService struct {
	mu      sync.RWMutex
	metrics SystemMetrics
	jobs    JobSource
	proc    *process.Process
	logger  customlog.Logger
}

// NewDiagnosticService creates a new diagnostic service for the current process.
// jobs may be nil.
func NewDiagnosticService(jobs JobSource, logger customlog.Logger) *DiagnosticService {
	if logger == nil {
		logger = customlog.Discard()
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warnf("Process metrics unavailable: %v", err)
	}

	return &DiagnosticService{
		metrics: SystemMetrics{
			Timestamp:  time.Now(),
			PID:        os.Getpid(),
			NodeStatus: []NodeStatus{},
		},
		jobs:   jobs,
		proc:   proc,
		logger: logger,
	}
}

// Collect samples the process and codelet metrics.
func (s *DiagnosticService) Collect() SystemMetrics {
	metrics := SystemMetrics{
		Timestamp:  time.Now(),
		PID:        os.Getpid(),
		Goroutines: runtime.NumGoroutine(),
		NodeStatus: []NodeStatus{},
	}

	if s.proc != nil {
		if cpu, err := s.proc.CPUPercent(); err == nil {
			metrics.CPUUsage = cpu
		} else {
			s.logger.Debugf("CPU usage unavailable: %v", err)
		}
		if mem, err := s.proc.MemoryPercent(); err == nil {
			metrics.MemoryUsage = mem
		}
		if info, err := s.proc.MemoryInfo(); err == nil {
			metrics.MemoryRSS = info.RSS
		}
		if threads, err := s.proc.NumThreads(); err == nil {
			metrics.Threads = threads
		}
	}

	if s.jobs != nil {
		for _, job := range s.jobs.Jobs() {
			metrics.NodeStatus = append(metrics.NodeStatus, NodeStatus{
				Name:        job.Node,
				Status:      nodeStatus(job.Metrics),
				Activations: job.Metrics.ActivationCount,
				Errors:      job.Metrics.ErrorCount,
			})
		}
	}

	s.UpdateMetrics(metrics)
	return metrics
}

func nodeStatus(m scheduler.JobMetrics) string {
	switch {
	case m.ActivationCount == 0:
		return "idle"
	case m.ErrorCount > 0 && m.ErrorCount == m.ActivationCount:
		return "error"
	default:
		return "active"
	}
}

// GetMetricsHandler handles API requests for process metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.Collect(),
	})
}

// UpdateMetrics updates the stored metrics
func (s *DiagnosticService) UpdateMetrics(metrics SystemMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
}

// GetMetrics returns the last collected metrics
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}
