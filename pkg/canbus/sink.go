package canbus

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
)

// FrameWriter transmits CAN frames.
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// SocketCANWriter writes frames to a SocketCAN interface.
type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// NewSocketCANWriter dials iface, e.g. "can0" or "vcan0".
func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &SocketCANWriter{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

// WriteFrame transmits one frame.
func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

// Close closes the socket.
func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// Sink forwards every command published on a tx channel to the CAN bus.
// Only the most recent pending command is kept.
type Sink struct {
	cfg    config.CANConfig
	scale  Scale
	hub    *channel.Hub
	logger customlog.Logger

	writer  FrameWriter
	pending chan message.DifferentialBaseControl
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	sent    int64
	errors  int64
	running bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithWriter replaces the SocketCAN writer.
func WithWriter(w FrameWriter) Option {
	return func(s *Sink) { s.writer = w }
}

// NewSink creates a sink for cfg.Channel.
func NewSink(cfg config.CANConfig, hub *channel.Hub, logger customlog.Logger, opts ...Option) (*Sink, error) {
	scale := Scale{LinearFactor: cfg.LinearFactor, AngularFactor: cfg.AngularFactor}
	if err := scale.Validate(); err != nil {
		return nil, err
	}

	s := &Sink{
		cfg:     cfg,
		scale:   scale,
		hub:     hub,
		logger:  logger.WithField("bridge", "can"),
		pending: make(chan message.DifferentialBaseControl, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name identifies the bridge in logs.
func (s *Sink) Name() string { return "can" }

// Start dials the interface unless a writer was supplied, then taps the channel.
func (s *Sink) Start(ctx context.Context) error {
	if s.writer == nil {
		w, err := NewSocketCANWriter(ctx, s.cfg.Interface)
		if err != nil {
			return err
		}
		s.writer = w
	}

	if err := s.hub.Tap(s.cfg.Channel, s.enqueue); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx)

	s.logger.Infof("Forwarding %s to %s as frame 0x%X", s.cfg.Channel, s.cfg.Interface, s.cfg.FrameID)
	return nil
}

// Stop ends transmission and closes the writer.
func (s *Sink) Stop() error {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	if !running {
		return nil
	}
	s.cancel()
	s.wg.Wait()

	sent, errs := s.Stats()
	s.logger.Infof("CAN sink stopped: sent=%d, errors=%d", sent, errs)
	return s.writer.Close()
}

// Stats returns the number of frames sent and failed.
func (s *Sink) Stats() (sent, errors int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.errors
}

func (s *Sink) enqueue(header channel.Header, msg interface{}) {
	cmd, ok := msg.(message.DifferentialBaseControl)
	if !ok {
		return
	}
	for {
		select {
		case s.pending <- cmd:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

func (s *Sink) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.pending:
			s.send(ctx, cmd)
		}
	}
}

func (s *Sink) send(ctx context.Context, cmd message.DifferentialBaseControl) {
	frame, err := EncodeCommand(s.cfg.FrameID, s.scale, cmd)
	if err == nil {
		err = s.writer.WriteFrame(ctx, frame)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		s.logger.Warnf("Failed to send CAN frame: %v", err)
		return
	}
	s.sent++
}
