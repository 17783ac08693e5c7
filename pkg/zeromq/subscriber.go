package zeromq

import (
	"fmt"
	"sync"
	"sync/atomic"

	zmq "github.com/pebbe/zmq4"

	customlog "github.com/open-teleop/codelets/pkg/log"
)

// Subscriber receives envelopes published by other processes and delivers
// them into local rx channels
type Subscriber struct {
	socket     *zmq.Socket
	dispatcher *MessageDispatcher
	logger     customlog.Logger
	running    atomic.Bool
	wg         sync.WaitGroup
}

// NewSubscriber creates a SUB socket connected to address, subscribed to
// every topic
func NewSubscriber(ctx *zmq.Context, address string, dispatcher *MessageDispatcher, logger customlog.Logger) (*Subscriber, error) {
	socket, err := ctx.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}

	if err := socket.SetSubscribe(""); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}
	if err := socket.SetRcvtimeo(pollTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.Connect(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return &Subscriber{
		socket:     socket,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Start begins receiving
func (s *Subscriber) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.receiveLoop()
	s.logger.Infof("ZeroMQ subscriber started")
}

// Stop waits for the receive loop and closes the socket
func (s *Subscriber) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		s.socket.Close()
		return
	}
	s.wg.Wait()
	s.socket.Close()
}

// receiveLoop expects [topic, envelope] multipart messages; single frames are
// taken as a bare envelope
func (s *Subscriber) receiveLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		frames, err := s.socket.RecvMessageBytes(0)
		if err != nil {
			// receive timeouts land here too
			continue
		}
		if len(frames) == 0 {
			continue
		}

		env, err := s.dispatcher.DeliverEnvelope(frames[len(frames)-1])
		if err != nil {
			s.logger.Warnf("Dropped inbound message: %v", err)
			continue
		}
		s.logger.Debugf("Received %s from bus", env.Channel)
	}
}
