package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"

	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
)

// Common errors
var (
	ErrServiceClosed      = errors.New("zeromq service is closed")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Message types
const (
	MsgTypeParamsRequest  = "PARAMS_REQUEST"
	MsgTypeParamsResponse = "PARAMS_RESPONSE"
	MsgTypeParamsUpdate   = "PARAMS_UPDATE"
	MsgTypeParamsUpdated  = "PARAMS_UPDATED"
	MsgTypeEnvelope       = "ENVELOPE"
	MsgTypeAck            = "ACK"
	MsgTypeError          = "ERROR"
)

const pollTimeout = 500 * time.Millisecond

// ZeroMQMessage represents a generic message structure for ZeroMQ communication
type ZeroMQMessage struct {
	Type      string          `json:"type"`
	Timestamp float64         `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrorResponse represents an error response message
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageHandler defines the interface for handlers that process specific message types
type MessageHandler interface {
	HandleMessage(msg ZeroMQMessage) ([]byte, error)
}

// HandlerFunc is a function type that implements MessageHandler
type HandlerFunc func(msg ZeroMQMessage) ([]byte, error)

// HandleMessage calls the function
func (f HandlerFunc) HandleMessage(msg ZeroMQMessage) ([]byte, error) {
	return f(msg)
}

// EnvelopeSink receives decoded envelopes, typically a channel.Hub.
type EnvelopeSink interface {
	DeliverEnvelope(env message.Envelope) error
}

// NewResponse builds a JSON response of the given type.
func NewResponse(msgType string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s data: %w", msgType, err)
	}
	resp, err := json.Marshal(ZeroMQMessage{
		Type:      msgType,
		Timestamp: float64(time.Now().Unix()),
		Data:      raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}
	return resp, nil
}

// MessageReceiver answers requests on a REP socket
type MessageReceiver struct {
	socket     *zmq4.Socket
	dispatcher *MessageDispatcher
	poller     *zmq4.Poller
	logger     customlog.Logger
	running    atomic.Bool
	wg         sync.WaitGroup
}

// newMessageReceiver creates a new MessageReceiver bound to address
func newMessageReceiver(ctx *zmq4.Context, address string, dispatcher *MessageDispatcher, logger customlog.Logger) (*MessageReceiver, error) {
	socket, err := ctx.NewSocket(zmq4.REP)
	if err != nil {
		return nil, fmt.Errorf("failed to create REP socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	const socketTimeout = 1 * time.Second
	if err := socket.SetRcvtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSndtimeo(socketTimeout); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set send timeout: %w", err)
	}

	poller := zmq4.NewPoller()
	poller.Add(socket, zmq4.POLLIN)

	logger.Infof("MessageReceiver initialized on %s", address)

	return &MessageReceiver{
		socket:     socket,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     logger,
	}, nil
}

// Start begins the message receiving loop
func (r *MessageReceiver) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.logger.Infof("MessageReceiver started")

		for r.running.Load() {
			sockets, err := r.poller.Poll(pollTimeout)
			if err != nil {
				if r.running.Load() {
					r.logger.Errorf("Error polling socket: %v", err)
				}
				continue
			}
			if len(sockets) == 0 {
				continue
			}

			msg, err := r.socket.RecvBytes(0)
			if err != nil {
				if r.running.Load() {
					r.logger.Errorf("Error receiving message: %v", err)
				}
				continue
			}
			r.logger.Debugf("Received request (%d bytes)", len(msg))

			response := r.dispatcher.Respond(msg)
			if _, err := r.socket.SendBytes(response, 0); err != nil && r.running.Load() {
				r.logger.Errorf("Error sending response: %v", err)
			}
		}
	}()
}

// Stop halts the loop and closes the socket
func (r *MessageReceiver) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	r.wg.Wait()
	r.socket.Close()
	r.logger.Infof("MessageReceiver stopped")
}

// MessageSender publishes topic-prefixed messages on a PUB socket
type MessageSender struct {
	socket  *zmq4.Socket
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// newMessageSender creates a new MessageSender bound to address
func newMessageSender(ctx *zmq4.Context, address string, logger customlog.Logger) (*MessageSender, error) {
	socket, err := ctx.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}

	if err := socket.Bind(address); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to bind to %s: %w", address, err)
	}

	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set linger option: %w", err)
	}

	logger.Infof("MessageSender initialized on %s", address)

	return &MessageSender{
		socket:  socket,
		logger:  logger,
		running: true,
	}, nil
}

// PublishMessage sends a message with the given topic
func (s *MessageSender) PublishMessage(topic string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServiceClosed
	}

	if _, err := s.socket.Send(topic, zmq4.SNDMORE); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if _, err := s.socket.SendBytes(data, 0); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close cleans up resources
func (s *MessageSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
}

// MessageDispatcher routes requests to the appropriate handlers
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	sink     EnvelopeSink
	logger   customlog.Logger
	mu       sync.RWMutex
}

// NewMessageDispatcher creates a new message dispatcher. Raw envelopes are
// delivered to sink when it is not nil.
func NewMessageDispatcher(sink EnvelopeSink, logger customlog.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		sink:     sink,
		logger:   logger,
	}
}

// RegisterHandler adds a handler for a specific message type
func (d *MessageDispatcher) RegisterHandler(messageType string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[messageType] = handler
	d.logger.Debugf("Registered handler for message type: %s", messageType)
}

// Dispatch processes a request and routes it to the appropriate handler.
// Requests that are not JSON are treated as raw message envelopes.
func (d *MessageDispatcher) Dispatch(data []byte) ([]byte, error) {
	var msg ZeroMQMessage
	if err := json.Unmarshal(data, &msg); err == nil {
		d.logger.Debugf("Dispatching JSON message of type: %s", msg.Type)
		d.mu.RLock()
		handler, exists := d.handlers[msg.Type]
		d.mu.RUnlock()

		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
		}
		return handler.HandleMessage(msg)
	}

	return d.handleRawEnvelope(data)
}

// Respond dispatches a request and always returns a reply, an ERROR
// message when dispatching failed.
func (d *MessageDispatcher) Respond(data []byte) []byte {
	response, err := d.Dispatch(data)
	if err == nil {
		return response
	}

	d.logger.Warnf("Error dispatching message: %v", err)
	code := 500
	if errors.Is(err, ErrUnknownMessageType) || errors.Is(err, ErrInvalidMessage) {
		code = 400
	}
	errData, mErr := NewResponse(MsgTypeError, ErrorResponse{Message: err.Error(), Code: code})
	if mErr != nil {
		return []byte(`{"type":"ERROR"}`)
	}
	return errData
}

// DeliverEnvelope decodes an envelope and hands it to the sink.
func (d *MessageDispatcher) DeliverEnvelope(data []byte) (message.Envelope, error) {
	env, err := message.DecodeEnvelope(data)
	if err != nil {
		return message.Envelope{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if d.sink == nil {
		return env, fmt.Errorf("no envelope sink for channel %s", env.Channel)
	}
	if err := d.sink.DeliverEnvelope(env); err != nil {
		return env, fmt.Errorf("failed to deliver envelope to %s: %w", env.Channel, err)
	}
	return env, nil
}

func (d *MessageDispatcher) handleRawEnvelope(data []byte) ([]byte, error) {
	env, err := d.DeliverEnvelope(data)
	if err != nil {
		return nil, err
	}
	d.logger.Debugf("Delivered raw envelope: channel='%s', type=%s, payload=%d bytes",
		env.Channel, env.ContentType, len(env.Payload))

	return NewResponse(MsgTypeAck, map[string]interface{}{
		"status":  "OK",
		"channel": env.Channel,
		"id":      env.ID,
	})
}

// ZeroMQService owns the ZeroMQ context and the REP and PUB sockets
type ZeroMQService struct {
	ctx        *zmq4.Context
	receiver   *MessageReceiver
	sender     *MessageSender
	dispatcher *MessageDispatcher
	logger     customlog.Logger
	running    bool
	mu         sync.Mutex
}

// NewZeroMQService creates the service sockets. The REP socket is created
// only when cfg.RequestBindAddress is set.
func NewZeroMQService(cfg config.ZeroMQConfig, dispatcher *MessageDispatcher, logger customlog.Logger) (*ZeroMQService, error) {
	ctx, err := zmq4.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create ZMQ context: %w", err)
	}

	var receiver *MessageReceiver
	if cfg.RequestBindAddress != "" {
		receiver, err = newMessageReceiver(ctx, cfg.RequestBindAddress, dispatcher, logger)
		if err != nil {
			ctx.Term()
			return nil, err
		}
	}

	sender, err := newMessageSender(ctx, cfg.PublishBindAddress, logger)
	if err != nil {
		if receiver != nil {
			receiver.socket.Close()
		}
		ctx.Term()
		return nil, err
	}

	return &ZeroMQService{
		ctx:        ctx,
		receiver:   receiver,
		sender:     sender,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Context returns the ZeroMQ context for additional sockets.
func (s *ZeroMQService) Context() *zmq4.Context {
	return s.ctx
}

// RegisterHandler adds a handler for a specific message type
func (s *ZeroMQService) RegisterHandler(messageType string, handler MessageHandler) {
	s.dispatcher.RegisterHandler(messageType, handler)
}

// Start begins answering requests
func (s *ZeroMQService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.logger.Infof("Starting ZeroMQ service")

	if s.receiver != nil {
		s.receiver.Start()
	}
}

// Stop closes the sockets and terminates the context. Sockets created from
// Context must be closed before.
func (s *ZeroMQService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return
	}
	s.logger.Infof("Stopping ZeroMQ service")
	s.running = false

	if s.receiver != nil {
		s.receiver.Stop()
	}
	s.sender.Close()

	if err := s.ctx.Term(); err != nil {
		s.logger.Warnf("Error terminating ZMQ context: %v", err)
	}
	s.ctx = nil
	s.logger.Infof("ZeroMQ service stopped")
}

// PublishMessage sends a message with the given topic
func (s *ZeroMQService) PublishMessage(topic string, data []byte) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		return ErrServiceClosed
	}
	return s.sender.PublishMessage(topic, data)
}

// PublishJSON publishes a JSON-serializable message with the given topic
func (s *ZeroMQService) PublishJSON(topic string, messageType string, data interface{}) error {
	msgData, err := NewResponse(messageType, data)
	if err != nil {
		return err
	}
	return s.PublishMessage(topic, msgData)
}
