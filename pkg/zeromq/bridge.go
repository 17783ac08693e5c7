package zeromq

import (
	"context"
	"fmt"

	"github.com/open-teleop/codelets/pkg/channel"
	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
)

// Bridge connects the channel hub to a ZeroMQ bus: forwarded tx channels are
// published, inbound envelopes are delivered to rx channels and parameter
// requests are answered.
type Bridge struct {
	cfg        config.ZeroMQConfig
	hub        *channel.Hub
	service    *ZeroMQService
	dispatcher *MessageDispatcher
	subscriber *Subscriber
	publisher  *ParamPublisher
	logger     customlog.Logger
}

// NewBridge creates the sockets. params may be nil.
func NewBridge(cfg config.ZeroMQConfig, hub *channel.Hub, params ParamStore, logger customlog.Logger) (*Bridge, error) {
	logger = logger.WithField("bridge", "zeromq")

	dispatcher := NewMessageDispatcher(hub, logger)
	if err := RegisterParamsHandlers(dispatcher, params, logger); err != nil {
		return nil, err
	}

	service, err := NewZeroMQService(cfg, dispatcher, logger)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:        cfg,
		hub:        hub,
		service:    service,
		dispatcher: dispatcher,
		publisher:  NewParamPublisher(service, logger),
		logger:     logger,
	}

	if cfg.SubscribeConnectAddress != "" {
		b.subscriber, err = NewSubscriber(service.Context(), cfg.SubscribeConnectAddress, dispatcher, logger)
		if err != nil {
			service.Stop()
			return nil, err
		}
	}

	return b, nil
}

// Name identifies the bridge in logs.
func (b *Bridge) Name() string { return "zeromq" }

// ParamPublisher returns the notifier for parameter updates.
func (b *Bridge) ParamPublisher() *ParamPublisher { return b.publisher }

// Start attaches the forwarded channels and starts the sockets. Channels
// must be declared before.
func (b *Bridge) Start(ctx context.Context) error {
	channels := b.cfg.Forward
	if len(channels) == 0 {
		for _, e := range b.hub.Endpoints() {
			if e.Direction() == channel.DirectionTx {
				channels = append(channels, e.Name())
			}
		}
	}

	forwarder := NewChannelForwarder(b.service, b.logger)
	if err := forwarder.Attach(b.hub, channels); err != nil {
		return fmt.Errorf("failed to forward channels: %w", err)
	}

	b.service.Start()
	if b.subscriber != nil {
		b.subscriber.Start()
	}
	return nil
}

// Stop closes every socket.
func (b *Bridge) Stop() error {
	if b.subscriber != nil {
		b.subscriber.Stop()
	}
	b.service.Stop()
	return nil
}
