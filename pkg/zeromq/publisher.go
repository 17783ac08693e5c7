package zeromq

import (
	"time"

	"github.com/open-teleop/codelets/pkg/channel"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/message"
)

// Topics published on the PUB socket besides forwarded channels.
const (
	TopicParamsNotification = "params.notification"
)

// Publisher sends topic-prefixed messages.
type Publisher interface {
	PublishMessage(topic string, data []byte) error
	PublishJSON(topic string, messageType string, data interface{}) error
}

// ParamPublisher announces parameter changes
type ParamPublisher struct {
	publisher Publisher
	logger    customlog.Logger
}

// NewParamPublisher creates a new publisher for parameter updates
func NewParamPublisher(publisher Publisher, logger customlog.Logger) *ParamPublisher {
	return &ParamPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishParamsUpdatedNotification publishes a notification that the
// parameters of node changed
func (p *ParamPublisher) PublishParamsUpdatedNotification(node string) error {
	p.logger.Debugf("Publishing parameter update notification for %s", node)

	notification := map[string]interface{}{
		"node":         node,
		"last_updated": time.Now().UTC().Format(time.RFC3339Nano),
	}
	return p.publisher.PublishJSON(TopicParamsNotification, MsgTypeParamsUpdated, notification)
}

// ChannelForwarder publishes every message of selected tx channels as an
// envelope, using the channel name as topic
type ChannelForwarder struct {
	publisher Publisher
	logger    customlog.Logger
}

// NewChannelForwarder creates a forwarder
func NewChannelForwarder(publisher Publisher, logger customlog.Logger) *ChannelForwarder {
	return &ChannelForwarder{publisher: publisher, logger: logger}
}

// Attach taps each named tx channel of hub.
func (f *ChannelForwarder) Attach(hub *channel.Hub, channels []string) error {
	for _, name := range channels {
		if err := hub.Tap(name, f.Forward); err != nil {
			return err
		}
		f.logger.Infof("Forwarding %s over ZeroMQ", name)
	}
	return nil
}

// Forward encodes and publishes one message
func (f *ChannelForwarder) Forward(header channel.Header, msg interface{}) {
	contentType, payload, err := message.Marshal(msg)
	if err != nil {
		f.logger.Warnf("Cannot forward %s: %v", header.Channel, err)
		return
	}

	data := message.EncodeEnvelope(message.Envelope{
		Channel:     header.Channel,
		ID:          header.ID,
		Timestamp:   header.Timestamp,
		ContentType: contentType,
		Payload:     payload,
	})
	if err := f.publisher.PublishMessage(header.Channel, data); err != nil {
		f.logger.Debugf("Failed to forward %s: %v", header.Channel, err)
	}
}
