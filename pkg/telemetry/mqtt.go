// Package telemetry publishes Sight samples to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/sight"
)

const (
	subscriberBuffer  = 256
	publishTimeout    = 2 * time.Second
	disconnectQuiesce = 250
)

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Payload is the JSON body of a published sample.
type Payload struct {
	Node      string      `json:"node"`
	Name      string      `json:"name"`
	Value     interface{} `json:"value"`
	Timestamp float64     `json:"timestamp"`
}

// Publisher streams every sample shown in a sight store to
// <prefix>/<node>/<name>.
type Publisher struct {
	cfg    config.MQTTConfig
	store  *sight.Store
	client Client
	logger customlog.Logger

	cancel func()
	wg     sync.WaitGroup

	mu        sync.Mutex
	published int64
	failed    int64
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClient replaces the paho client.
func WithClient(c Client) Option {
	return func(p *Publisher) { p.client = c }
}

// NewPublisher creates a publisher. The broker is not contacted until Start.
func NewPublisher(cfg config.MQTTConfig, store *sight.Store, logger customlog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		store:  store,
		logger: logger.WithField("bridge", "mqtt"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = newPahoClient(cfg, p.logger)
	}
	return p
}

func newPahoClient(cfg config.MQTTConfig, logger customlog.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Infof("Connected to MQTT broker %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost: %v", err)
	}
	return mqtt.NewClient(opts)
}

// Name identifies the bridge in logs.
func (p *Publisher) Name() string { return "mqtt" }

// Topic returns the topic a sample is published on.
func (p *Publisher) Topic(node, name string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.TopicPrefix, node, name)
}

// Start connects and begins forwarding samples.
func (p *Publisher) Start(ctx context.Context) error {
	token := p.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		// SetConnectRetry keeps trying in the background
		p.logger.Warnf("MQTT broker %s not reachable yet", p.cfg.Broker)
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	samples, cancel := p.store.Subscribe(subscriberBuffer)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx, samples)
	return nil
}

// Stop unsubscribes and disconnects.
func (p *Publisher) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil

	p.client.Disconnect(disconnectQuiesce)
	published, failed := p.Stats()
	p.logger.Infof("MQTT publisher stopped: published=%d, failed=%d", published, failed)
	return nil
}

// Stats returns the number of published and failed samples.
func (p *Publisher) Stats() (published, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.failed
}

func (p *Publisher) run(ctx context.Context, samples <-chan sight.Sample) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			p.publish(sample)
		}
	}
}

func (p *Publisher) publish(sample sight.Sample) {
	payload, err := json.Marshal(Payload{
		Node:      sample.Node,
		Name:      sample.Name,
		Value:     sample.Value,
		Timestamp: float64(sample.Timestamp.UnixNano()) / 1e9,
	})
	if err == nil {
		token := p.client.Publish(p.Topic(sample.Node, sample.Name), byte(p.cfg.QoS), false, payload)
		if token.WaitTimeout(publishTimeout) {
			err = token.Error()
		} else {
			err = fmt.Errorf("publish timed out")
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failed++
		p.logger.Debugf("Failed to publish %s/%s: %v", sample.Node, sample.Name, err)
		return
	}
	p.published++
}
