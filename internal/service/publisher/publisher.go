// Package publisher forwards collaborator events to an MQTT broker, one JSON
// message per event on <topic>/<kind>.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	"github.com/oshokin/alarm-bridge/internal/logger"
)

const (
	connectTimeout = 10 * time.Second
	// disconnectQuiesce is how long paho may finish in-flight work, in milliseconds.
	disconnectQuiesce = 250
	clientIDPrefix    = "alarm-bridge-"
)

// DefaultKinds are published when Options.Kinds is empty. Raw lines stay local.
func DefaultKinds() []domain.EventKind {
	return []domain.EventKind{
		domain.EventAlarmActivated,
		domain.EventAlarmDeactivated,
		domain.EventHandshakeComplete,
	}
}

// Options configures a Publisher.
type Options struct {
	// Broker is host:port of the MQTT broker.
	Broker string
	// Topic is the prefix every event kind is published under.
	Topic string
	// Kinds filters what is published. Empty uses DefaultKinds.
	Kinds []domain.EventKind
}

// Publisher is an MQTT collaborator.
type Publisher struct {
	opts   Options
	client mqtt.Client
}

// New creates a Publisher. Nothing connects until Run.
func New(opts Options) *Publisher {
	if len(opts.Kinds) == 0 {
		opts.Kinds = DefaultKinds()
	}

	return &Publisher{opts: opts}
}

// clientOptions builds the paho options, reconnecting on its own after a lost connection.
func (p *Publisher) clientOptions(ctx context.Context) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + p.opts.Broker)
	opts.SetClientID(clientIDPrefix + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)

	opts.OnConnect = func(mqtt.Client) {
		logger.InfoKV(ctx, "Connected to MQTT broker", "broker", p.opts.Broker, "topic", p.opts.Topic)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.WarnKV(ctx, "MQTT connection lost", "error", err)
	}

	return opts
}

// Run connects and publishes events until ctx is canceled or events is closed.
func (p *Publisher) Run(ctx context.Context, events <-chan domain.Event) error {
	ctx = logger.WithName(ctx, "mqtt")

	if p.client == nil {
		p.client = mqtt.NewClient(p.clientOptions(ctx))
	}

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to MQTT broker %s: %w", p.opts.Broker, token.Error())
	}

	defer p.client.Disconnect(disconnectQuiesce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			p.publish(ctx, ev)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev domain.Event) {
	if !slices.Contains(p.opts.Kinds, ev.Kind) {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to marshal event", "kind", ev.Kind, "error", err)

		return
	}

	topic := p.opts.Topic + "/" + string(ev.Kind)

	token := p.client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		logger.ErrorKV(ctx, "Failed to publish event", "topic", topic, "error", token.Error())

		return
	}

	logger.DebugKV(ctx, "Event published", "topic", topic)
}
