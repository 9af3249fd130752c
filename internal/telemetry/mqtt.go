// Package telemetry publishes the application's event stream to an MQTT
// broker so external dashboards and loggers can follow along.
package telemetry

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/msardana/leanplay/internal/event"
)

// Config configures the MQTT publisher.
type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

// publisher is the slice of mqtt.Client the Publisher needs; narrowed for
// tests.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher forwards bus events to MQTT as JSON envelopes, one topic per
// event type.
type Publisher struct {
	config Config
	client publisher
	bus    *event.Bus

	sub  chan event.Event
	done chan struct{}
}

// Connect dials the broker and returns a ready Publisher.
func Connect(config Config, bus *event.Bus) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(config.BrokerURL).
		SetClientID(config.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", config.BrokerURL, token.Error())
	}

	return newPublisher(config, client, bus), nil
}

func newPublisher(config Config, client publisher, bus *event.Bus) *Publisher {
	if config.TopicPrefix == "" {
		config.TopicPrefix = "leanplay"
	}
	return &Publisher{
		config: config,
		client: client,
		bus:    bus,
	}
}

// Start subscribes to the bus and begins forwarding events.
func (p *Publisher) Start() {
	if p.sub != nil {
		return
	}
	p.sub = p.bus.Subscribe(256)
	p.done = make(chan struct{})
	go p.run()
}

// Stop halts forwarding and disconnects from the broker.
func (p *Publisher) Stop() {
	if p.sub == nil {
		return
	}
	p.bus.Unsubscribe(p.sub)
	<-p.done
	p.sub = nil
	p.client.Disconnect(250)
}

func (p *Publisher) run() {
	defer close(p.done)

	for ev := range p.sub {
		p.publish(ev)
	}
}

func (p *Publisher) publish(ev event.Event) {
	payload, err := event.Marshal(ev)
	if err != nil {
		log.Printf("telemetry: failed to encode %s event: %v", event.TypeOf(ev), err)
		return
	}

	topic := fmt.Sprintf("%s/events/%s", p.config.TopicPrefix, event.TypeOf(ev))
	token := p.client.Publish(topic, 0, false, payload)
	if token.Wait() && token.Error() != nil {
		log.Printf("telemetry: failed to publish to %s: %v", topic, token.Error())
	}
}
