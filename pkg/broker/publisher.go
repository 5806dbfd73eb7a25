package broker

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// IPublisher is the publishing contract used by the services.
type IPublisher interface {
	// PublishMessage sends a payload to the publisher's default topic.
	PublishMessage(payload string) error
	// PublishToQos sends a payload to an explicit topic with an explicit QoS.
	PublishToQos(topic string, qos byte, retained bool, payload string) error
	Close()
}

// Publisher publishes to a fixed default topic over a shared MQTT client.
type Publisher struct {
	client mqtt.Client
	topic  string
	log    *zap.SugaredLogger
}

func NewPublisher(client mqtt.Client, topic string, log *zap.SugaredLogger) *Publisher {
	return &Publisher{client: client, topic: topic, log: log}
}

// PublishMessage publishes to the default topic with the QoS the topic family
// requires.
func (p *Publisher) PublishMessage(payload string) error {
	return p.PublishToQos(p.topic, qosFor(p.topic), false, payload)
}

func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, payload string) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}
	p.log.Debugf("published to %s (qos=%d, %d bytes)", topic, qos, len(payload))
	return nil
}

// Close disconnects the underlying MQTT client.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		p.log.Info("MQTT publisher disconnected")
	}
}
