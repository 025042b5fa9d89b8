package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/julianstephens/carelog/internal/constants"
)

// MQTTSink publishes triggers as JSON to a broker topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

func NewMQTTSink(broker, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(constants.AppName + "-notifier")
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newMQTTSink(client, topic), nil
}

func newMQTTSink(client mqtt.Client, topic string) *MQTTSink {
	if topic == "" {
		topic = constants.DefaultMQTTTopic
	}
	return &MQTTSink{client: client, topic: topic}
}

func (m *MQTTSink) Send(ctx context.Context, t Trigger) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, 1, false, data)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", m.topic, token.Error())
	}
	return nil
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
