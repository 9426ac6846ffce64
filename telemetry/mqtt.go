package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher publishes bridge events as JSON to per-sensor topics:
//
//	{prefix}/{sensor_id}/reading
//	{prefix}/{sensor_id}/status
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	log    *slog.Logger
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(cfg MQTTConfig, log *slog.Logger) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("sensor-bridge: mqtt broker not configured")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetOrderMatters(false)
	opts.OnConnect = func(mqtt.Client) {
		log.Info("mqtt connected", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("sensor-bridge: connecting to mqtt broker %s: %w", cfg.Broker, tok.Error())
	}

	return &MQTTPublisher{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		log:    log.With("component", "sensor-bridge", "sink", "mqtt"),
	}, nil
}

// PublishReading publishes a reading event.
func (p *MQTTPublisher) PublishReading(r Reading) error {
	return p.publish(fmt.Sprintf("%s/%s/reading", p.prefix, r.SensorID), r)
}

// PublishStatus publishes a lifecycle status event.
func (p *MQTTPublisher) PublishStatus(s StatusEvent) error {
	return p.publish(fmt.Sprintf("%s/%s/status", p.prefix, s.SensorID), s)
}

func (p *MQTTPublisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sensor-bridge: encoding event: %w", err)
	}
	tok := p.client.Publish(topic, p.qos, false, payload)
	if tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("sensor-bridge: publishing to %s: %w", topic, tok.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages a short
// grace period.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
