package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher the subset of mqtt.Client the driver uses
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTDriver queue relay over an MQTT broker
type MQTTDriver struct {
	client   MQTTPublisher
	prefix   string
	qos      byte
	retained bool
	timeout  time.Duration
	closeFn  func()
}

// NewMQTTDriver connects to the broker and returns a driver
func NewMQTTDriver(cfg config.MQTTConfig) (*MQTTDriver, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	d := NewMQTTDriverWithClient(client, cfg)
	d.closeFn = func() { client.Disconnect(250) }
	return d, nil
}

// NewMQTTDriverWithClient wraps an already connected client
func NewMQTTDriverWithClient(client MQTTPublisher, cfg config.MQTTConfig) *MQTTDriver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTDriver{
		client:   client,
		prefix:   strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:      cfg.QoS,
		retained: cfg.Retained,
		timeout:  timeout,
	}
}

func (d *MQTTDriver) Name() string { return "mqtt" }

// Topic <prefix>/<class>/<channel with dots as levels>
func (d *MQTTDriver) Topic(ch Channel) string {
	return d.prefix + "/" + string(ch.Class) + "/" + strings.ReplaceAll(ch.Name, ".", "/")
}

func (d *MQTTDriver) Broadcast(_ context.Context, ev Event) error {
	for _, ch := range ev.Channels {
		data, err := json.Marshal(ev.Envelope(ch))
		if err != nil {
			return fmt.Errorf("encoding %s: %w", ev.Name, err)
		}
		// typing indicators must never be replayed to late subscribers
		retained := d.retained && !ev.Ephemeral
		token := d.client.Publish(d.Topic(ch), d.qos, retained, data)
		if !token.WaitTimeout(d.timeout) {
			return errors.New("mqtt publish: timeout")
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", d.Topic(ch), err)
		}
	}
	return nil
}

// Close disconnects from the broker
func (d *MQTTDriver) Close() error {
	if d.closeFn != nil {
		d.closeFn()
	}
	return nil
}
