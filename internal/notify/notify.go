// Package notify announces finished evaluations to outside listeners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/config"
	"github.com/Centaurus99/Spearmint/internal/loss"
	"github.com/Centaurus99/Spearmint/internal/params"
)

// Event describes one completed evaluation.
type Event struct {
	Location string          `json:"location"`
	Params   params.Physical `json:"params"`
	Entropy  float64         `json:"entropy"`
	Result   loss.Result     `json:"result"`
	Loss     float64         `json:"loss"`
	Time     time.Time       `json:"time"`
	RunDir   string          `json:"run_dir,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                               {}

// New returns an MQTT publisher when a broker is configured, Nop otherwise.
func New(cfg config.MQTT) (Publisher, error) {
	if cfg.Broker == "" {
		return Nop{}, nil
	}
	return DialMQTT(cfg)
}

const connectTimeout = 10 * time.Second

// MQTT publishes events as JSON with QoS 1.
type MQTT struct {
	client mqtt.Client
	topic  string
}

func DialMQTT(cfg config.MQTT) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}
	logrus.Infof("publishing evaluations to %s on %s", cfg.Broker, cfg.Topic)
	return &MQTT{client: c, topic: cfg.Topic}, nil
}

func (m *MQTT) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	token := m.client.Publish(m.topic, 1, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %s: %w", m.topic, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
