package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dbehnke/atsc-nexus/pkg/logger"
)

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// Publisher handles MQTT event publishing
type Publisher struct {
	config Config
	log    *logger.Logger
	client paho.Client
}

// Event types for MQTT publishing

// RunEvent marks the start or end of a decode run
type RunEvent struct {
	Source    string    `json:"source"`
	State     string    `json:"state"` // "started" or "finished"
	Segments  uint64    `json:"segments"`
	Windows   uint64    `json:"windows"`
	Timestamp time.Time `json:"timestamp"`
}

// WindowEvent reports progress after a decoded interleave window
type WindowEvent struct {
	Windows   uint64    `json:"windows"`
	Segments  uint64    `json:"segments"`
	BytesOut  uint64    `json:"bytes_out"`
	Timestamp time.Time `json:"timestamp"`
}

// BranchMetricsEvent carries the per-branch best path metrics
type BranchMetricsEvent struct {
	Metrics   []float64 `json:"metrics"`
	Timestamp time.Time `json:"timestamp"`
}

// ResetEvent reports a decoder pipeline reset
type ResetEvent struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
	}
}

// Start connects the MQTT client to the broker
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}

	p.log.Info("Starting MQTT publisher",
		logger.String("broker", p.config.Broker),
		logger.String("client_id", p.config.ClientID))

	opts := paho.NewClientOptions().
		AddBroker(p.config.Broker).
		SetClientID(p.config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(10 * time.Second)
	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}
	opts.SetOnConnectHandler(func(c paho.Client) {
		p.log.Info("MQTT connected", logger.String("broker", p.config.Broker))
	})
	opts.SetConnectionLostHandler(func(c paho.Client, err error) {
		p.log.Warn("MQTT connection lost", logger.Error(err))
	})

	p.client = paho.NewClient(opts)

	token := p.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Stop disconnects the MQTT client
func (p *Publisher) Stop() {
	if !p.config.Enabled || p.client == nil {
		return
	}

	p.log.Info("Stopping MQTT publisher")
	p.client.Disconnect(250)
}

// PublishRun publishes a run start or finish event
func (p *Publisher) PublishRun(event RunEvent) error {
	if !p.config.Enabled {
		return nil
	}

	topic := p.formatTopic("runs")
	return p.publish(topic, event)
}

// PublishWindow publishes a window progress event
func (p *Publisher) PublishWindow(event WindowEvent) error {
	if !p.config.Enabled {
		return nil
	}

	topic := p.formatTopic("decoder/window")
	return p.publish(topic, event)
}

// PublishBranchMetrics publishes the current branch metrics
func (p *Publisher) PublishBranchMetrics(event BranchMetricsEvent) error {
	if !p.config.Enabled {
		return nil
	}

	topic := p.formatTopic("decoder/metrics")
	return p.publish(topic, event)
}

// PublishReset publishes a pipeline reset event
func (p *Publisher) PublishReset(event ResetEvent) error {
	if !p.config.Enabled {
		return nil
	}

	topic := p.formatTopic("decoder/reset")
	return p.publish(topic, event)
}

// publish publishes an event to a topic
func (p *Publisher) publish(topic string, event interface{}) error {
	payload, err := p.serializeEvent(event)
	if err != nil {
		p.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	if p.client == nil || !p.client.IsConnectionOpen() {
		// Drop rather than block the decode pipeline on a dead broker
		p.log.Debug("MQTT not connected, dropping event",
			logger.String("topic", topic))
		return nil
	}

	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.log.Warn("MQTT publish failed",
				logger.String("topic", topic),
				logger.Error(err))
		}
	}()

	return nil
}

// serializeEvent serializes an event to JSON
func (p *Publisher) serializeEvent(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}
