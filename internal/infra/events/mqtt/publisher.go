// Package mqtt publishes facility manager change events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"vivariumcore/internal/core"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxQoS                   = 2
)

var _ core.EventPublisher = (*Publisher)(nil)

// Config describes the broker connection and topic layout.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retained    bool
}

// brokerClient is the subset of pahomqtt.Client used by the publisher.
type brokerClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Publisher implements core.EventPublisher. Every event is sent as JSON to
// "{prefix}/{entity}/{action}".
type Publisher struct {
	client  brokerClient
	prefix  string
	qos     byte
	retain  bool
	timeout time.Duration
}

func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	return opts
}

// topicPrefix strips surrounding whitespace and slashes.
func topicPrefix(raw string) string {
	return strings.Trim(raw, " \t\r\n/")
}

func validate(cfg Config) error {
	if topicPrefix(cfg.TopicPrefix) == "" {
		return ErrInvalidTopic
	}
	if cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// Connect dials the broker and returns a ready publisher.
func Connect(cfg Config) (*Publisher, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	client := pahomqtt.NewClient(buildClientOptions(cfg))
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return newPublisher(client, cfg), nil
}

func newPublisher(client brokerClient, cfg Config) *Publisher {
	return &Publisher{
		client:  client,
		prefix:  topicPrefix(cfg.TopicPrefix),
		qos:     cfg.QoS,
		retain:  cfg.Retained,
		timeout: defaultPublishTimeout,
	}
}

// Topic returns the topic an event is published to.
func (p *Publisher) Topic(event core.ChangeEvent) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, event.Entity, event.Action)
}

// Publish implements core.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event core.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode event: %w", ErrPublishFailed, err)
	}
	token := p.client.Publish(p.Topic(event), p.qos, p.retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// HealthCheck reports whether the broker connection is up.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close disconnects after letting in-flight publishes drain.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	p.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}
