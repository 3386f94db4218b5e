// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Thermoquad/noolite/internal/config"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	keepAlive         = 60 * time.Second
)

// ErrConnectFailed is returned when the broker cannot be reached
var ErrConnectFailed = errors.New("mqtt connect failed")

// MessageHandler receives messages on a subscribed topic
type MessageHandler func(topic string, payload []byte)

// Client is the subset of an MQTT client the bridge uses
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, h MessageHandler) error
	Close() error
}

// PahoClient is a Client backed by paho.mqtt.golang. Subscriptions are
// restored after every reconnect.
type PahoClient struct {
	client pahomqtt.Client
	log    *zap.Logger
	status string

	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// ClientID returns a broker-unique client id with the given prefix
func ClientID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Dial connects to the broker. The last will marks the bridge offline on
// the status topic under cfg.TopicPrefix.
func Dial(cfg config.MQTTConfig, log *zap.Logger) (*PahoClient, error) {
	c := &PahoClient{
		log:    log,
		status: Topics{Prefix: cfg.TopicPrefix}.Status(),
		subs:   make(map[string]subscription),
	}

	clientID := ClientID(cfg.ClientIDPrefix)
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(c.status, StatusOffline, cfg.QoS, true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		log.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.String("client_id", clientID))
		c.restoreSubscriptions()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectFailed, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return c, nil
}

// Publish sends payload and waits for the broker to acknowledge it
func (c *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers h for topic, which may contain wildcards
func (c *PahoClient) Subscribe(topic string, qos byte, h MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: h}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrap(h))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Close marks the bridge offline and disconnects
func (c *PahoClient) Close() error {
	if c.client.IsConnected() {
		c.client.Publish(c.status, 1, true, StatusOffline).WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	return nil
}

func (c *PahoClient) restoreSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, sub := range c.subs {
		c.client.Subscribe(topic, sub.qos, c.wrap(sub.handler))
	}
}

// wrap adapts h to paho and recovers handler panics
func (c *PahoClient) wrap(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("mqtt handler panicked", zap.String("topic", msg.Topic()), zap.Any("panic", r))
			}
		}()
		h(msg.Topic(), msg.Payload())
	}
}
