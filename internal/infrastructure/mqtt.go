// services/rental/internal/infrastructure/mqtt.go
package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/rental/config"
)

// MessageHandler processes MQTT messages
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

// MQTTSubscriber receives mobile-money gateway notifications. Topics look
// like payments/{provider}/{event}; the last segment selects the handler.
type MQTTSubscriber struct {
	config    config.MQTTConfig
	client    mqtt.Client
	logger    *logrus.Logger
	handlers  map[string]MessageHandler
	mu        sync.RWMutex
	connected bool
	wg        sync.WaitGroup
}

// NewMQTTSubscriber creates a new MQTT subscriber
func NewMQTTSubscriber(cfg config.MQTTConfig, logger *logrus.Logger) (*MQTTSubscriber, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("rental-service-%d", time.Now().UnixNano())
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 10 * time.Second
	}

	return &MQTTSubscriber{
		config:   cfg,
		logger:   logger,
		handlers: make(map[string]MessageHandler),
	}, nil
}

// RegisterHandler registers a handler for the last topic segment, e.g. "received".
func (s *MQTTSubscriber) RegisterHandler(event string, handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

// Start connects to MQTT broker and subscribes to topics
func (s *MQTTSubscriber) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.BrokerURL)
	opts.SetClientID(s.config.ClientID)

	if s.config.Username != "" {
		opts.SetUsername(s.config.Username)
	}
	if s.config.Password != "" {
		opts.SetPassword(s.config.Password)
	}

	opts.SetCleanSession(s.config.CleanSession)
	opts.SetKeepAlive(s.config.KeepAlive)
	opts.SetConnectTimeout(s.config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(s.config.MaxReconnectDelay)

	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetReconnectingHandler(s.onReconnecting)
	opts.SetDefaultPublishHandler(s.messageHandler)

	s.client = mqtt.NewClient(opts)

	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	s.logger.WithField("broker", s.config.BrokerURL).Info("MQTT subscriber started")
	return nil
}

// Stop unsubscribes, disconnects and waits for in-flight messages.
func (s *MQTTSubscriber) Stop() {
	s.logger.Info("Stopping MQTT subscriber...")

	if s.client != nil && s.client.IsConnected() {
		for _, topic := range s.config.Topics {
			if token := s.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
				s.logger.WithError(token.Error()).WithField("topic", topic).
					Error("Failed to unsubscribe from topic")
			}
		}
		s.client.Disconnect(250)
	}

	s.wg.Wait()
	s.logger.Info("MQTT subscriber stopped")
}

// IsConnected returns the connection status
func (s *MQTTSubscriber) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MQTTSubscriber) onConnect(client mqtt.Client) {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("Connected to MQTT broker")

	// Subscriptions are lost on reconnect with a clean session.
	for _, topic := range s.config.Topics {
		if token := client.Subscribe(topic, s.config.QoS, nil); token.Wait() && token.Error() != nil {
			s.logger.WithError(token.Error()).WithField("topic", topic).
				Error("Failed to subscribe to topic")
		} else {
			s.logger.WithField("topic", topic).Info("Subscribed to topic")
		}
	}
}

func (s *MQTTSubscriber) onConnectionLost(client mqtt.Client, err error) {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	s.logger.WithError(err).Warn("Lost connection to MQTT broker")
}

func (s *MQTTSubscriber) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	s.logger.Info("Attempting to reconnect to MQTT broker...")
}

func (s *MQTTSubscriber) messageHandler(client mqtt.Client, msg mqtt.Message) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Dispatch(msg.Topic(), msg.Payload())
	}()
}

// Dispatch routes one message to its handler with a bounded timeout.
func (s *MQTTSubscriber) Dispatch(topic string, payload []byte) error {
	event := eventType(topic)

	s.mu.RLock()
	handler, exists := s.handlers[event]
	s.mu.RUnlock()

	if !exists {
		s.logger.WithFields(logrus.Fields{
			"topic": topic,
			"event": event,
		}).Warn("No handler registered for message type")
		return fmt.Errorf("no handler for %q", event)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.HandlerTimeout)
	defer cancel()

	if err := handler(ctx, topic, payload); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"topic":        topic,
			"payload_size": len(payload),
		}).Error("Failed to process MQTT message")
		return err
	}
	return nil
}

// eventType returns the last segment of a topic.
func eventType(topic string) string {
	topic = strings.TrimSuffix(topic, "/")
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
