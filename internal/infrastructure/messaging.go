// services/rental/internal/infrastructure/messaging.go
package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"example.com/backstage/services/rental/config"
)

type Messaging struct {
	client     *azservicebus.Client
	sender     *azservicebus.Sender
	maxRetries int
	retryDelay time.Duration
}

func NewMessaging(cfg config.ServiceBusConfig) (*Messaging, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}

	return &Messaging{
		client:     client,
		sender:     sender,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Publish sends message to the queue with the topic as its subject.
func (m *Messaging) Publish(ctx context.Context, topic string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	subject := topic
	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        data,
		Subject:     &subject,
		ContentType: &contentType,
		ApplicationProperties: map[string]interface{}{
			"topic":     topic,
			"timestamp": time.Now().Unix(),
		},
	}
	if id := messageID(message); id != "" {
		msg.MessageID = &id
	}

	for attempt := 0; ; attempt++ {
		err = m.sender.SendMessage(ctx, msg, nil)
		if err == nil || attempt >= m.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.retryDelay * time.Duration(attempt+1)):
		}
	}
	if err != nil {
		return fmt.Errorf("failed to send %s message: %w", topic, err)
	}
	return nil
}

// messageID lets the broker deduplicate republished events.
func messageID(message interface{}) string {
	if identified, ok := message.(interface{ MessageID() string }); ok {
		return identified.MessageID()
	}
	return ""
}

func (m *Messaging) Close() error {
	if m.sender != nil {
		if err := m.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	if m.client != nil {
		return m.client.Close(context.Background())
	}

	return nil
}
