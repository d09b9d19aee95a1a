// services/rental/internal/core/events.go
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"example.com/backstage/services/rental/internal/metrics"
)

// Event topics.
const (
	TopicTenantCreated     = "tenant.created"
	TopicLeaseSigned       = "lease.signed"
	TopicPaymentRecorded   = "payment.recorded"
	TopicPaymentWaived     = "payment.waived"
	TopicPaymentLateFee    = "payment.late_fee_added"
	TopicPaymentMarkedLate = "payment.marked_late"
	TopicTenancyEnded      = "tenancy.ended"
	TopicBookingCreated    = "booking.created"
	TopicBookingConfirmed  = "booking.confirmed"
	TopicBookingCompleted  = "booking.completed"
	TopicBookingCancelled  = "booking.cancelled"
	TopicPropertySubmitted = "property.submitted"
	TopicPropertyApproved  = "property.approved"
	TopicPropertyRejected  = "property.rejected"
	TopicUserDeleted       = "user.deleted"
	TopicScheduleGenerated = "payment.schedule_generated"
)

// EventPublisher delivers a message to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, message interface{}) error
}

// EventEnvelope is the message body placed on the bus.
type EventEnvelope struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// EventDispatcher writes events to the outbox and forwards them to the bus.
type EventDispatcher struct {
	store     Repository
	publisher EventPublisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewEventDispatcher(store Repository, publisher EventPublisher, logger *logrus.Logger, now func() time.Time) *EventDispatcher {
	return &EventDispatcher{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       now,
	}
}

// Record appends an event to the outbox using tx, so it commits or rolls
// back with the change it describes.
func (d *EventDispatcher) Record(ctx context.Context, tx Repository, topic string, aggregateID uuid.UUID, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	event := &OutboxEvent{
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     datatypes.JSON(data),
	}
	if err := tx.CreateOutboxEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record %s event: %w", topic, err)
	}
	return event, nil
}

// Dispatch publishes committed events. Failures stay in the outbox for the
// republish command.
func (d *EventDispatcher) Dispatch(ctx context.Context, events ...*OutboxEvent) {
	if d.publisher == nil {
		return
	}
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := d.publish(ctx, event); err != nil {
			d.logger.WithFields(logrus.Fields{
				"event_id": event.ID,
				"topic":    event.Topic,
				"error":    err,
			}).Warn("Event publish failed, left in outbox")
		}
	}
}

// RepublishStats summarises a republish run.
type RepublishStats struct {
	Found     int `json:"found"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Republish retries unpublished outbox events, oldest first.
func (d *EventDispatcher) Republish(ctx context.Context, limit int, dryRun bool) (RepublishStats, error) {
	var stats RepublishStats

	events, err := d.store.ListUnpublishedEvents(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("failed to list unpublished events: %w", err)
	}
	stats.Found = len(events)

	if dryRun {
		for _, event := range events {
			d.logger.WithFields(logrus.Fields{
				"event_id": event.ID,
				"topic":    event.Topic,
				"attempts": event.Attempts,
			}).Info("[DRY RUN] Would republish event")
		}
		return stats, nil
	}

	if d.publisher == nil {
		return stats, fmt.Errorf("no message bus configured")
	}

	for _, event := range events {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := d.publish(ctx, event); err != nil {
			stats.Failed++
			d.logger.WithFields(logrus.Fields{
				"event_id": event.ID,
				"topic":    event.Topic,
				"error":    err,
			}).Error("Failed to republish event")
			continue
		}
		stats.Published++
	}
	return stats, nil
}

func (d *EventDispatcher) publish(ctx context.Context, event *OutboxEvent) error {
	envelope := EventEnvelope{
		ID:          event.ID,
		Topic:       event.Topic,
		AggregateID: event.AggregateID,
		OccurredAt:  event.CreatedAt,
		Payload:     json.RawMessage(event.Payload),
	}

	if err := d.publisher.Publish(ctx, event.Topic, envelope); err != nil {
		metrics.EventsPublished.WithLabelValues("failure").Inc()
		if markErr := d.store.MarkEventFailed(ctx, event.ID, err.Error()); markErr != nil {
			d.logger.WithError(markErr).Error("Failed to record publish failure")
		}
		return err
	}

	metrics.EventsPublished.WithLabelValues("success").Inc()
	return d.store.MarkEventPublished(ctx, event.ID, d.now())
}

// MessageID is the broker deduplication id.
func (e EventEnvelope) MessageID() string {
	return e.ID.String()
}
