package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wagerledger/events"

	log "github.com/sirupsen/logrus"
)

// MessagePublisher writes one message with a deduplication id
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
}

// EventEnvelope is the wire form of a forwarded event
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventPublisher forwards committed events to NATS
type NATSEventPublisher struct {
	client        MessagePublisher
	subjectMapper *EventSubjectMapper
	onPublished   func(eventType string)
}

// NewNATSEventPublisher creates a new NATS event publisher. onPublished may be nil.
func NewNATSEventPublisher(client MessagePublisher, subjectMapper *EventSubjectMapper, onPublished func(eventType string)) *NATSEventPublisher {
	return &NATSEventPublisher{
		client:        client,
		subjectMapper: subjectMapper,
		onPublished:   onPublished,
	}
}

// Register subscribes the publisher to every event on the bus
func (p *NATSEventPublisher) Register(bus *events.Bus) {
	bus.SubscribeAll(p.Handle)
}

// Handle is an events.Handler. Failures are logged; the ledger has already committed.
func (p *NATSEventPublisher) Handle(ctx context.Context, event events.Event) {
	if err := p.Publish(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"eventKey":  event.Key(),
		}).WithError(err).Error("Failed to forward event to NATS")
	}
}

// Publish wraps the event in an envelope keyed by the event's stable key
func (p *NATSEventPublisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       event.Key(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "wagerledger",
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := p.subjectMapper.MapEventToSubject(event)
	if err := p.client.Publish(ctx, subject, data, envelope.EventID); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	if p.onPublished != nil {
		p.onPublished(envelope.EventType)
	}

	log.WithFields(log.Fields{
		"eventType": envelope.EventType,
		"eventID":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")
	return nil
}

// EnsureEventStream creates the stream covering every published subject
func EnsureEventStream(client *NATSClient, mapper *EventSubjectMapper) error {
	return client.EnsureStream(EventStreamName, mapper.GetAllSubjects())
}
