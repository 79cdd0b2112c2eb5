package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/domain"
	"github.com/prohmpiriya/booth-rush/backend-booth/internal/metrics"
	"github.com/prohmpiriya/booth-rush/pkg/kafka"
	"github.com/prohmpiriya/booth-rush/pkg/logger"
	"github.com/prohmpiriya/booth-rush/pkg/natsbus"
	"github.com/prohmpiriya/booth-rush/pkg/telemetry"
	"go.uber.org/zap"
)

// EventPublisher defines the interface for publishing venue events
type EventPublisher interface {
	// Publish sends one event
	Publish(ctx context.Context, event *domain.VenueEvent) error

	// Close releases the underlying connection
	Close() error
}

// EventPublisherConfig contains configuration for the Kafka event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

func eventHeaders(ctx context.Context, event *domain.VenueEvent, source string) map[string]string {
	headers := telemetry.InjectTraceContext(ctx)
	headers["event_type"] = string(event.EventType)
	headers["event_id"] = event.EventID
	headers["venue_id"] = event.VenueID
	headers["source"] = source
	headers["content_type"] = "application/json"
	return headers
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "booth-events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "booth-service"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "booth-service-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// Publish writes the event keyed by venue so one venue's events stay ordered
func (p *KafkaEventPublisher) Publish(ctx context.Context, event *domain.VenueEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   eventHeaders(ctx, event, p.serviceName),
		Timestamp: event.OccurredAt,
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	return nil
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// NATSEventPublisher implements EventPublisher on NATS subjects of the form
// <prefix>.<venue_id>.<event_type>
type NATSEventPublisher struct {
	bus         *natsbus.Bus
	serviceName string
}

// NewNATSEventPublisher wraps a connected bus
func NewNATSEventPublisher(bus *natsbus.Bus, serviceName string) *NATSEventPublisher {
	if serviceName == "" {
		serviceName = "booth-service"
	}
	return &NATSEventPublisher{bus: bus, serviceName: serviceName}
}

// Subject returns the subject an event is published on
func (p *NATSEventPublisher) Subject(event *domain.VenueEvent) string {
	return p.bus.Subject("venues", event.VenueID, string(event.EventType))
}

// Publish sends the event
func (p *NATSEventPublisher) Publish(ctx context.Context, event *domain.VenueEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.bus.Publish(ctx, p.Subject(event), value, eventHeaders(ctx, event, p.serviceName)); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	return nil
}

// Close drains the bus
func (p *NATSEventPublisher) Close() error {
	return p.bus.Close()
}

// NoOpEventPublisher is a no-op implementation of EventPublisher
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// Publish is a no-op
func (p *NoOpEventPublisher) Publish(ctx context.Context, event *domain.VenueEvent) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}

// eventEmitter publishes domain events after a commit. Failures are logged
// and counted; the committed operation still succeeds.
type eventEmitter struct {
	publisher EventPublisher
	log       *logger.Logger
}

func newEventEmitter(publisher EventPublisher, log *logger.Logger) *eventEmitter {
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &eventEmitter{publisher: publisher, log: log}
}

func (e *eventEmitter) emit(ctx context.Context, eventType domain.EventType, venueID, userID string, at time.Time, payload any) {
	event := domain.NewVenueEvent(uuid.New().String(), eventType, venueID, at, payload)
	event.UserID = userID

	if err := e.publisher.Publish(ctx, event); err != nil {
		metrics.RecordPublishFailure(ctx, string(eventType))
		e.log.Warn("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.String("venue_id", venueID),
			zap.Error(err),
		)
	}
}
