package kafka

import (
	"context"

	"catalog/application/ports"
	"catalog/domain/events"
	"catalog/infrastructure/messaging"
)

// EventPublisher adapts the producer to the coordinator's publishing port.
// All lifecycle events go to one topic, partitioned by aggregate ID so
// events of the same resource stay ordered.
type EventPublisher struct {
	producer *Producer
	topic    string
}

// NewEventPublisher binds a producer to the lifecycle topic
func NewEventPublisher(producer *Producer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

// Publish sends one domain event
func (p *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	_, err := p.producer.Publish(ctx, p.topic, event, event.GetEventType(),
		messaging.WithSubject(event.GetAggregateID()),
		messaging.WithPartitionKey(event.GetAggregateID()),
	)
	return err
}

var _ ports.EventPublisher = (*EventPublisher)(nil)
