package events

import (
	"time"
)

// DomainEvent is implemented by every catalog lifecycle event
type DomainEvent interface {
	// GetEventType returns the event type name used for dispatch
	GetEventType() string

	// GetAggregateID returns the ID of the entity the event concerns
	GetAggregateID() string

	// GetTimestamp returns when the event occurred
	GetTimestamp() time.Time
}

// BaseEvent carries the fields shared by all domain events
type BaseEvent struct {
	AggregateID string    `json:"aggregateId"`
	EventType   string    `json:"eventType"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

// GetEventType returns the event type
func (e BaseEvent) GetEventType() string { return e.EventType }

// GetAggregateID returns the aggregate ID
func (e BaseEvent) GetAggregateID() string { return e.AggregateID }

// GetTimestamp returns the event timestamp
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// ResourceEvent carries the identifying tuple of a resource
type ResourceEvent struct {
	BaseEvent
	ResourceID   string `json:"resourceId"`
	ResourceType string `json:"resourceType"`
	Name         string `json:"name"`
	Namespace    string `json:"namespace,omitempty"`
}

// RelationshipEvent carries the identifying tuple of a relationship
type RelationshipEvent struct {
	BaseEvent
	RelationshipID   string `json:"relationshipId"`
	SourceID         string `json:"sourceId"`
	TargetID         string `json:"targetId"`
	RelationshipType string `json:"relationshipType"`
}

func newResourceEvent(eventType, id, resourceType, name, namespace string) ResourceEvent {
	return ResourceEvent{
		BaseEvent: BaseEvent{
			AggregateID: id,
			EventType:   eventType,
			Timestamp:   time.Now().UTC(),
			Version:     1,
		},
		ResourceID:   id,
		ResourceType: resourceType,
		Name:         name,
		Namespace:    namespace,
	}
}

// NewResourceCreated builds a ResourceCreated event
func NewResourceCreated(id, resourceType, name, namespace string) ResourceEvent {
	return newResourceEvent(TypeResourceCreated, id, resourceType, name, namespace)
}

// NewResourceUpdated builds a ResourceUpdated event
func NewResourceUpdated(id, resourceType, name, namespace string) ResourceEvent {
	return newResourceEvent(TypeResourceUpdated, id, resourceType, name, namespace)
}

// NewResourceDeleted builds a ResourceDeleted event
func NewResourceDeleted(id, resourceType, name, namespace string) ResourceEvent {
	return newResourceEvent(TypeResourceDeleted, id, resourceType, name, namespace)
}

func newRelationshipEvent(eventType, id, sourceID, targetID, relType string) RelationshipEvent {
	return RelationshipEvent{
		BaseEvent: BaseEvent{
			AggregateID: id,
			EventType:   eventType,
			Timestamp:   time.Now().UTC(),
			Version:     1,
		},
		RelationshipID:   id,
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: relType,
	}
}

// NewRelationshipCreated builds a RelationshipCreated event
func NewRelationshipCreated(id, sourceID, targetID, relType string) RelationshipEvent {
	return newRelationshipEvent(TypeRelationshipCreated, id, sourceID, targetID, relType)
}

// NewRelationshipDeleted builds a RelationshipDeleted event
func NewRelationshipDeleted(id, sourceID, targetID, relType string) RelationshipEvent {
	return newRelationshipEvent(TypeRelationshipDeleted, id, sourceID, targetID, relType)
}
