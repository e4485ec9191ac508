package services

import (
	"context"

	"go.uber.org/zap"

	"catalog/application/ports"
	"catalog/domain/core/valueobjects"
	"catalog/domain/events"
	"catalog/infrastructure/messaging"
	pkgerrors "catalog/pkg/errors"
)

// Projector re-derives the search index and graph projection from
// lifecycle events. Handlers are idempotent: the store is the source of
// truth and redelivered events converge to the same state.
type Projector struct {
	resources ports.ResourceRepository
	graph     ports.GraphRepository
	search    ports.SearchIndex
	logger    *zap.Logger
}

// NewProjector wires the projection handlers
func NewProjector(resources ports.ResourceRepository, graph ports.GraphRepository, search ports.SearchIndex, logger *zap.Logger) *Projector {
	return &Projector{resources: resources, graph: graph, search: search, logger: logger}
}

// Register binds all lifecycle event types on the dispatcher
func (p *Projector) Register(d *messaging.Dispatcher) error {
	resourceReg := messaging.Registration{
		NewPayload: func() interface{} { return &events.ResourceEvent{} },
		Handle: func(ctx context.Context, payload interface{}, _ *messaging.Envelope) error {
			return p.syncResource(ctx, payload.(*events.ResourceEvent))
		},
	}
	for _, eventType := range []string{events.TypeResourceCreated, events.TypeResourceUpdated} {
		if err := d.Register(eventType, resourceReg); err != nil {
			return err
		}
	}

	if err := d.Register(events.TypeResourceDeleted, messaging.Registration{
		NewPayload: func() interface{} { return &events.ResourceEvent{} },
		Handle: func(ctx context.Context, payload interface{}, _ *messaging.Envelope) error {
			return p.dropResource(ctx, payload.(*events.ResourceEvent))
		},
	}); err != nil {
		return err
	}

	relationshipReg := messaging.Registration{
		NewPayload: func() interface{} { return &events.RelationshipEvent{} },
		Handle: func(ctx context.Context, payload interface{}, env *messaging.Envelope) error {
			p.auditRelationship(payload.(*events.RelationshipEvent), env)
			return nil
		},
	}
	for _, eventType := range []string{events.TypeRelationshipCreated, events.TypeRelationshipDeleted} {
		if err := d.Register(eventType, relationshipReg); err != nil {
			return err
		}
	}

	return nil
}

// syncResource refreshes the search document and graph node from the store
func (p *Projector) syncResource(ctx context.Context, event *events.ResourceEvent) error {
	id, err := valueobjects.NewResourceIDFromString(event.ResourceID)
	if err != nil {
		return pkgerrors.NewInvalidf("event carries invalid resource id %q", event.ResourceID)
	}

	resource, err := p.resources.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			// Deleted between publish and consume; the delete event will
			// clean the projections up.
			p.logger.Debug("resource gone before projection sync",
				zap.String("resource_id", event.ResourceID),
			)
			return nil
		}
		return err
	}

	if err := p.graph.SyncResource(ctx, ports.ProjectResource(resource)); err != nil {
		return err
	}
	return p.search.Index(ctx, ports.DocumentFromResource(resource))
}

// dropResource removes the projections of a deleted resource
func (p *Projector) dropResource(ctx context.Context, event *events.ResourceEvent) error {
	id, err := valueobjects.NewResourceIDFromString(event.ResourceID)
	if err != nil {
		return pkgerrors.NewInvalidf("event carries invalid resource id %q", event.ResourceID)
	}

	if err := p.graph.RemoveResource(ctx, id); err != nil {
		return err
	}
	return p.search.Delete(ctx, event.ResourceID)
}

func (p *Projector) auditRelationship(event *events.RelationshipEvent, env *messaging.Envelope) {
	p.logger.Info("relationship lifecycle event",
		zap.String("event_type", event.EventType),
		zap.String("relationship_id", event.RelationshipID),
		zap.String("source_id", event.SourceID),
		zap.String("target_id", event.TargetID),
		zap.String("relationship_type", event.RelationshipType),
		zap.String("correlation_id", env.Metadata.CorrelationID),
	)
}
