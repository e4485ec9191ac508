package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalog/application/ports"
	"catalog/application/sagas"
	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
	"catalog/domain/events"
	domainservices "catalog/domain/services"
	pkgerrors "catalog/pkg/errors"
	"catalog/pkg/observability"
)

// resyncPageSize is the page size used when rebuilding the search index
// from the resource store
const resyncPageSize = 1000

// CatalogService is the write-path coordinator. Each mutating call is its
// own mini-saga across the resource store, the graph projection and the
// search index, with compensations rolling back earlier steps when a later
// one fails. Event publishing is best-effort: consumers can re-derive state
// from the store.
type CatalogService struct {
	resources ports.ResourceRepository
	graph     ports.GraphRepository
	search    ports.SearchIndex
	publisher ports.EventPublisher
	cache     ports.Cache
	validator *domainservices.SchemaValidator
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewCatalogService wires the coordinator. cache and metrics may be nil.
func NewCatalogService(
	resources ports.ResourceRepository,
	graph ports.GraphRepository,
	search ports.SearchIndex,
	publisher ports.EventPublisher,
	cache ports.Cache,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *CatalogService {
	return &CatalogService{
		resources: resources,
		graph:     graph,
		search:    search,
		publisher: publisher,
		cache:     cache,
		validator: domainservices.NewSchemaValidator(),
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *CatalogService) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.CatalogOps.WithLabelValues(op, result).Inc()
	s.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// GetResource retrieves a resource by ID, read-through the cache
func (s *CatalogService) GetResource(ctx context.Context, id valueobjects.ResourceID) (resource *entities.Resource, err error) {
	defer func(start time.Time) { s.observe("get_resource", start, err) }(time.Now())

	if s.cache != nil {
		if cached, ok := s.cache.Get(id.String()); ok {
			return cached, nil
		}
	}

	resource, err = s.resources.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(id.String(), resource)
	}
	return resource, nil
}

// GetResourceByName retrieves a resource by its (name, namespace) pair
func (s *CatalogService) GetResourceByName(ctx context.Context, name valueobjects.Name, namespace valueobjects.Namespace) (*entities.Resource, error) {
	return s.resources.GetByName(ctx, name, namespace)
}

// ListByType returns resources of the given type
func (s *CatalogService) ListByType(ctx context.Context, t valueobjects.ResourceType) ([]*entities.Resource, error) {
	return s.resources.ListByType(ctx, t)
}

// ListByNamespace returns resources in the given namespace
func (s *CatalogService) ListByNamespace(ctx context.Context, ns valueobjects.Namespace) ([]*entities.Resource, error) {
	return s.resources.ListByNamespace(ctx, ns)
}

// ListByTags returns resources carrying any of the given tags
func (s *CatalogService) ListByTags(ctx context.Context, tags []string) ([]*entities.Resource, error) {
	return s.resources.ListByTags(ctx, tags)
}

// Search runs a ranked full-text query
func (s *CatalogService) Search(ctx context.Context, query string, pageSize, pageNumber int) ([]ports.Document, error) {
	return s.search.Search(ctx, query, pageSize, pageNumber)
}

// Autocomplete returns name completions for a prefix
func (s *CatalogService) Autocomplete(ctx context.Context, prefix string, limit int) ([]ports.Document, error) {
	return s.search.Autocomplete(ctx, prefix, limit)
}

// SearchByType returns indexed documents of the given type
func (s *CatalogService) SearchByType(ctx context.Context, resourceType string, pageSize, pageNumber int) ([]ports.Document, error) {
	return s.search.SearchByType(ctx, resourceType, pageSize, pageNumber)
}

// SearchByNamespace returns indexed documents in the given namespace
func (s *CatalogService) SearchByNamespace(ctx context.Context, namespace string, pageSize, pageNumber int) ([]ports.Document, error) {
	return s.search.SearchByNamespace(ctx, namespace, pageSize, pageNumber)
}

// SearchByTags returns indexed documents matching the tags
func (s *CatalogService) SearchByTags(ctx context.Context, tags []string, matchAll bool, pageSize, pageNumber int) ([]ports.Document, error) {
	return s.search.SearchByTags(ctx, tags, matchAll, pageSize, pageNumber)
}

// GetFacets returns aggregated counts by type, namespace and tag
func (s *CatalogService) GetFacets(ctx context.Context, query string) (map[string]int, error) {
	return s.search.GetFacets(ctx, query)
}

// Register validates and persists a new resource across the store, the
// graph projection and the search index. Any step failure rolls the
// earlier steps back; the lifecycle event is best-effort.
func (s *CatalogService) Register(ctx context.Context, resource *entities.Resource) (created *entities.Resource, err error) {
	defer func(start time.Time) { s.observe("register_resource", start, err) }(time.Now())

	if err = s.validate(resource); err != nil {
		return nil, err
	}

	saga := sagas.NewBuilder("register-resource", s.logger).
		WithCompensableStep("create-in-store",
			func(ctx context.Context, data interface{}) (interface{}, error) {
				return s.resources.Create(ctx, data.(*entities.Resource))
			},
			func(ctx context.Context, data interface{}) error {
				_, err := s.resources.Delete(ctx, data.(*entities.Resource).ID())
				return err
			},
		).
		WithCompensableStep("sync-graph-projection",
			func(ctx context.Context, data interface{}) (interface{}, error) {
				r := data.(*entities.Resource)
				if err := s.graph.SyncResource(ctx, ports.ProjectResource(r)); err != nil {
					return nil, err
				}
				return r, nil
			},
			func(ctx context.Context, data interface{}) error {
				return s.graph.RemoveResource(ctx, data.(*entities.Resource).ID())
			},
		).
		WithCompensableStep("index-in-search",
			func(ctx context.Context, data interface{}) (interface{}, error) {
				r := data.(*entities.Resource)
				if err := s.search.Index(ctx, ports.DocumentFromResource(r)); err != nil {
					return nil, err
				}
				return r, nil
			},
			func(ctx context.Context, data interface{}) error {
				return s.search.Delete(ctx, data.(*entities.Resource).ID().String())
			},
		).
		Build()

	result, err := saga.Execute(ctx, resource)
	if err != nil {
		return nil, err
	}
	created = result.(*entities.Resource)

	s.publish(ctx, events.NewResourceCreated(
		created.ID().String(), created.Type().String(),
		created.Name().String(), created.Namespace().String(),
	))

	return created, nil
}

// Update validates and rewrites an existing resource. A stale search index
// or graph projection is tolerated with a warning; the store write is the
// source of truth.
func (s *CatalogService) Update(ctx context.Context, resource *entities.Resource) (updated *entities.Resource, err error) {
	defer func(start time.Time) { s.observe("update_resource", start, err) }(time.Now())

	existing, err := s.resources.Get(ctx, resource.ID())
	if err != nil {
		return nil, err
	}

	check := s.validator.ValidateUpdate(existing, resource)
	s.logWarnings("update", resource, check.Warnings)
	if !check.IsValid {
		return nil, pkgerrors.NewInvalid(strings.Join(check.Errors, "; "))
	}

	updated, err = s.resources.Update(ctx, resource)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Remove(updated.ID().String())
	}

	if err := s.graph.SyncResource(ctx, ports.ProjectResource(updated)); err != nil {
		s.logger.Warn("graph projection is stale after update",
			zap.String("resource_id", updated.ID().String()),
			zap.Error(err),
		)
	}
	if err := s.search.Index(ctx, ports.DocumentFromResource(updated)); err != nil {
		s.logger.Warn("search index is stale after update",
			zap.String("resource_id", updated.ID().String()),
			zap.Error(err),
		)
	}

	s.publish(ctx, events.NewResourceUpdated(
		updated.ID().String(), updated.Type().String(),
		updated.Name().String(), updated.Namespace().String(),
	))

	return updated, nil
}

// Delete removes a resource everywhere. Returns false without error when
// the resource did not exist.
func (s *CatalogService) Delete(ctx context.Context, id valueobjects.ResourceID) (deleted bool, err error) {
	defer func(start time.Time) { s.observe("delete_resource", start, err) }(time.Now())

	existing, err := s.resources.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	deleted, err = s.resources.Delete(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	if s.cache != nil {
		s.cache.Remove(id.String())
	}

	if err := s.graph.RemoveResource(ctx, id); err != nil {
		s.logger.Warn("graph projection retains deleted resource",
			zap.String("resource_id", id.String()),
			zap.Error(err),
		)
	}
	if err := s.search.Delete(ctx, id.String()); err != nil {
		s.logger.Warn("search index retains deleted resource",
			zap.String("resource_id", id.String()),
			zap.Error(err),
		)
	}

	s.publish(ctx, events.NewResourceDeleted(
		id.String(), existing.Type().String(),
		existing.Name().String(), existing.Namespace().String(),
	))

	return true, nil
}

// CreateRelationship persists a typed edge after checking both endpoints
// exist and, for acyclic types, that the edge closes no same-type cycle
func (s *CatalogService) CreateRelationship(ctx context.Context, rel *entities.Relationship) (created *entities.Relationship, err error) {
	defer func(start time.Time) { s.observe("create_relationship", start, err) }(time.Now())

	if _, err = s.resources.Get(ctx, rel.SourceID()); err != nil {
		return nil, pkgerrors.Wrap(err, "relationship source")
	}
	if _, err = s.resources.Get(ctx, rel.TargetID()); err != nil {
		return nil, pkgerrors.Wrap(err, "relationship target")
	}

	if rel.Type().Acyclic() {
		cyclic, err := s.graph.HasCycle(ctx, rel.SourceID(), rel.TargetID(), rel.Type())
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, pkgerrors.NewInvalidf("%s edge %s -> %s would introduce cycle",
				rel.Type(), rel.SourceID(), rel.TargetID())
		}
	}

	created, err = s.graph.CreateEdge(ctx, rel)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewRelationshipCreated(
		created.ID().String(), created.SourceID().String(),
		created.TargetID().String(), created.Type().String(),
	))

	return created, nil
}

// DeleteRelationship removes an edge; the lifecycle event is published only
// when something was actually deleted
func (s *CatalogService) DeleteRelationship(ctx context.Context, id valueobjects.RelationshipID) (deleted bool, err error) {
	defer func(start time.Time) { s.observe("delete_relationship", start, err) }(time.Now())

	edge, err := s.graph.GetEdge(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	deleted, err = s.graph.DeleteEdge(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	s.publish(ctx, events.NewRelationshipDeleted(
		edge.ID().String(), edge.SourceID().String(),
		edge.TargetID().String(), edge.Type().String(),
	))

	return true, nil
}

// GetRelationship retrieves an edge by ID
func (s *CatalogService) GetRelationship(ctx context.Context, id valueobjects.RelationshipID) (*entities.Relationship, error) {
	return s.graph.GetEdge(ctx, id)
}

// GetRelationshipsBySource returns edges originating at the resource
func (s *CatalogService) GetRelationshipsBySource(ctx context.Context, sourceID valueobjects.ResourceID) ([]*entities.Relationship, error) {
	return s.graph.GetBySource(ctx, sourceID)
}

// GetRelationshipsByTarget returns edges pointing at the resource
func (s *CatalogService) GetRelationshipsByTarget(ctx context.Context, targetID valueobjects.ResourceID) ([]*entities.Relationship, error) {
	return s.graph.GetByTarget(ctx, targetID)
}

// GetRelationshipsByType returns all edges of the given type
func (s *CatalogService) GetRelationshipsByType(ctx context.Context, t valueobjects.RelationshipType) ([]*entities.Relationship, error) {
	return s.graph.GetByType(ctx, t)
}

// GetRelationshipsBetween returns edges between the two resources
func (s *CatalogService) GetRelationshipsBetween(ctx context.Context, a, b valueobjects.ResourceID) ([]*entities.Relationship, error) {
	return s.graph.GetBetween(ctx, a, b)
}

// Dependencies walks DependsOn edges outward
func (s *CatalogService) Dependencies(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	return s.graph.Dependencies(ctx, id, depth)
}

// Dependents walks DependsOn edges inward
func (s *CatalogService) Dependents(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	return s.graph.Dependents(ctx, id, depth)
}

// LineageUpstream walks lineage edges toward producers
func (s *CatalogService) LineageUpstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	return s.graph.LineageUpstream(ctx, id, depth)
}

// LineageDownstream walks lineage edges toward consumers
func (s *CatalogService) LineageDownstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	return s.graph.LineageDownstream(ctx, id, depth)
}

// CheckCycle reports whether an edge of the given type from source to
// target would close a same-type cycle
func (s *CatalogService) CheckCycle(ctx context.Context, sourceID, targetID valueobjects.ResourceID, t valueobjects.RelationshipType) (bool, error) {
	if !t.Valid() {
		return false, pkgerrors.NewInvalidf("unknown relationship type %q", t)
	}
	return s.graph.HasCycle(ctx, sourceID, targetID, t)
}

// ResyncSearchIndex rebuilds the search index from the resource store and
// returns the number of documents indexed
func (s *CatalogService) ResyncSearchIndex(ctx context.Context) (total int, err error) {
	defer func(start time.Time) { s.observe("resync_search_index", start, err) }(time.Now())

	var docs []ports.Document
	for page := 1; ; page++ {
		resources, err := s.resources.Page(ctx, resyncPageSize, page)
		if err != nil {
			return 0, err
		}
		if len(resources) == 0 {
			break
		}
		for _, r := range resources {
			docs = append(docs, ports.DocumentFromResource(r))
		}
		if len(resources) < resyncPageSize {
			break
		}
	}

	if err = s.search.ReindexAll(ctx, docs); err != nil {
		return 0, err
	}

	s.logger.Info("search index resynchronised", zap.Int("documents", len(docs)))
	return len(docs), nil
}

func (s *CatalogService) validate(resource *entities.Resource) error {
	check := s.validator.Validate(resource)
	s.logWarnings("register", resource, check.Warnings)
	if !check.IsValid {
		return pkgerrors.NewInvalid(strings.Join(check.Errors, "; "))
	}
	return nil
}

func (s *CatalogService) logWarnings(op string, resource *entities.Resource, warnings []string) {
	for _, w := range warnings {
		s.logger.Warn("validation warning",
			zap.String("operation", op),
			zap.String("resource", resource.Name().String()),
			zap.String("warning", w),
		)
	}
}

// publish sends a lifecycle event best-effort; failures demote to warnings
// because consumers can re-derive state from the store
func (s *CatalogService) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", event.GetEventType()),
			zap.String("aggregate_id", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
