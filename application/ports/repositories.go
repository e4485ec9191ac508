package ports

import (
	"context"
	"time"

	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
	"catalog/domain/events"
)

// ResourceProjection is the lightweight read model of a resource carried by
// graph nodes and search documents. Fuller attributes live in the resource
// store.
type ResourceProjection struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Namespace string    `json:"namespace,omitempty"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Active    bool      `json:"active"`
}

// ProjectResource builds the projection of a resource
func ProjectResource(r *entities.Resource) ResourceProjection {
	return ResourceProjection{
		ID:        r.ID().String(),
		Type:      r.Type().String(),
		Name:      r.Name().String(),
		Namespace: r.Namespace().String(),
		Version:   r.Version().String(),
		CreatedAt: r.CreatedAt(),
		UpdatedAt: r.UpdatedAt(),
		Active:    r.Active(),
	}
}

// ResourceRepository is the port to the relational store of record.
// Create and Update are individually atomic; no cross-resource transaction
// is promised.
type ResourceRepository interface {
	// Get retrieves a resource by ID; NotFound if absent
	Get(ctx context.Context, id valueobjects.ResourceID) (*entities.Resource, error)

	// GetByName retrieves a resource by its uniqueness key; the namespace may
	// be zero for resources without one
	GetByName(ctx context.Context, name valueobjects.Name, namespace valueobjects.Namespace) (*entities.Resource, error)

	// ListByType returns all resources of the given type
	ListByType(ctx context.Context, t valueobjects.ResourceType) ([]*entities.Resource, error)

	// ListByNamespace returns all resources in the given namespace
	ListByNamespace(ctx context.Context, ns valueobjects.Namespace) ([]*entities.Resource, error)

	// ListByTags returns resources carrying any of the given tags
	ListByTags(ctx context.Context, tags []string) ([]*entities.Resource, error)

	// Create persists a new resource: assigns an ID if zero, stamps
	// timestamps, enforces the (type, name, namespace) uniqueness key with
	// Conflict
	Create(ctx context.Context, resource *entities.Resource) (*entities.Resource, error)

	// Update rewrites the mutable fields of an existing resource and bumps
	// updatedAt; NotFound if absent
	Update(ctx context.Context, resource *entities.Resource) (*entities.Resource, error)

	// Delete removes a resource; returns false when it did not exist
	Delete(ctx context.Context, id valueobjects.ResourceID) (bool, error)

	// Page returns one page of resources in stable createdAt order.
	// pageNumber is 1-based.
	Page(ctx context.Context, pageSize, pageNumber int) ([]*entities.Resource, error)
}

// GraphRepository is the port to the relationship/lineage graph store
type GraphRepository interface {
	// GetEdge retrieves a relationship by ID; NotFound if absent
	GetEdge(ctx context.Context, id valueobjects.RelationshipID) (*entities.Relationship, error)

	// CreateEdge persists a relationship; both endpoint projections must
	// already be present in the graph
	CreateEdge(ctx context.Context, rel *entities.Relationship) (*entities.Relationship, error)

	// DeleteEdge removes a relationship; returns false when it did not exist
	DeleteEdge(ctx context.Context, id valueobjects.RelationshipID) (bool, error)

	// GetBySource returns edges originating at the given resource
	GetBySource(ctx context.Context, sourceID valueobjects.ResourceID) ([]*entities.Relationship, error)

	// GetByTarget returns edges pointing at the given resource
	GetByTarget(ctx context.Context, targetID valueobjects.ResourceID) ([]*entities.Relationship, error)

	// GetByType returns all edges of the given type
	GetByType(ctx context.Context, t valueobjects.RelationshipType) ([]*entities.Relationship, error)

	// GetBetween returns edges between the two resources, either direction
	GetBetween(ctx context.Context, a, b valueobjects.ResourceID) ([]*entities.Relationship, error)

	// Dependencies walks DependsOn edges outward from the resource,
	// 1 <= depth <= 10
	Dependencies(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ResourceProjection, error)

	// Dependents walks DependsOn edges inward to the resource,
	// 1 <= depth <= 10
	Dependents(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ResourceProjection, error)

	// LineageUpstream walks Produces/DerivesFrom-style lineage toward
	// producers, 1 <= depth <= 50
	LineageUpstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ResourceProjection, error)

	// LineageDownstream walks lineage toward consumers, 1 <= depth <= 50
	LineageDownstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ResourceProjection, error)

	// HasCycle reports whether adding an edge of the given type from source
	// to target would close a same-type cycle (bounded path probe from
	// target back to source)
	HasCycle(ctx context.Context, sourceID, targetID valueobjects.ResourceID, t valueobjects.RelationshipType) (bool, error)

	// SyncResource upserts the node projection for a resource
	SyncResource(ctx context.Context, projection ResourceProjection) error

	// RemoveResource deletes the node projection and all its edges
	RemoveResource(ctx context.Context, id valueobjects.ResourceID) error
}

// Document is the unit of search indexing
type Document struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace,omitempty"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Active      bool      `json:"active"`
}

// DocumentFromResource builds the search document of a resource. The
// description comes from the resource's properties; tags are deduplicated.
func DocumentFromResource(r *entities.Resource) Document {
	return Document{
		ID:          r.ID().String(),
		Type:        r.Type().String(),
		Name:        r.Name().String(),
		Namespace:   r.Namespace().String(),
		Version:     r.Version().String(),
		Description: r.Properties()["description"],
		Tags:        r.UniqueTags(),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
		Active:      r.Active(),
	}
}

// SearchIndex is the port to the full-text index
type SearchIndex interface {
	// Search runs a ranked multi-field query; an empty query returns no
	// results. pageNumber is 1-based.
	Search(ctx context.Context, query string, pageSize, pageNumber int) ([]Document, error)

	// Autocomplete returns up to limit documents whose name matches the
	// prefix, prefix matches ranked above fuzzy ones
	Autocomplete(ctx context.Context, prefix string, limit int) ([]Document, error)

	// SearchByType returns documents of the given resource type
	SearchByType(ctx context.Context, resourceType string, pageSize, pageNumber int) ([]Document, error)

	// SearchByNamespace returns documents in the given namespace
	SearchByNamespace(ctx context.Context, namespace string, pageSize, pageNumber int) ([]Document, error)

	// SearchByTags returns documents matching the tags; matchAll toggles
	// any-of versus all-of semantics
	SearchByTags(ctx context.Context, tags []string, matchAll bool, pageSize, pageNumber int) ([]Document, error)

	// GetFacets returns aggregated counts keyed type:X, namespace:X, tag:X,
	// optionally restricted to documents matching the query
	GetFacets(ctx context.Context, query string) (map[string]int, error)

	// Index writes one document
	Index(ctx context.Context, doc Document) error

	// BulkIndex writes many documents
	BulkIndex(ctx context.Context, docs []Document) error

	// Delete removes a document by ID
	Delete(ctx context.Context, id string) error

	// ReindexAll atomically replaces the index contents with the given
	// documents
	ReindexAll(ctx context.Context, docs []Document) error
}

// EventPublisher is the port the coordinator publishes lifecycle events
// through
type EventPublisher interface {
	// Publish sends a single domain event; the adapter chooses topic and
	// partition key
	Publish(ctx context.Context, event events.DomainEvent) error
}

// Cache is a read-through cache used in front of resource lookups
type Cache interface {
	// Get retrieves a cached resource
	Get(id string) (*entities.Resource, bool)

	// Set stores a resource
	Set(id string, resource *entities.Resource)

	// Remove evicts a resource
	Remove(id string)
}
