package memory

import (
	"context"
	"sync"
	"time"

	"catalog/application/ports"
	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
	pkgerrors "catalog/pkg/errors"
)

const (
	maxDependencyDepth = 10
	maxLineageDepth    = 50
)

// lineageTypes are the relationship types walked by lineage traversals.
var lineageTypes = map[valueobjects.RelationshipType]struct{}{
	valueobjects.RelProduces:    {},
	valueobjects.RelConsumes:    {},
	valueobjects.RelDerivesFrom: {},
	valueobjects.RelTrainedWith: {},
}

// GraphRepository is a mutex-guarded in-memory implementation of the graph
// store port with the same bounded traversal and cycle-probe semantics as the
// FalkorDB adapter.
type GraphRepository struct {
	mu    sync.RWMutex
	nodes map[string]ports.ResourceProjection
	edges map[string]*entities.Relationship
}

// NewGraphRepository creates an empty in-memory graph store
func NewGraphRepository() *GraphRepository {
	return &GraphRepository{
		nodes: make(map[string]ports.ResourceProjection),
		edges: make(map[string]*entities.Relationship),
	}
}

// SyncResource upserts the node projection for a resource
func (g *GraphRepository) SyncResource(ctx context.Context, projection ports.ResourceProjection) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[projection.ID] = projection
	return nil
}

// RemoveResource deletes the node projection and all its edges
func (g *GraphRepository) RemoveResource(ctx context.Context, id valueobjects.ResourceID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.nodes, id.String())
	for edgeID, e := range g.edges {
		if e.SourceID().Equals(id) || e.TargetID().Equals(id) {
			delete(g.edges, edgeID)
		}
	}
	return nil
}

// GetEdge retrieves a relationship by ID
func (g *GraphRepository) GetEdge(ctx context.Context, id valueobjects.RelationshipID) (*entities.Relationship, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	e, ok := g.edges[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundf("relationship %s not found", id)
	}
	return e, nil
}

// CreateEdge persists a relationship; both endpoints must exist
func (g *GraphRepository) CreateEdge(ctx context.Context, rel *entities.Relationship) (*entities.Relationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[rel.SourceID().String()]; !ok {
		return nil, pkgerrors.NewNotFoundf("source resource %s not found in graph", rel.SourceID())
	}
	if _, ok := g.nodes[rel.TargetID().String()]; !ok {
		return nil, pkgerrors.NewNotFoundf("target resource %s not found in graph", rel.TargetID())
	}

	if rel.ID().IsZero() {
		rel.SetID(valueobjects.NewRelationshipID())
	}
	if rel.CreatedAt().IsZero() {
		rel.StampCreated(time.Now().UTC())
	}

	g.edges[rel.ID().String()] = rel
	return rel, nil
}

// DeleteEdge removes a relationship; returns false when it did not exist
func (g *GraphRepository) DeleteEdge(ctx context.Context, id valueobjects.RelationshipID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.edges[id.String()]; !ok {
		return false, nil
	}
	delete(g.edges, id.String())
	return true, nil
}

// GetBySource returns edges originating at the given resource
func (g *GraphRepository) GetBySource(ctx context.Context, sourceID valueobjects.ResourceID) ([]*entities.Relationship, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*entities.Relationship
	for _, e := range g.edges {
		if e.SourceID().Equals(sourceID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetByTarget returns edges pointing at the given resource
func (g *GraphRepository) GetByTarget(ctx context.Context, targetID valueobjects.ResourceID) ([]*entities.Relationship, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*entities.Relationship
	for _, e := range g.edges {
		if e.TargetID().Equals(targetID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetByType returns all edges of the given type
func (g *GraphRepository) GetByType(ctx context.Context, t valueobjects.RelationshipType) ([]*entities.Relationship, error) {
	if !t.Valid() {
		return nil, pkgerrors.NewInvalidf("unknown relationship type %q", t)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*entities.Relationship
	for _, e := range g.edges {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetBetween returns edges between the two resources, either direction
func (g *GraphRepository) GetBetween(ctx context.Context, a, b valueobjects.ResourceID) ([]*entities.Relationship, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*entities.Relationship
	for _, e := range g.edges {
		if (e.SourceID().Equals(a) && e.TargetID().Equals(b)) ||
			(e.SourceID().Equals(b) && e.TargetID().Equals(a)) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Dependencies walks DependsOn edges outward from the resource
func (g *GraphRepository) Dependencies(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxDependencyDepth {
		return nil, pkgerrors.NewInvalidf("dependency depth must be between 1 and %d", maxDependencyDepth)
	}
	return g.walk(id, depth, false, func(t valueobjects.RelationshipType) bool {
		return t == valueobjects.RelDependsOn
	}), nil
}

// Dependents walks DependsOn edges inward to the resource
func (g *GraphRepository) Dependents(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxDependencyDepth {
		return nil, pkgerrors.NewInvalidf("dependency depth must be between 1 and %d", maxDependencyDepth)
	}
	return g.walk(id, depth, true, func(t valueobjects.RelationshipType) bool {
		return t == valueobjects.RelDependsOn
	}), nil
}

// LineageUpstream walks lineage edges toward producers
func (g *GraphRepository) LineageUpstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxLineageDepth {
		return nil, pkgerrors.NewInvalidf("lineage depth must be between 1 and %d", maxLineageDepth)
	}
	return g.walk(id, depth, true, isLineageType), nil
}

// LineageDownstream walks lineage edges toward consumers
func (g *GraphRepository) LineageDownstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxLineageDepth {
		return nil, pkgerrors.NewInvalidf("lineage depth must be between 1 and %d", maxLineageDepth)
	}
	return g.walk(id, depth, false, isLineageType), nil
}

// HasCycle probes for a same-type directed path from target back to source,
// bounded to the lineage traversal maximum
func (g *GraphRepository) HasCycle(ctx context.Context, sourceID, targetID valueobjects.ResourceID, t valueobjects.RelationshipType) (bool, error) {
	if !t.Valid() {
		return false, pkgerrors.NewInvalidf("unknown relationship type %q", t)
	}
	if sourceID.Equals(targetID) {
		return true, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	// BFS from target following edges of type t, looking for source.
	visited := map[string]struct{}{targetID.String(): {}}
	frontier := []string{targetID.String()}

	for d := 0; d < maxLineageDepth && len(frontier) > 0; d++ {
		var next []string
		for _, nodeID := range frontier {
			for _, e := range g.edges {
				if e.Type() != t || e.SourceID().String() != nodeID {
					continue
				}
				reached := e.TargetID().String()
				if reached == sourceID.String() {
					return true, nil
				}
				if _, ok := visited[reached]; !ok {
					visited[reached] = struct{}{}
					next = append(next, reached)
				}
			}
		}
		frontier = next
	}

	return false, nil
}

func isLineageType(t valueobjects.RelationshipType) bool {
	_, ok := lineageTypes[t]
	return ok
}

// walk runs a bounded BFS from the given node. reverse=true follows edges
// against their direction. Returns distinct projections, start node excluded.
func (g *GraphRepository) walk(start valueobjects.ResourceID, depth int, reverse bool, typeMatch func(valueobjects.RelationshipType) bool) []ports.ResourceProjection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]struct{}{start.String(): {}}
	frontier := []string{start.String()}
	var out []ports.ResourceProjection

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, nodeID := range frontier {
			for _, e := range g.edges {
				if !typeMatch(e.Type()) {
					continue
				}
				var from, to string
				if reverse {
					from, to = e.TargetID().String(), e.SourceID().String()
				} else {
					from, to = e.SourceID().String(), e.TargetID().String()
				}
				if from != nodeID {
					continue
				}
				if _, ok := visited[to]; ok {
					continue
				}
				visited[to] = struct{}{}
				next = append(next, to)
				if projection, ok := g.nodes[to]; ok {
					out = append(out, projection)
				}
			}
		}
		frontier = next
	}

	return out
}

var _ ports.GraphRepository = (*GraphRepository)(nil)
