package falkordb

import (
	"context"
	"fmt"
	"time"

	"github.com/FalkorDB/falkordb-go/v2"
	"go.uber.org/zap"

	"catalog/application/ports"
	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
	pkgerrors "catalog/pkg/errors"
)

const (
	maxDependencyDepth = 10
	maxLineageDepth    = 50

	// nodeLabel is the single node label; resources are distinguished by
	// their type property, edges by their relationship label.
	nodeLabel = "Resource"
)

// lineageEdgePattern matches every relationship type walked by lineage
// traversals. Cypher relationship labels cannot be parameterised, so the
// pattern is assembled from the validated type enumeration.
const lineageEdgePattern = "Produces|Consumes|DerivesFrom|TrainedWith"

// Config holds connection settings for the graph store
type Config struct {
	Host         string
	Port         int
	Password     string
	GraphName    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MaxRetries   int
}

// DefaultConfig returns default graph store settings
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		GraphName:    "catalog",
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	}
}

// GraphRepository is the FalkorDB-backed graph store. Edges are stored as
// typed relationships between Resource nodes carrying lightweight
// projections of the catalogued entities.
type GraphRepository struct {
	config Config
	logger *zap.Logger
	db     *falkordb.FalkorDB
	graph  *falkordb.Graph
}

// NewGraphRepository creates a graph repository; call Connect before use
func NewGraphRepository(config Config, logger *zap.Logger) *GraphRepository {
	return &GraphRepository{config: config, logger: logger}
}

// Connect establishes the connection and creates the id index
func (g *GraphRepository) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", g.config.Host, g.config.Port)
	g.logger.Info("connecting to graph store",
		zap.String("addr", addr),
		zap.String("graph", g.config.GraphName),
	)

	db, err := falkordb.FalkorDBNew(&falkordb.ConnectionOption{
		Addr:         addr,
		Password:     g.config.Password,
		DialTimeout:  g.config.DialTimeout,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
		PoolSize:     g.config.PoolSize,
		MaxRetries:   g.config.MaxRetries,
	})
	if err != nil {
		return pkgerrors.NewUnavailable("connecting to graph store", err)
	}
	g.db = db
	g.graph = db.SelectGraph(g.config.GraphName)

	// Index creation is idempotent but FalkorDB errors on duplicates.
	if _, err := g.graph.Query(fmt.Sprintf("CREATE INDEX FOR (n:%s) ON (n.id)", nodeLabel), nil, nil); err != nil {
		g.logger.Debug("graph index creation skipped", zap.Error(err))
	}

	return nil
}

// Close releases the connection
func (g *GraphRepository) Close() error {
	if g.db != nil && g.db.Conn != nil {
		return g.db.Conn.Close()
	}
	return nil
}

// Ping checks the connection with a trivial query
func (g *GraphRepository) Ping(ctx context.Context) error {
	if g.graph == nil {
		return pkgerrors.NewUnavailable("graph store not connected", nil)
	}
	if _, err := g.graph.Query("RETURN 1", nil, nil); err != nil {
		return pkgerrors.NewUnavailable("graph store ping", err)
	}
	return nil
}

func (g *GraphRepository) query(q string, params map[string]interface{}) (*falkordb.QueryResult, error) {
	if g.graph == nil {
		return nil, pkgerrors.NewUnavailable("graph store not connected", nil)
	}
	result, err := g.graph.Query(q, params, nil)
	if err != nil {
		return nil, pkgerrors.NewUnavailable("graph query", err)
	}
	return result, nil
}

// SyncResource upserts the node projection for a resource
func (g *GraphRepository) SyncResource(ctx context.Context, p ports.ResourceProjection) error {
	q := fmt.Sprintf(`
MERGE (n:%s {id: $id})
SET n.type = $type, n.name = $name, n.namespace = $namespace, n.version = $version,
    n.createdAt = $createdAt, n.updatedAt = $updatedAt, n.active = $active`, nodeLabel)

	_, err := g.query(q, map[string]interface{}{
		"id":        p.ID,
		"type":      p.Type,
		"name":      p.Name,
		"namespace": p.Namespace,
		"version":   p.Version,
		"createdAt": p.CreatedAt.UnixNano(),
		"updatedAt": p.UpdatedAt.UnixNano(),
		"active":    p.Active,
	})
	return err
}

// RemoveResource deletes the node projection and all its edges
func (g *GraphRepository) RemoveResource(ctx context.Context, id valueobjects.ResourceID) error {
	q := fmt.Sprintf(`MATCH (n:%s {id: $id}) DETACH DELETE n`, nodeLabel)
	_, err := g.query(q, map[string]interface{}{"id": id.String()})
	return err
}

const edgeReturn = `type(r), r.id, s.id, t.id, r.bidirectional, r.dependencyType, r.required, r.versionConstraint, r.transformationType, r.transformationLogic, r.createdAt, r.createdBy`

// CreateEdge persists a relationship between two existing resource nodes
func (g *GraphRepository) CreateEdge(ctx context.Context, rel *entities.Relationship) (*entities.Relationship, error) {
	if rel.ID().IsZero() {
		rel.SetID(valueobjects.NewRelationshipID())
	}
	if rel.CreatedAt().IsZero() {
		rel.StampCreated(time.Now().UTC())
	}

	q := fmt.Sprintf(`
MATCH (s:%s {id: $sourceId}), (t:%s {id: $targetId})
CREATE (s)-[r:%s {
    id: $id, bidirectional: $bidirectional, dependencyType: $dependencyType,
    required: $required, versionConstraint: $versionConstraint,
    transformationType: $transformationType, transformationLogic: $transformationLogic,
    createdAt: $createdAt, createdBy: $createdBy
}]->(t)`, nodeLabel, nodeLabel, rel.Type())

	result, err := g.query(q, map[string]interface{}{
		"sourceId":            rel.SourceID().String(),
		"targetId":            rel.TargetID().String(),
		"id":                  rel.ID().String(),
		"bidirectional":       rel.Bidirectional(),
		"dependencyType":      rel.DependencyType(),
		"required":            rel.Required(),
		"versionConstraint":   rel.VersionConstraint(),
		"transformationType":  rel.TransformationType(),
		"transformationLogic": rel.TransformationLogic(),
		"createdAt":           rel.CreatedAt().UnixNano(),
		"createdBy":           rel.CreatedBy(),
	})
	if err != nil {
		return nil, err
	}
	if result.RelationshipsCreated() == 0 {
		return nil, pkgerrors.NewNotFoundf("one or both endpoints of %s -> %s not found in graph",
			rel.SourceID(), rel.TargetID())
	}

	return rel, nil
}

// GetEdge retrieves a relationship by ID
func (g *GraphRepository) GetEdge(ctx context.Context, id valueobjects.RelationshipID) (*entities.Relationship, error) {
	q := fmt.Sprintf(`MATCH (s:%s)-[r {id: $id}]->(t:%s) RETURN %s`, nodeLabel, nodeLabel, edgeReturn)
	result, err := g.query(q, map[string]interface{}{"id": id.String()})
	if err != nil {
		return nil, err
	}

	edges, err := parseEdges(result)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, pkgerrors.NewNotFoundf("relationship %s not found", id)
	}
	return edges[0], nil
}

// DeleteEdge removes a relationship; returns false when it did not exist
func (g *GraphRepository) DeleteEdge(ctx context.Context, id valueobjects.RelationshipID) (bool, error) {
	q := `MATCH ()-[r {id: $id}]->() DELETE r`
	result, err := g.query(q, map[string]interface{}{"id": id.String()})
	if err != nil {
		return false, err
	}
	return result.RelationshipsDeleted() > 0, nil
}

// GetBySource returns edges originating at the given resource
func (g *GraphRepository) GetBySource(ctx context.Context, sourceID valueobjects.ResourceID) ([]*entities.Relationship, error) {
	q := fmt.Sprintf(`MATCH (s:%s {id: $id})-[r]->(t:%s) RETURN %s`, nodeLabel, nodeLabel, edgeReturn)
	result, err := g.query(q, map[string]interface{}{"id": sourceID.String()})
	if err != nil {
		return nil, err
	}
	return parseEdges(result)
}

// GetByTarget returns edges pointing at the given resource
func (g *GraphRepository) GetByTarget(ctx context.Context, targetID valueobjects.ResourceID) ([]*entities.Relationship, error) {
	q := fmt.Sprintf(`MATCH (s:%s)-[r]->(t:%s {id: $id}) RETURN %s`, nodeLabel, nodeLabel, edgeReturn)
	result, err := g.query(q, map[string]interface{}{"id": targetID.String()})
	if err != nil {
		return nil, err
	}
	return parseEdges(result)
}

// GetByType returns all edges of the given type
func (g *GraphRepository) GetByType(ctx context.Context, t valueobjects.RelationshipType) ([]*entities.Relationship, error) {
	if !t.Valid() {
		return nil, pkgerrors.NewInvalidf("unknown relationship type %q", t)
	}
	q := fmt.Sprintf(`MATCH (s:%s)-[r:%s]->(t:%s) RETURN %s`, nodeLabel, t, nodeLabel, edgeReturn)
	result, err := g.query(q, nil)
	if err != nil {
		return nil, err
	}
	return parseEdges(result)
}

// GetBetween returns edges between the two resources, either direction
func (g *GraphRepository) GetBetween(ctx context.Context, a, b valueobjects.ResourceID) ([]*entities.Relationship, error) {
	q := fmt.Sprintf(`
MATCH (s:%s)-[r]->(t:%s)
WHERE (s.id = $a AND t.id = $b) OR (s.id = $b AND t.id = $a)
RETURN %s`, nodeLabel, nodeLabel, edgeReturn)
	result, err := g.query(q, map[string]interface{}{"a": a.String(), "b": b.String()})
	if err != nil {
		return nil, err
	}
	return parseEdges(result)
}

// Dependencies walks DependsOn edges outward from the resource
func (g *GraphRepository) Dependencies(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxDependencyDepth {
		return nil, pkgerrors.NewInvalidf("dependency depth must be between 1 and %d", maxDependencyDepth)
	}
	return g.traverse(id, fmt.Sprintf("-[:%s*1..%d]->", valueobjects.RelDependsOn, depth))
}

// Dependents walks DependsOn edges inward to the resource
func (g *GraphRepository) Dependents(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxDependencyDepth {
		return nil, pkgerrors.NewInvalidf("dependency depth must be between 1 and %d", maxDependencyDepth)
	}
	return g.traverse(id, fmt.Sprintf("<-[:%s*1..%d]-", valueobjects.RelDependsOn, depth))
}

// LineageUpstream walks lineage edges toward producers
func (g *GraphRepository) LineageUpstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxLineageDepth {
		return nil, pkgerrors.NewInvalidf("lineage depth must be between 1 and %d", maxLineageDepth)
	}
	return g.traverse(id, fmt.Sprintf("<-[:%s*1..%d]-", lineageEdgePattern, depth))
}

// LineageDownstream walks lineage edges toward consumers
func (g *GraphRepository) LineageDownstream(ctx context.Context, id valueobjects.ResourceID, depth int) ([]ports.ResourceProjection, error) {
	if depth < 1 || depth > maxLineageDepth {
		return nil, pkgerrors.NewInvalidf("lineage depth must be between 1 and %d", maxLineageDepth)
	}
	return g.traverse(id, fmt.Sprintf("-[:%s*1..%d]->", lineageEdgePattern, depth))
}

// HasCycle probes for a same-type directed path from target back to source
func (g *GraphRepository) HasCycle(ctx context.Context, sourceID, targetID valueobjects.ResourceID, t valueobjects.RelationshipType) (bool, error) {
	if !t.Valid() {
		return false, pkgerrors.NewInvalidf("unknown relationship type %q", t)
	}
	if sourceID.Equals(targetID) {
		return true, nil
	}

	q := fmt.Sprintf(`
MATCH (d:%s {id: $targetId})-[:%s*1..%d]->(s:%s {id: $sourceId})
RETURN s.id LIMIT 1`, nodeLabel, t, maxLineageDepth, nodeLabel)

	result, err := g.query(q, map[string]interface{}{
		"targetId": targetID.String(),
		"sourceId": sourceID.String(),
	})
	if err != nil {
		return false, err
	}
	return result.Next(), nil
}

func (g *GraphRepository) traverse(id valueobjects.ResourceID, edgePattern string) ([]ports.ResourceProjection, error) {
	q := fmt.Sprintf(`
MATCH (s:%s {id: $id})%s(t:%s)
RETURN DISTINCT t.id, t.type, t.name, t.namespace, t.version, t.createdAt, t.updatedAt, t.active`,
		nodeLabel, edgePattern, nodeLabel)

	result, err := g.query(q, map[string]interface{}{"id": id.String()})
	if err != nil {
		return nil, err
	}

	var out []ports.ResourceProjection
	for result.Next() {
		values := result.Record().Values()
		if len(values) < 8 {
			continue
		}
		out = append(out, ports.ResourceProjection{
			ID:        asString(values[0]),
			Type:      asString(values[1]),
			Name:      asString(values[2]),
			Namespace: asString(values[3]),
			Version:   asString(values[4]),
			CreatedAt: time.Unix(0, asInt64(values[5])).UTC(),
			UpdatedAt: time.Unix(0, asInt64(values[6])).UTC(),
			Active:    asBool(values[7]),
		})
	}
	return out, nil
}

func parseEdges(result *falkordb.QueryResult) ([]*entities.Relationship, error) {
	var out []*entities.Relationship
	for result.Next() {
		values := result.Record().Values()
		if len(values) < 12 {
			continue
		}

		relType, err := valueobjects.ParseRelationshipType(asString(values[0]))
		if err != nil {
			return nil, pkgerrors.NewInternal("stored edge has unknown type", err)
		}
		id, err := valueobjects.NewRelationshipIDFromString(asString(values[1]))
		if err != nil {
			return nil, pkgerrors.NewInternal("stored edge has invalid id", err)
		}
		sourceID, err := valueobjects.NewResourceIDFromString(asString(values[2]))
		if err != nil {
			return nil, pkgerrors.NewInternal("stored edge has invalid source", err)
		}
		targetID, err := valueobjects.NewResourceIDFromString(asString(values[3]))
		if err != nil {
			return nil, pkgerrors.NewInternal("stored edge has invalid target", err)
		}

		out = append(out, entities.ReconstructRelationship(
			id, relType, sourceID, targetID,
			asBool(values[4]),
			asString(values[5]),
			asBool(values[6]),
			asString(values[7]),
			asString(values[8]),
			asString(values[9]),
			time.Unix(0, asInt64(values[10])).UTC(),
			asString(values[11]),
		))
	}
	return out, nil
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}

var _ ports.GraphRepository = (*GraphRepository)(nil)
