package entities

import (
	"time"

	"catalog/domain/core/valueobjects"
	pkgerrors "catalog/pkg/errors"
)

// Relationship is a typed directed edge between two resources
type Relationship struct {
	id                  valueobjects.RelationshipID
	relationshipType    valueobjects.RelationshipType
	sourceID            valueobjects.ResourceID
	targetID            valueobjects.ResourceID
	bidirectional       bool
	dependencyType      string
	required            bool
	versionConstraint   string
	transformationType  string
	transformationLogic string
	createdAt           time.Time
	createdBy           string
}

// NewRelationship creates a typed edge. Self-loops are rejected here;
// per-type acyclicity is enforced by the graph store at edge-create time.
func NewRelationship(
	relationshipType valueobjects.RelationshipType,
	sourceID, targetID valueobjects.ResourceID,
) (*Relationship, error) {
	if !relationshipType.Valid() {
		return nil, pkgerrors.NewInvalidf("unknown relationship type %q", relationshipType)
	}
	if sourceID.IsZero() || targetID.IsZero() {
		return nil, pkgerrors.NewInvalid("relationship requires both source and target")
	}
	if sourceID.Equals(targetID) {
		return nil, pkgerrors.NewInvalid("relationship source and target must differ")
	}

	return &Relationship{
		relationshipType: relationshipType,
		sourceID:         sourceID,
		targetID:         targetID,
	}, nil
}

// ReconstructRelationship rebuilds a relationship from persisted state
func ReconstructRelationship(
	id valueobjects.RelationshipID,
	relationshipType valueobjects.RelationshipType,
	sourceID, targetID valueobjects.ResourceID,
	bidirectional bool,
	dependencyType string,
	required bool,
	versionConstraint string,
	transformationType string,
	transformationLogic string,
	createdAt time.Time,
	createdBy string,
) *Relationship {
	return &Relationship{
		id:                  id,
		relationshipType:    relationshipType,
		sourceID:            sourceID,
		targetID:            targetID,
		bidirectional:       bidirectional,
		dependencyType:      dependencyType,
		required:            required,
		versionConstraint:   versionConstraint,
		transformationType:  transformationType,
		transformationLogic: transformationLogic,
		createdAt:           createdAt,
		createdBy:           createdBy,
	}
}

// ID returns the edge identity
func (r *Relationship) ID() valueobjects.RelationshipID { return r.id }

// Type returns the edge type
func (r *Relationship) Type() valueobjects.RelationshipType { return r.relationshipType }

// SourceID returns the source resource ID
func (r *Relationship) SourceID() valueobjects.ResourceID { return r.sourceID }

// TargetID returns the target resource ID
func (r *Relationship) TargetID() valueobjects.ResourceID { return r.targetID }

// Bidirectional reports whether the edge reads both ways
func (r *Relationship) Bidirectional() bool { return r.bidirectional }

// DependencyType returns the dependency sub-type
func (r *Relationship) DependencyType() string { return r.dependencyType }

// Required reports whether the dependency is mandatory
func (r *Relationship) Required() bool { return r.required }

// VersionConstraint returns the version constraint expression
func (r *Relationship) VersionConstraint() string { return r.versionConstraint }

// TransformationType returns the transformation type for lineage edges
func (r *Relationship) TransformationType() string { return r.transformationType }

// TransformationLogic returns the transformation logic for lineage edges
func (r *Relationship) TransformationLogic() string { return r.transformationLogic }

// CreatedAt returns the creation timestamp
func (r *Relationship) CreatedAt() time.Time { return r.createdAt }

// CreatedBy returns the optional creator
func (r *Relationship) CreatedBy() string { return r.createdBy }

// SetID assigns the identity. Only store adapters call this, on first create.
func (r *Relationship) SetID(id valueobjects.RelationshipID) { r.id = id }

// SetBidirectional flags the edge as bidirectional
func (r *Relationship) SetBidirectional(b bool) { r.bidirectional = b }

// SetDependencyType records the dependency sub-type
func (r *Relationship) SetDependencyType(s string) { r.dependencyType = s }

// SetRequired flags the dependency as mandatory
func (r *Relationship) SetRequired(b bool) { r.required = b }

// SetVersionConstraint records the version constraint expression
func (r *Relationship) SetVersionConstraint(s string) { r.versionConstraint = s }

// SetTransformation records the transformation type and logic
func (r *Relationship) SetTransformation(transformationType, logic string) {
	r.transformationType = transformationType
	r.transformationLogic = logic
}

// SetCreatedBy records the creator
func (r *Relationship) SetCreatedBy(createdBy string) { r.createdBy = createdBy }

// StampCreated sets the creation timestamp
func (r *Relationship) StampCreated(now time.Time) { r.createdAt = now }
