package valueobjects

import (
	pkgerrors "catalog/pkg/errors"
)

// RelationshipType classifies a typed directed edge between resources
type RelationshipType string

const (
	RelDependsOn   RelationshipType = "DependsOn"
	RelProduces    RelationshipType = "Produces"
	RelConsumes    RelationshipType = "Consumes"
	RelContains    RelationshipType = "Contains"
	RelTrainedWith RelationshipType = "TrainedWith"
	RelHasAccess   RelationshipType = "HasAccess"
	RelDerivesFrom RelationshipType = "DerivesFrom"
	RelReferences  RelationshipType = "References"
	RelExtends     RelationshipType = "Extends"
)

var relationshipTypes = map[RelationshipType]struct{}{
	RelDependsOn: {}, RelProduces: {}, RelConsumes: {},
	RelContains: {}, RelTrainedWith: {}, RelHasAccess: {},
	RelDerivesFrom: {}, RelReferences: {}, RelExtends: {},
}

// acyclicTypes are the relationship types for which cycle-freedom is enforced.
// Cycle classes are strictly per-type; a DependsOn path never mixes with
// Produces or DerivesFrom edges.
var acyclicTypes = map[RelationshipType]struct{}{
	RelDependsOn: {}, RelProduces: {}, RelDerivesFrom: {},
}

// ParseRelationshipType converts a string to a RelationshipType
func ParseRelationshipType(s string) (RelationshipType, error) {
	t := RelationshipType(s)
	if _, ok := relationshipTypes[t]; !ok {
		return "", pkgerrors.NewInvalidf("unknown relationship type %q", s)
	}
	return t, nil
}

// Valid checks whether the type is one of the known relationship types
func (t RelationshipType) Valid() bool {
	_, ok := relationshipTypes[t]
	return ok
}

// Acyclic reports whether edges of this type must remain cycle-free
func (t RelationshipType) Acyclic() bool {
	_, ok := acyclicTypes[t]
	return ok
}

// String returns the string representation
func (t RelationshipType) String() string {
	return string(t)
}
