package valueobjects

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "catalog/pkg/errors"
)

// ResourceID uniquely identifies a catalogued resource
type ResourceID struct {
	value string
}

// NewResourceID generates a new unique resource ID
func NewResourceID() ResourceID {
	return ResourceID{value: uuid.New().String()}
}

// NewResourceIDFromString creates a ResourceID from an existing string
func NewResourceIDFromString(s string) (ResourceID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ResourceID{}, pkgerrors.NewInvalid("resource ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return ResourceID{}, pkgerrors.NewInvalid("resource ID must be a valid UUID")
	}
	return ResourceID{value: s}, nil
}

// String returns the string representation
func (id ResourceID) String() string {
	return id.value
}

// IsZero checks if the ID is unset
func (id ResourceID) IsZero() bool {
	return id.value == ""
}

// Equals compares two resource IDs
func (id ResourceID) Equals(other ResourceID) bool {
	return id.value == other.value
}

// RelationshipID uniquely identifies a typed edge between two resources
type RelationshipID struct {
	value string
}

// NewRelationshipID generates a new unique relationship ID
func NewRelationshipID() RelationshipID {
	return RelationshipID{value: uuid.New().String()}
}

// NewRelationshipIDFromString creates a RelationshipID from an existing string
func NewRelationshipIDFromString(s string) (RelationshipID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RelationshipID{}, pkgerrors.NewInvalid("relationship ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return RelationshipID{}, pkgerrors.NewInvalid("relationship ID must be a valid UUID")
	}
	return RelationshipID{value: s}, nil
}

// String returns the string representation
func (id RelationshipID) String() string {
	return id.value
}

// IsZero checks if the ID is unset
func (id RelationshipID) IsZero() bool {
	return id.value == ""
}

// Equals compares two relationship IDs
func (id RelationshipID) Equals(other RelationshipID) bool {
	return id.value == other.value
}
