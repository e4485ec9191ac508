package entities

import (
	"encoding/json"
	"time"

	"catalog/domain/core/valueobjects"
	pkgerrors "catalog/pkg/errors"
)

// Resource is the catalogued entity: a service, dataset, model, pipeline or
// any of the other tracked resource kinds. Identity and classification are
// immutable after creation; everything else may be rewritten by an update.
type Resource struct {
	id           valueobjects.ResourceID
	resourceType valueobjects.ResourceType
	name         valueobjects.Name
	namespace    valueobjects.Namespace
	version      valueobjects.Version
	tags         []string
	metadata     map[string]interface{}
	properties   map[string]string
	createdAt    time.Time
	updatedAt    time.Time
	createdBy    string
	active       bool
}

// NewResource creates a resource with the required identity attributes.
// The ID is assigned when the resource is first persisted if still zero.
func NewResource(
	resourceType valueobjects.ResourceType,
	name valueobjects.Name,
	namespace valueobjects.Namespace,
	version valueobjects.Version,
) (*Resource, error) {
	if !resourceType.Valid() {
		return nil, pkgerrors.NewInvalidf("unknown resource type %q", resourceType)
	}
	if resourceType == valueobjects.TypeUnknown {
		return nil, pkgerrors.NewInvalid("resource type cannot be Unknown at create time")
	}
	if name.IsZero() {
		return nil, pkgerrors.NewInvalid("resource name is required")
	}
	if version.IsZero() {
		return nil, pkgerrors.NewInvalid("resource version is required")
	}

	return &Resource{
		resourceType: resourceType,
		name:         name,
		namespace:    namespace,
		version:      version,
		tags:         []string{},
		metadata:     map[string]interface{}{},
		properties:   map[string]string{},
		active:       true,
	}, nil
}

// ReconstructResource rebuilds a resource from persisted state. Used only by
// store adapters; performs no validation.
func ReconstructResource(
	id valueobjects.ResourceID,
	resourceType valueobjects.ResourceType,
	name valueobjects.Name,
	namespace valueobjects.Namespace,
	version valueobjects.Version,
	tags []string,
	metadata map[string]interface{},
	properties map[string]string,
	createdAt, updatedAt time.Time,
	createdBy string,
	active bool,
) *Resource {
	if tags == nil {
		tags = []string{}
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if properties == nil {
		properties = map[string]string{}
	}
	return &Resource{
		id:           id,
		resourceType: resourceType,
		name:         name,
		namespace:    namespace,
		version:      version,
		tags:         tags,
		metadata:     metadata,
		properties:   properties,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		createdBy:    createdBy,
		active:       active,
	}
}

// ID returns the resource identity
func (r *Resource) ID() valueobjects.ResourceID { return r.id }

// Type returns the resource classification
func (r *Resource) Type() valueobjects.ResourceType { return r.resourceType }

// Name returns the resource name
func (r *Resource) Name() valueobjects.Name { return r.name }

// Namespace returns the optional namespace
func (r *Resource) Namespace() valueobjects.Namespace { return r.namespace }

// Version returns the semantic version
func (r *Resource) Version() valueobjects.Version { return r.version }

// Tags returns the tags as provided by the caller, duplicates included.
// Deduplication happens at index time; the validator reports duplicates
// as warnings.
func (r *Resource) Tags() []string {
	out := make([]string, len(r.tags))
	copy(out, r.tags)
	return out
}

// UniqueTags returns the tag set with duplicates collapsed, order preserved
func (r *Resource) UniqueTags() []string {
	seen := make(map[string]struct{}, len(r.tags))
	out := make([]string, 0, len(r.tags))
	for _, t := range r.tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Metadata returns the free-form metadata mapping
func (r *Resource) Metadata() map[string]interface{} { return r.metadata }

// Properties returns the string-typed properties mapping
func (r *Resource) Properties() map[string]string { return r.properties }

// CreatedAt returns the creation timestamp
func (r *Resource) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last update timestamp
func (r *Resource) UpdatedAt() time.Time { return r.updatedAt }

// CreatedBy returns the optional creator
func (r *Resource) CreatedBy() string { return r.createdBy }

// Active reports whether the resource is active
func (r *Resource) Active() bool { return r.active }

// HasTag reports whether the resource carries the given tag
func (r *Resource) HasTag(tag string) bool {
	for _, t := range r.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SetID assigns the identity. Only store adapters call this, on first create.
func (r *Resource) SetID(id valueobjects.ResourceID) { r.id = id }

// SetTags replaces the tag list
func (r *Resource) SetTags(tags []string) {
	if tags == nil {
		tags = []string{}
	}
	r.tags = tags
}

// SetMetadata replaces the metadata mapping
func (r *Resource) SetMetadata(metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	r.metadata = metadata
}

// SetProperties replaces the properties mapping
func (r *Resource) SetProperties(properties map[string]string) {
	if properties == nil {
		properties = map[string]string{}
	}
	r.properties = properties
}

// SetCreatedBy records the creator. Immutable once persisted.
func (r *Resource) SetCreatedBy(createdBy string) { r.createdBy = createdBy }

// SetName rewrites the name. Allowed on update; uniqueness is re-checked by
// the store.
func (r *Resource) SetName(name valueobjects.Name) { r.name = name }

// SetNamespace rewrites the namespace
func (r *Resource) SetNamespace(ns valueobjects.Namespace) { r.namespace = ns }

// SetVersion rewrites the semantic version
func (r *Resource) SetVersion(v valueobjects.Version) { r.version = v }

// SetActive flips the active flag
func (r *Resource) SetActive(active bool) { r.active = active }

// StampCreated sets both timestamps at create time
func (r *Resource) StampCreated(now time.Time) {
	r.createdAt = now
	r.updatedAt = now
}

// Touch bumps the updatedAt timestamp
func (r *Resource) Touch(now time.Time) {
	r.updatedAt = now
}

// RestoreAudit reinstates immutable audit fields from the stored copy.
// Update paths call this so callers cannot rewrite createdAt/createdBy.
func (r *Resource) RestoreAudit(createdAt time.Time, createdBy string) {
	r.createdAt = createdAt
	r.createdBy = createdBy
}

// MetadataSerialisable reports whether the metadata mapping survives a
// round-trip through JSON
func (r *Resource) MetadataSerialisable() bool {
	_, err := json.Marshal(r.metadata)
	return err == nil
}
