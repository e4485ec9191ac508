package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog/domain/core/valueobjects"
)

func validResource(t *testing.T) *Resource {
	t.Helper()

	name, err := valueobjects.NewName("payments")
	require.NoError(t, err)
	ns, err := valueobjects.NewNamespace("prod")
	require.NoError(t, err)
	r, err := NewResource(valueobjects.TypeService, name, ns, valueobjects.MustVersion("1.0.0"))
	require.NoError(t, err)
	return r
}

func TestNewResourceDefaults(t *testing.T) {
	r := validResource(t)

	assert.True(t, r.ID().IsZero(), "id is assigned at persist time")
	assert.True(t, r.Active())
	assert.NotNil(t, r.Tags())
	assert.NotNil(t, r.Metadata())
	assert.NotNil(t, r.Properties())
}

func TestNewResourceValidation(t *testing.T) {
	name, _ := valueobjects.NewName("payments")
	version := valueobjects.MustVersion("1.0.0")

	_, err := NewResource(valueobjects.TypeUnknown, name, valueobjects.Namespace{}, version)
	assert.Error(t, err)

	_, err = NewResource(valueobjects.ResourceType("Mainframe"), name, valueobjects.Namespace{}, version)
	assert.Error(t, err)

	_, err = NewResource(valueobjects.TypeService, valueobjects.Name{}, valueobjects.Namespace{}, version)
	assert.Error(t, err)

	_, err = NewResource(valueobjects.TypeService, name, valueobjects.Namespace{}, valueobjects.Version{})
	assert.Error(t, err)
}

func TestTagsReturnCopies(t *testing.T) {
	r := validResource(t)
	r.SetTags([]string{"critical"})

	tags := r.Tags()
	tags[0] = "mutated"
	assert.Equal(t, []string{"critical"}, r.Tags())
}

func TestUniqueTags(t *testing.T) {
	r := validResource(t)
	r.SetTags([]string{"a", "b", "a", "c", "b"})

	assert.Equal(t, []string{"a", "b", "c"}, r.UniqueTags())
	assert.Len(t, r.Tags(), 5, "raw tags keep duplicates")
	assert.True(t, r.HasTag("c"))
	assert.False(t, r.HasTag("d"))
}

func TestAuditStamps(t *testing.T) {
	r := validResource(t)

	created := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	r.StampCreated(created)
	assert.Equal(t, created, r.CreatedAt())
	assert.Equal(t, created, r.UpdatedAt())

	later := created.Add(time.Hour)
	r.Touch(later)
	assert.Equal(t, created, r.CreatedAt())
	assert.Equal(t, later, r.UpdatedAt())

	r.RestoreAudit(created.Add(-time.Hour), "alice")
	assert.Equal(t, created.Add(-time.Hour), r.CreatedAt())
	assert.Equal(t, "alice", r.CreatedBy())
}

func TestMetadataSerialisable(t *testing.T) {
	r := validResource(t)
	r.SetMetadata(map[string]interface{}{"owner": "team-pay", "tier": 1})
	assert.True(t, r.MetadataSerialisable())

	r.SetMetadata(map[string]interface{}{"bad": make(chan int)})
	assert.False(t, r.MetadataSerialisable())
}

func TestNewRelationshipValidation(t *testing.T) {
	a := valueobjects.NewResourceID()
	b := valueobjects.NewResourceID()

	rel, err := NewRelationship(valueobjects.RelDependsOn, a, b)
	require.NoError(t, err)
	assert.True(t, rel.ID().IsZero())

	_, err = NewRelationship(valueobjects.RelationshipType("Tangles"), a, b)
	assert.Error(t, err)

	_, err = NewRelationship(valueobjects.RelDependsOn, a, a)
	assert.Error(t, err, "self-loops are rejected")

	_, err = NewRelationship(valueobjects.RelDependsOn, valueobjects.ResourceID{}, b)
	assert.Error(t, err)
}

func TestRelationshipAttributes(t *testing.T) {
	rel, err := NewRelationship(valueobjects.RelProduces, valueobjects.NewResourceID(), valueobjects.NewResourceID())
	require.NoError(t, err)

	rel.SetDependencyType("runtime")
	rel.SetRequired(true)
	rel.SetVersionConstraint(">= 1.2.0")
	rel.SetTransformation("sql", "SELECT * FROM raw_orders")

	assert.Equal(t, "runtime", rel.DependencyType())
	assert.True(t, rel.Required())
	assert.Equal(t, ">= 1.2.0", rel.VersionConstraint())
	assert.Equal(t, "sql", rel.TransformationType())
	assert.Equal(t, "SELECT * FROM raw_orders", rel.TransformationLogic())
}
