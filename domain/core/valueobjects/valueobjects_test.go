package valueobjects

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewName(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"payments", true},
		{"payments-v2", true},
		{"user.store_1", true},
		{"  padded  ", true},
		{"ab", true},
		{"", false},
		{"   ", false},
		{"-leading", false},
		{"trailing-", false},
		{"has space", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := NewName(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewNamespace(t *testing.T) {
	ns, err := NewNamespace("prod-eu")
	require.NoError(t, err)
	assert.Equal(t, "prod-eu", ns.String())

	// empty means "no namespace"
	ns, err = NewNamespace("")
	require.NoError(t, err)
	assert.True(t, ns.IsZero())

	for _, bad := range []string{"Prod", "under_score", "-x", "x-"} {
		_, err := NewNamespace(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewVersion(t *testing.T) {
	// surrounding whitespace is trimmed before validation
	for _, good := range []string{"1.0.0", "0.1.2", "10.20.30", "1.0.0-rc.1", "2.0.0-beta-3", " 1.0.0 "} {
		_, err := NewVersion(good)
		assert.NoError(t, err, good)
	}
	for _, bad := range []string{"", "1", "1.0", "v1.0.0", "1.0.0+build"} {
		_, err := NewVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestVersionOrdering(t *testing.T) {
	assert.True(t, MustVersion("1.9.0").LessThan(MustVersion("1.10.0")))
	assert.True(t, MustVersion("1.0.0-rc.1").LessThan(MustVersion("1.0.0")))
	assert.False(t, MustVersion("2.0.0").LessThan(MustVersion("2.0.0")))
}

func TestResourceIDRoundTrip(t *testing.T) {
	id := NewResourceID()
	parsed, err := NewResourceIDFromString(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equals(parsed))

	_, err = NewResourceIDFromString("not-a-uuid")
	assert.Error(t, err)
}

func TestRelationshipTypeClassification(t *testing.T) {
	_, err := ParseRelationshipType("DependsOn")
	assert.NoError(t, err)
	_, err = ParseRelationshipType("Tangles")
	assert.Error(t, err)

	assert.True(t, RelDependsOn.Acyclic())
	assert.True(t, RelProduces.Acyclic())
	assert.True(t, RelDerivesFrom.Acyclic())
	for _, free := range []RelationshipType{RelConsumes, RelContains, RelTrainedWith, RelHasAccess, RelReferences, RelExtends} {
		assert.False(t, free.Acyclic(), free)
	}
}

func TestParseResourceType(t *testing.T) {
	parsed, err := ParseResourceType("Pipeline")
	require.NoError(t, err)
	assert.Equal(t, TypePipeline, parsed)

	_, err = ParseResourceType("pipeline")
	assert.Error(t, err, "type names are case sensitive")
}
