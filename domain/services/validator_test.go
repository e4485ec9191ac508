package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
)

func buildResource(t *testing.T, resourceType valueobjects.ResourceType, props map[string]string) *entities.Resource {
	t.Helper()

	name, err := valueobjects.NewName("payments")
	require.NoError(t, err)
	ns, err := valueobjects.NewNamespace("prod")
	require.NoError(t, err)
	r, err := entities.NewResource(resourceType, name, ns, valueobjects.MustVersion("1.0.0"))
	require.NoError(t, err)
	r.SetProperties(props)
	return r
}

func serviceProps() map[string]string {
	return map[string]string{
		"endpoint":    "https://payments.internal",
		"protocol":    "grpc",
		"description": "payment processing",
	}
}

func TestValidateAcceptsWellFormedService(t *testing.T) {
	v := NewSchemaValidator()

	result := v.Validate(buildResource(t, valueobjects.TypeService, serviceProps()))
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidateRejectsNil(t *testing.T) {
	result := NewSchemaValidator().Validate(nil)
	assert.False(t, result.IsValid)
}

func TestValidateRequiredProperties(t *testing.T) {
	v := NewSchemaValidator()

	t.Run("missing", func(t *testing.T) {
		props := serviceProps()
		delete(props, "protocol")
		result := v.Validate(buildResource(t, valueobjects.TypeService, props))
		assert.False(t, result.IsValid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], `"protocol"`)
	})

	t.Run("empty value", func(t *testing.T) {
		props := serviceProps()
		props["protocol"] = "   "
		result := v.Validate(buildResource(t, valueobjects.TypeService, props))
		assert.False(t, result.IsValid)
	})
}

func TestValidateRequiredMetadata(t *testing.T) {
	v := NewSchemaValidator()

	model := buildResource(t, valueobjects.TypeModel, map[string]string{
		"framework":   "xgboost",
		"description": "churn predictor",
	})
	result := v.Validate(model)
	assert.False(t, result.IsValid, "Model requires owner metadata")

	model.SetMetadata(map[string]interface{}{"owner": "ml-platform"})
	result = v.Validate(model)
	assert.True(t, result.IsValid)
}

func TestValidateWarnsOnUndeclaredProperty(t *testing.T) {
	props := serviceProps()
	props["colour"] = "blue"

	result := NewSchemaValidator().Validate(buildResource(t, valueobjects.TypeService, props))
	assert.True(t, result.IsValid, "undeclared properties warn, never block")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `"colour"`)
}

func TestValidateWarnsOnDuplicateTags(t *testing.T) {
	r := buildResource(t, valueobjects.TypeService, serviceProps())
	r.SetTags([]string{"critical", "pci", "critical"})

	result := NewSchemaValidator().Validate(r)
	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "duplicate tags")
}

func TestValidateRejectsUnserialisableMetadata(t *testing.T) {
	r := buildResource(t, valueobjects.TypeService, serviceProps())
	r.SetMetadata(map[string]interface{}{"loop": make(chan int)})

	result := NewSchemaValidator().Validate(r)
	assert.False(t, result.IsValid)
}

func TestValidateUpdateImmutableFields(t *testing.T) {
	v := NewSchemaValidator()

	existing := buildResource(t, valueobjects.TypeService, serviceProps())
	existing.SetID(valueobjects.NewResourceID())

	t.Run("type change blocks", func(t *testing.T) {
		updated := buildResource(t, valueobjects.TypeAPI, map[string]string{
			"endpoint":    "https://payments.internal",
			"description": "payment API",
		})
		updated.SetID(existing.ID())
		result := v.ValidateUpdate(existing, updated)
		assert.False(t, result.IsValid)
	})

	t.Run("id change blocks", func(t *testing.T) {
		updated := buildResource(t, valueobjects.TypeService, serviceProps())
		updated.SetID(valueobjects.NewResourceID())
		result := v.ValidateUpdate(existing, updated)
		assert.False(t, result.IsValid)
	})

	t.Run("createdBy change only warns", func(t *testing.T) {
		existing.SetCreatedBy("alice")
		updated := buildResource(t, valueobjects.TypeService, serviceProps())
		updated.SetID(existing.ID())
		updated.SetCreatedBy("mallory")
		result := v.ValidateUpdate(existing, updated)
		assert.True(t, result.IsValid)
		assert.NotEmpty(t, result.Warnings)
	})
}
