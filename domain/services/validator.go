package services

import (
	"fmt"
	"strings"

	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
)

// ValidationResult reports the outcome of schema validation. Errors block the
// operation; warnings are surfaced to the log and the operation proceeds.
type ValidationResult struct {
	IsValid  bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// typeRules declares the property and metadata contract for one resource type
type typeRules struct {
	requiredProperties []string
	optionalProperties []string
	requiredMetadata   []string
}

// schemaTable is the static per-type rule set. Types absent from the table
// have no required properties beyond the shared invariants.
var schemaTable = map[valueobjects.ResourceType]typeRules{
	valueobjects.TypeService: {
		requiredProperties: []string{"endpoint", "protocol", "description"},
		optionalProperties: []string{"health_check", "team", "tier", "repository"},
	},
	valueobjects.TypeDatabase: {
		requiredProperties: []string{"connection_string", "provider", "description", "environment"},
		optionalProperties: []string{"replica_count", "backup_schedule"},
	},
	valueobjects.TypeTable: {
		requiredProperties: []string{"database", "schema", "description"},
		optionalProperties: []string{"row_count_estimate", "retention"},
	},
	valueobjects.TypeModel: {
		requiredProperties: []string{"framework", "description"},
		optionalProperties: []string{"accuracy", "training_date", "registry_url"},
		requiredMetadata:   []string{"owner"},
	},
	valueobjects.TypeDataset: {
		requiredProperties: []string{"format", "location", "description"},
		optionalProperties: []string{"size_bytes", "refresh_schedule"},
	},
	valueobjects.TypeAPI: {
		requiredProperties: []string{"endpoint", "description"},
		optionalProperties: []string{"openapi_spec", "auth_mode", "rate_limit"},
	},
	valueobjects.TypeQueue: {
		requiredProperties: []string{"broker", "description"},
		optionalProperties: []string{"max_depth", "visibility_timeout"},
	},
	valueobjects.TypeTopic: {
		requiredProperties: []string{"broker", "description"},
		optionalProperties: []string{"partitions", "retention_ms"},
	},
	valueobjects.TypeStream: {
		requiredProperties: []string{"broker", "description"},
		optionalProperties: []string{"shards"},
	},
	valueobjects.TypeSecret: {
		requiredProperties: []string{"vault", "description"},
		optionalProperties: []string{"rotation_schedule"},
	},
	valueobjects.TypeConfiguration: {
		requiredProperties: []string{"description"},
		optionalProperties: []string{"format", "source"},
	},
	valueobjects.TypeDashboard: {
		requiredProperties: []string{"url", "description"},
		optionalProperties: []string{"provider"},
	},
	valueobjects.TypeReport: {
		requiredProperties: []string{"description"},
		optionalProperties: []string{"schedule", "recipients"},
	},
	valueobjects.TypePipeline: {
		requiredProperties: []string{"orchestrator", "description"},
		optionalProperties: []string{"schedule", "sla_minutes"},
	},
	valueobjects.TypeWorkflow: {
		requiredProperties: []string{"orchestrator", "description"},
		optionalProperties: []string{"schedule"},
	},
}

// SchemaValidator validates resources against the per-type rule table
type SchemaValidator struct{}

// NewSchemaValidator creates a schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Validate checks a resource against the shared invariants and the rule set
// for its type
func (v *SchemaValidator) Validate(resource *entities.Resource) ValidationResult {
	result := ValidationResult{IsValid: true}

	if resource == nil {
		result.addError("resource is nil")
		return result
	}

	if !resource.Type().Valid() || resource.Type() == valueobjects.TypeUnknown {
		result.addError("resource type %q is not a known type", resource.Type())
		return result
	}

	if resource.Name().IsZero() {
		result.addError("resource name is required")
	}
	if resource.Version().IsZero() {
		result.addError("resource version is required")
	}

	if !resource.MetadataSerialisable() {
		result.addError("resource metadata is not JSON-serialisable")
	}

	rules := schemaTable[resource.Type()]
	props := resource.Properties()

	for _, key := range rules.requiredProperties {
		val, ok := props[key]
		if !ok {
			result.addError("required property %q is missing for type %s", key, resource.Type())
			continue
		}
		if strings.TrimSpace(val) == "" {
			result.addError("required property %q is empty", key)
		}
	}

	for _, key := range rules.requiredMetadata {
		if _, ok := resource.Metadata()[key]; !ok {
			result.addError("required metadata %q is missing for type %s", key, resource.Type())
		}
	}

	known := make(map[string]struct{}, len(rules.requiredProperties)+len(rules.optionalProperties))
	for _, key := range rules.requiredProperties {
		known[key] = struct{}{}
	}
	for _, key := range rules.optionalProperties {
		known[key] = struct{}{}
	}
	for key := range props {
		if _, ok := known[key]; !ok {
			result.addWarning("property %q is not declared for type %s", key, resource.Type())
		}
	}

	if dupes := duplicateTags(resource.Tags()); len(dupes) > 0 {
		result.addWarning("duplicate tags: %s", strings.Join(dupes, ", "))
	}

	return result
}

// ValidateUpdate validates an updated resource and additionally errors on any
// attempted change to immutable fields
func (v *SchemaValidator) ValidateUpdate(existing, updated *entities.Resource) ValidationResult {
	result := v.Validate(updated)

	if existing == nil || updated == nil {
		if existing == nil {
			result.addError("existing resource is nil")
		}
		return result
	}

	if !updated.ID().IsZero() && !existing.ID().Equals(updated.ID()) {
		result.addError("resource id is immutable")
	}
	if existing.Type() != updated.Type() {
		result.addError("resource type is immutable")
	}
	if !updated.CreatedAt().IsZero() && !existing.CreatedAt().Equal(updated.CreatedAt()) {
		result.addWarning("createdAt cannot be changed on update; stored value retained")
	}
	if updated.CreatedBy() != "" && existing.CreatedBy() != updated.CreatedBy() {
		result.addWarning("createdBy cannot be changed on update; stored value retained")
	}

	return result
}

func duplicateTags(tags []string) []string {
	seen := make(map[string]int, len(tags))
	var dupes []string
	for _, t := range tags {
		seen[t]++
		if seen[t] == 2 {
			dupes = append(dupes, t)
		}
	}
	return dupes
}
