package valueobjects

import (
	pkgerrors "catalog/pkg/errors"
)

// ResourceType classifies a catalogued resource
type ResourceType string

const (
	TypeService       ResourceType = "Service"
	TypeDatabase      ResourceType = "Database"
	TypeTable         ResourceType = "Table"
	TypeModel         ResourceType = "Model"
	TypeDataset       ResourceType = "Dataset"
	TypeAPI           ResourceType = "API"
	TypeQueue         ResourceType = "Queue"
	TypeTopic         ResourceType = "Topic"
	TypeStream        ResourceType = "Stream"
	TypeSecret        ResourceType = "Secret"
	TypeConfiguration ResourceType = "Configuration"
	TypeDashboard     ResourceType = "Dashboard"
	TypeReport        ResourceType = "Report"
	TypePipeline      ResourceType = "Pipeline"
	TypeWorkflow      ResourceType = "Workflow"
	TypeUnknown       ResourceType = "Unknown"
)

var resourceTypes = map[ResourceType]struct{}{
	TypeService: {}, TypeDatabase: {}, TypeTable: {}, TypeModel: {},
	TypeDataset: {}, TypeAPI: {}, TypeQueue: {}, TypeTopic: {},
	TypeStream: {}, TypeSecret: {}, TypeConfiguration: {}, TypeDashboard: {},
	TypeReport: {}, TypePipeline: {}, TypeWorkflow: {}, TypeUnknown: {},
}

// ParseResourceType converts a string to a ResourceType
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(s)
	if _, ok := resourceTypes[t]; !ok {
		return TypeUnknown, pkgerrors.NewInvalidf("unknown resource type %q", s)
	}
	return t, nil
}

// Valid checks whether the type is one of the known resource types
func (t ResourceType) Valid() bool {
	_, ok := resourceTypes[t]
	return ok
}

// String returns the string representation
func (t ResourceType) String() string {
	return string(t)
}
