package rest

import (
	"time"

	"catalog/application/ports"
	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
)

// resourceRequest is the write-side payload for resources
type resourceRequest struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Namespace  string                 `json:"namespace,omitempty"`
	Version    string                 `json:"version"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Properties map[string]string      `json:"properties,omitempty"`
	CreatedBy  string                 `json:"createdBy,omitempty"`
	Active     *bool                  `json:"active,omitempty"`
}

func (req *resourceRequest) toEntity() (*entities.Resource, error) {
	resourceType, err := valueobjects.ParseResourceType(req.Type)
	if err != nil {
		return nil, err
	}
	name, err := valueobjects.NewName(req.Name)
	if err != nil {
		return nil, err
	}
	namespace, err := valueobjects.NewNamespace(req.Namespace)
	if err != nil {
		return nil, err
	}
	version, err := valueobjects.NewVersion(req.Version)
	if err != nil {
		return nil, err
	}

	resource, err := entities.NewResource(resourceType, name, namespace, version)
	if err != nil {
		return nil, err
	}
	resource.SetTags(req.Tags)
	resource.SetMetadata(req.Metadata)
	resource.SetProperties(req.Properties)
	resource.SetCreatedBy(req.CreatedBy)
	if req.Active != nil {
		resource.SetActive(*req.Active)
	}
	return resource, nil
}

// resourceResponse is the read-side projection of a resource
type resourceResponse struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Namespace  string                 `json:"namespace,omitempty"`
	Version    string                 `json:"version"`
	Tags       []string               `json:"tags"`
	Metadata   map[string]interface{} `json:"metadata"`
	Properties map[string]string      `json:"properties"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	CreatedBy  string                 `json:"createdBy,omitempty"`
	Active     bool                   `json:"active"`
}

func toResourceResponse(r *entities.Resource) resourceResponse {
	return resourceResponse{
		ID:         r.ID().String(),
		Type:       r.Type().String(),
		Name:       r.Name().String(),
		Namespace:  r.Namespace().String(),
		Version:    r.Version().String(),
		Tags:       r.Tags(),
		Metadata:   r.Metadata(),
		Properties: r.Properties(),
		CreatedAt:  r.CreatedAt(),
		UpdatedAt:  r.UpdatedAt(),
		CreatedBy:  r.CreatedBy(),
		Active:     r.Active(),
	}
}

func toResourceResponses(resources []*entities.Resource) []resourceResponse {
	out := make([]resourceResponse, 0, len(resources))
	for _, r := range resources {
		out = append(out, toResourceResponse(r))
	}
	return out
}

// relationshipRequest is the write-side payload for relationships
type relationshipRequest struct {
	Type                string `json:"type"`
	SourceID            string `json:"sourceId"`
	TargetID            string `json:"targetId"`
	Bidirectional       bool   `json:"bidirectional,omitempty"`
	DependencyType      string `json:"dependencyType,omitempty"`
	Required            bool   `json:"required,omitempty"`
	VersionConstraint   string `json:"versionConstraint,omitempty"`
	TransformationType  string `json:"transformationType,omitempty"`
	TransformationLogic string `json:"transformationLogic,omitempty"`
	CreatedBy           string `json:"createdBy,omitempty"`
}

func (req *relationshipRequest) toEntity() (*entities.Relationship, error) {
	relType, err := valueobjects.ParseRelationshipType(req.Type)
	if err != nil {
		return nil, err
	}
	sourceID, err := valueobjects.NewResourceIDFromString(req.SourceID)
	if err != nil {
		return nil, err
	}
	targetID, err := valueobjects.NewResourceIDFromString(req.TargetID)
	if err != nil {
		return nil, err
	}

	rel, err := entities.NewRelationship(relType, sourceID, targetID)
	if err != nil {
		return nil, err
	}
	rel.SetBidirectional(req.Bidirectional)
	rel.SetDependencyType(req.DependencyType)
	rel.SetRequired(req.Required)
	rel.SetVersionConstraint(req.VersionConstraint)
	rel.SetTransformation(req.TransformationType, req.TransformationLogic)
	rel.SetCreatedBy(req.CreatedBy)
	return rel, nil
}

// relationshipResponse is the read-side projection of a relationship
type relationshipResponse struct {
	ID                  string    `json:"id"`
	Type                string    `json:"type"`
	SourceID            string    `json:"sourceId"`
	TargetID            string    `json:"targetId"`
	Bidirectional       bool      `json:"bidirectional"`
	DependencyType      string    `json:"dependencyType,omitempty"`
	Required            bool      `json:"required"`
	VersionConstraint   string    `json:"versionConstraint,omitempty"`
	TransformationType  string    `json:"transformationType,omitempty"`
	TransformationLogic string    `json:"transformationLogic,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	CreatedBy           string    `json:"createdBy,omitempty"`
}

func toRelationshipResponse(rel *entities.Relationship) relationshipResponse {
	return relationshipResponse{
		ID:                  rel.ID().String(),
		Type:                rel.Type().String(),
		SourceID:            rel.SourceID().String(),
		TargetID:            rel.TargetID().String(),
		Bidirectional:       rel.Bidirectional(),
		DependencyType:      rel.DependencyType(),
		Required:            rel.Required(),
		VersionConstraint:   rel.VersionConstraint(),
		TransformationType:  rel.TransformationType(),
		TransformationLogic: rel.TransformationLogic(),
		CreatedAt:           rel.CreatedAt(),
		CreatedBy:           rel.CreatedBy(),
	}
}

func toRelationshipResponses(rels []*entities.Relationship) []relationshipResponse {
	out := make([]relationshipResponse, 0, len(rels))
	for _, rel := range rels {
		out = append(out, toRelationshipResponse(rel))
	}
	return out
}

// projectionResponse mirrors the graph traversal read model
type projectionResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Namespace string    `json:"namespace,omitempty"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Active    bool      `json:"active"`
}

func toProjectionResponses(projections []ports.ResourceProjection) []projectionResponse {
	out := make([]projectionResponse, 0, len(projections))
	for _, p := range projections {
		out = append(out, projectionResponse{
			ID:        p.ID,
			Type:      p.Type,
			Name:      p.Name,
			Namespace: p.Namespace,
			Version:   p.Version,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
			Active:    p.Active,
		})
	}
	return out
}
