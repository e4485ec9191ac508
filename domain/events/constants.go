package events

// Event source - where catalog events originate from
const (
	// SourceCatalog is the catalog service source
	SourceCatalog = "catalog.core"
)

// Event types emitted by the catalog coordinator
const (
	TypeResourceCreated     = "ResourceCreated"
	TypeResourceUpdated     = "ResourceUpdated"
	TypeResourceDeleted     = "ResourceDeleted"
	TypeRelationshipCreated = "RelationshipCreated"
	TypeRelationshipDeleted = "RelationshipDeleted"
)
