package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"catalog/application/ports"
	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
	pkgerrors "catalog/pkg/errors"
)

// uniqueViolation is the postgres error code for unique constraint breaches
const uniqueViolation = "23505"

// Schema is the resource store DDL. Applied by the operator or a migration
// runner; kept here so the adapter and its schema travel together.
const Schema = `
CREATE TABLE IF NOT EXISTS resources (
    id          UUID PRIMARY KEY,
    type        TEXT        NOT NULL,
    name        TEXT        NOT NULL,
    namespace   TEXT,
    version     TEXT        NOT NULL,
    tags        TEXT[]      NOT NULL DEFAULT '{}',
    metadata    JSONB       NOT NULL DEFAULT '{}',
    properties  JSONB       NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    created_by  TEXT        NOT NULL DEFAULT '',
    active      BOOLEAN     NOT NULL DEFAULT TRUE,
    row_version BIGINT      NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS resources_type_name_namespace_key
    ON resources (type, name, COALESCE(namespace, ''));

CREATE INDEX IF NOT EXISTS resources_type_idx      ON resources (type);
CREATE INDEX IF NOT EXISTS resources_namespace_idx ON resources (namespace);
CREATE INDEX IF NOT EXISTS resources_tags_idx      ON resources USING GIN (tags);
CREATE INDEX IF NOT EXISTS resources_created_idx   ON resources (created_at, id);
`

const selectColumns = `id, type, name, namespace, version, tags, metadata, properties, created_at, updated_at, created_by, active`

// resourceRow is the scan target for the resources table
type resourceRow struct {
	ID         string         `db:"id"`
	Type       string         `db:"type"`
	Name       string         `db:"name"`
	Namespace  sql.NullString `db:"namespace"`
	Version    string         `db:"version"`
	Tags       pq.StringArray `db:"tags"`
	Metadata   []byte         `db:"metadata"`
	Properties []byte         `db:"properties"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
	CreatedBy  string         `db:"created_by"`
	Active     bool           `db:"active"`
}

func (row *resourceRow) toEntity() (*entities.Resource, error) {
	id, err := valueobjects.NewResourceIDFromString(row.ID)
	if err != nil {
		return nil, pkgerrors.NewInternal("stored resource has invalid id", err)
	}
	name, err := valueobjects.NewName(row.Name)
	if err != nil {
		return nil, pkgerrors.NewInternal("stored resource has invalid name", err)
	}
	ns, err := valueobjects.NewNamespace(row.Namespace.String)
	if err != nil {
		return nil, pkgerrors.NewInternal("stored resource has invalid namespace", err)
	}
	version, err := valueobjects.NewVersion(row.Version)
	if err != nil {
		return nil, pkgerrors.NewInternal("stored resource has invalid version", err)
	}

	var metadata map[string]interface{}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, pkgerrors.NewInternal("stored resource metadata is corrupt", err)
		}
	}
	var properties map[string]string
	if len(row.Properties) > 0 {
		if err := json.Unmarshal(row.Properties, &properties); err != nil {
			return nil, pkgerrors.NewInternal("stored resource properties are corrupt", err)
		}
	}

	return entities.ReconstructResource(
		id, valueobjects.ResourceType(row.Type), name, ns, version,
		[]string(row.Tags), metadata, properties,
		row.CreatedAt, row.UpdatedAt, row.CreatedBy, row.Active,
	), nil
}

// ResourceRepository is the sqlx-backed resource store of record
type ResourceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewResourceRepository creates the postgres resource store
func NewResourceRepository(db *sqlx.DB, logger *zap.Logger) *ResourceRepository {
	return &ResourceRepository{db: db, logger: logger}
}

// Migrate applies the resource store schema
func (s *ResourceRepository) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return pkgerrors.NewUnavailable("applying resource store schema", err)
	}
	return nil
}

func namespaceParam(ns valueobjects.Namespace) sql.NullString {
	if ns.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: ns.String(), Valid: true}
}

// Get retrieves a resource by ID
func (s *ResourceRepository) Get(ctx context.Context, id valueobjects.ResourceID) (*entities.Resource, error) {
	var row resourceRow
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE id = $1`, selectColumns)
	if err := s.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundf("resource %s not found", id)
		}
		return nil, pkgerrors.NewUnavailable("reading resource", err)
	}
	return row.toEntity()
}

// GetByName retrieves a resource by its (name, namespace) pair
func (s *ResourceRepository) GetByName(ctx context.Context, name valueobjects.Name, namespace valueobjects.Namespace) (*entities.Resource, error) {
	var row resourceRow
	query := fmt.Sprintf(
		`SELECT %s FROM resources WHERE name = $1 AND namespace IS NOT DISTINCT FROM $2`,
		selectColumns,
	)
	if err := s.db.GetContext(ctx, &row, query, name.String(), namespaceParam(namespace)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundf("resource %s/%s not found", namespace, name)
		}
		return nil, pkgerrors.NewUnavailable("reading resource", err)
	}
	return row.toEntity()
}

func (s *ResourceRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entities.Resource, error) {
	var rows []resourceRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, pkgerrors.NewUnavailable("listing resources", err)
	}
	out := make([]*entities.Resource, 0, len(rows))
	for i := range rows {
		r, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ListByType returns all resources of the given type
func (s *ResourceRepository) ListByType(ctx context.Context, t valueobjects.ResourceType) ([]*entities.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE type = $1 ORDER BY created_at, id`, selectColumns)
	return s.list(ctx, query, t.String())
}

// ListByNamespace returns all resources in the given namespace
func (s *ResourceRepository) ListByNamespace(ctx context.Context, ns valueobjects.Namespace) ([]*entities.Resource, error) {
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE namespace IS NOT DISTINCT FROM $1 ORDER BY created_at, id`, selectColumns)
	return s.list(ctx, query, namespaceParam(ns))
}

// ListByTags returns resources carrying any of the given tags
func (s *ResourceRepository) ListByTags(ctx context.Context, tags []string) ([]*entities.Resource, error) {
	if len(tags) == 0 {
		return []*entities.Resource{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM resources WHERE tags && $1 ORDER BY created_at, id`, selectColumns)
	return s.list(ctx, query, pq.Array(tags))
}

// Create persists a new resource; Conflict when the uniqueness key is taken
func (s *ResourceRepository) Create(ctx context.Context, resource *entities.Resource) (*entities.Resource, error) {
	if resource.ID().IsZero() {
		resource.SetID(valueobjects.NewResourceID())
	}
	resource.StampCreated(time.Now().UTC())

	metadata, err := json.Marshal(resource.Metadata())
	if err != nil {
		return nil, pkgerrors.NewInvalid("resource metadata is not JSON-serialisable")
	}
	properties, err := json.Marshal(resource.Properties())
	if err != nil {
		return nil, pkgerrors.NewInternal("marshalling resource properties", err)
	}

	const query = `
INSERT INTO resources (id, type, name, namespace, version, tags, metadata, properties, created_at, updated_at, created_by, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.db.ExecContext(ctx, query,
		resource.ID().String(),
		resource.Type().String(),
		resource.Name().String(),
		namespaceParam(resource.Namespace()),
		resource.Version().String(),
		pq.Array(resource.Tags()),
		metadata,
		properties,
		resource.CreatedAt(),
		resource.UpdatedAt(),
		resource.CreatedBy(),
		resource.Active(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, pkgerrors.NewConflict(fmt.Sprintf(
				"resource %s %q already exists in namespace %q",
				resource.Type(), resource.Name(), resource.Namespace(),
			))
		}
		return nil, pkgerrors.NewUnavailable("creating resource", err)
	}

	return resource, nil
}

// Update rewrites the mutable fields of an existing resource and bumps
// updated_at; created_at and created_by are never touched
func (s *ResourceRepository) Update(ctx context.Context, resource *entities.Resource) (*entities.Resource, error) {
	metadata, err := json.Marshal(resource.Metadata())
	if err != nil {
		return nil, pkgerrors.NewInvalid("resource metadata is not JSON-serialisable")
	}
	properties, err := json.Marshal(resource.Properties())
	if err != nil {
		return nil, pkgerrors.NewInternal("marshalling resource properties", err)
	}

	const query = `
UPDATE resources
SET name = $2, namespace = $3, version = $4, tags = $5, metadata = $6,
    properties = $7, active = $8, updated_at = $9, row_version = row_version + 1
WHERE id = $1
RETURNING created_at, created_by`

	now := time.Now().UTC()
	var createdAt time.Time
	var createdBy string
	err = s.db.QueryRowContext(ctx, query,
		resource.ID().String(),
		resource.Name().String(),
		namespaceParam(resource.Namespace()),
		resource.Version().String(),
		pq.Array(resource.Tags()),
		metadata,
		properties,
		resource.Active(),
		now,
	).Scan(&createdAt, &createdBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundf("resource %s not found", resource.ID())
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, pkgerrors.NewConflict(fmt.Sprintf(
				"resource %s %q already exists in namespace %q",
				resource.Type(), resource.Name(), resource.Namespace(),
			))
		}
		return nil, pkgerrors.NewUnavailable("updating resource", err)
	}

	resource.RestoreAudit(createdAt, createdBy)
	resource.Touch(now)
	return resource, nil
}

// Delete removes a resource; returns false when it did not exist
func (s *ResourceRepository) Delete(ctx context.Context, id valueobjects.ResourceID) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id.String())
	if err != nil {
		return false, pkgerrors.NewUnavailable("deleting resource", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, pkgerrors.NewInternal("reading delete result", err)
	}
	return affected > 0, nil
}

// Page returns one page of resources in stable (created_at, id) order
func (s *ResourceRepository) Page(ctx context.Context, pageSize, pageNumber int) ([]*entities.Resource, error) {
	if pageSize < 1 || pageNumber < 1 {
		return nil, pkgerrors.NewInvalid("pageSize and pageNumber must be positive")
	}
	query := fmt.Sprintf(`SELECT %s FROM resources ORDER BY created_at, id LIMIT $1 OFFSET $2`, selectColumns)
	return s.list(ctx, query, pageSize, (pageNumber-1)*pageSize)
}

var _ ports.ResourceRepository = (*ResourceRepository)(nil)
