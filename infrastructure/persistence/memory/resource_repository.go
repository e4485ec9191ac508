package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog/application/ports"
	"catalog/domain/core/entities"
	"catalog/domain/core/valueobjects"
	pkgerrors "catalog/pkg/errors"
)

// ResourceRepository is a mutex-guarded in-memory implementation of the
// resource store port. It backs unit tests and local development; semantics
// mirror the postgres adapter, including Conflict on the uniqueness key.
type ResourceRepository struct {
	mu      sync.RWMutex
	byID    map[string]*entities.Resource
	byKey   map[string]string // uniqueness key -> id
	nowFunc func() time.Time
}

// NewResourceRepository creates an empty in-memory resource store
func NewResourceRepository() *ResourceRepository {
	return &ResourceRepository{
		byID:    make(map[string]*entities.Resource),
		byKey:   make(map[string]string),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func uniquenessKey(t valueobjects.ResourceType, name valueobjects.Name, ns valueobjects.Namespace) string {
	return fmt.Sprintf("%s|%s|%s", t, name, ns)
}

func clone(r *entities.Resource) *entities.Resource {
	tags := make([]string, len(r.Tags()))
	copy(tags, r.Tags())
	metadata := make(map[string]interface{}, len(r.Metadata()))
	for k, v := range r.Metadata() {
		metadata[k] = v
	}
	properties := make(map[string]string, len(r.Properties()))
	for k, v := range r.Properties() {
		properties[k] = v
	}
	return entities.ReconstructResource(
		r.ID(), r.Type(), r.Name(), r.Namespace(), r.Version(),
		tags, metadata, properties,
		r.CreatedAt(), r.UpdatedAt(), r.CreatedBy(), r.Active(),
	)
}

// Get retrieves a resource by ID
func (s *ResourceRepository) Get(ctx context.Context, id valueobjects.ResourceID) (*entities.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundf("resource %s not found", id)
	}
	return clone(r), nil
}

// GetByName retrieves a resource by its (name, namespace) pair
func (s *ResourceRepository) GetByName(ctx context.Context, name valueobjects.Name, namespace valueobjects.Namespace) (*entities.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.byID {
		if r.Name().String() == name.String() && r.Namespace().String() == namespace.String() {
			return clone(r), nil
		}
	}
	return nil, pkgerrors.NewNotFoundf("resource %s/%s not found", namespace, name)
}

// ListByType returns all resources of the given type
func (s *ResourceRepository) ListByType(ctx context.Context, t valueobjects.ResourceType) ([]*entities.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Resource
	for _, r := range s.byID {
		if r.Type() == t {
			out = append(out, clone(r))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListByNamespace returns all resources in the given namespace
func (s *ResourceRepository) ListByNamespace(ctx context.Context, ns valueobjects.Namespace) ([]*entities.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Resource
	for _, r := range s.byID {
		if r.Namespace().String() == ns.String() {
			out = append(out, clone(r))
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListByTags returns resources carrying any of the given tags
func (s *ResourceRepository) ListByTags(ctx context.Context, tags []string) ([]*entities.Resource, error) {
	if len(tags) == 0 {
		return []*entities.Resource{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Resource
	for _, r := range s.byID {
		for _, tag := range tags {
			if r.HasTag(tag) {
				out = append(out, clone(r))
				break
			}
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// Create persists a new resource
func (s *ResourceRepository) Create(ctx context.Context, resource *entities.Resource) (*entities.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := uniquenessKey(resource.Type(), resource.Name(), resource.Namespace())
	if _, exists := s.byKey[key]; exists {
		return nil, pkgerrors.NewConflict(fmt.Sprintf(
			"resource %s %q already exists in namespace %q",
			resource.Type(), resource.Name(), resource.Namespace(),
		))
	}

	stored := clone(resource)
	if stored.ID().IsZero() {
		stored.SetID(valueobjects.NewResourceID())
	}
	stored.StampCreated(s.nowFunc())

	s.byID[stored.ID().String()] = stored
	s.byKey[key] = stored.ID().String()

	return clone(stored), nil
}

// Update rewrites the mutable fields of an existing resource
func (s *ResourceRepository) Update(ctx context.Context, resource *entities.Resource) (*entities.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[resource.ID().String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundf("resource %s not found", resource.ID())
	}

	newKey := uniquenessKey(existing.Type(), resource.Name(), resource.Namespace())
	oldKey := uniquenessKey(existing.Type(), existing.Name(), existing.Namespace())
	if newKey != oldKey {
		if _, taken := s.byKey[newKey]; taken {
			return nil, pkgerrors.NewConflict(fmt.Sprintf(
				"resource %s %q already exists in namespace %q",
				existing.Type(), resource.Name(), resource.Namespace(),
			))
		}
	}

	stored := clone(resource)
	stored.RestoreAudit(existing.CreatedAt(), existing.CreatedBy())
	stored.Touch(s.nowFunc())

	s.byID[stored.ID().String()] = stored
	if newKey != oldKey {
		delete(s.byKey, oldKey)
		s.byKey[newKey] = stored.ID().String()
	}

	return clone(stored), nil
}

// Delete removes a resource; returns false when it did not exist
func (s *ResourceRepository) Delete(ctx context.Context, id valueobjects.ResourceID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id.String()]
	if !ok {
		return false, nil
	}

	delete(s.byID, id.String())
	delete(s.byKey, uniquenessKey(r.Type(), r.Name(), r.Namespace()))
	return true, nil
}

// Page returns one page of resources in stable createdAt order
func (s *ResourceRepository) Page(ctx context.Context, pageSize, pageNumber int) ([]*entities.Resource, error) {
	if pageSize < 1 || pageNumber < 1 {
		return nil, pkgerrors.NewInvalid("pageSize and pageNumber must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*entities.Resource, 0, len(s.byID))
	for _, r := range s.byID {
		all = append(all, r)
	}
	sortByCreatedAt(all)

	start := (pageNumber - 1) * pageSize
	if start >= len(all) {
		return []*entities.Resource{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	out := make([]*entities.Resource, 0, end-start)
	for _, r := range all[start:end] {
		out = append(out, clone(r))
	}
	return out, nil
}

// Len returns the number of stored resources. Test helper.
func (s *ResourceRepository) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func sortByCreatedAt(resources []*entities.Resource) {
	sort.Slice(resources, func(i, j int) bool {
		if resources[i].CreatedAt().Equal(resources[j].CreatedAt()) {
			return strings.Compare(resources[i].ID().String(), resources[j].ID().String()) < 0
		}
		return resources[i].CreatedAt().Before(resources[j].CreatedAt())
	})
}

var _ ports.ResourceRepository = (*ResourceRepository)(nil)
