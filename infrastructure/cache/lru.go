package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"catalog/application/ports"
	"catalog/domain/core/entities"
	pkgerrors "catalog/pkg/errors"
)

// ResourceCache is a fixed-size LRU in front of resource lookups
type ResourceCache struct {
	entries *lru.Cache[string, *entities.Resource]
}

// NewResourceCache creates an LRU cache holding up to size resources
func NewResourceCache(size int) (*ResourceCache, error) {
	entries, err := lru.New[string, *entities.Resource](size)
	if err != nil {
		return nil, pkgerrors.NewInvalidf("creating resource cache: %v", err)
	}
	return &ResourceCache{entries: entries}, nil
}

// Get retrieves a cached resource
func (c *ResourceCache) Get(id string) (*entities.Resource, bool) {
	return c.entries.Get(id)
}

// Set stores a resource
func (c *ResourceCache) Set(id string, resource *entities.Resource) {
	c.entries.Add(id, resource)
}

// Remove evicts a resource
func (c *ResourceCache) Remove(id string) {
	c.entries.Remove(id)
}

var _ ports.Cache = (*ResourceCache)(nil)
