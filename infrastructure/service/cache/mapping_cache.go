package cache

import (
	"sync"

	"github.com/syncora/syncora/domain"
)

// MappingCache is the process-local lookup table in front of the mapping
// repository. Writes are linearized per key: a read after a concurrent write
// observes the written record, never something staler than what has been
// persisted.
type MappingCache struct {
	mu      sync.RWMutex
	entries map[domain.MappingKey]*domain.EntityMapping
}

// NewMappingCache builds an empty cache.
func NewMappingCache() *MappingCache {
	return &MappingCache{entries: make(map[domain.MappingKey]*domain.EntityMapping)}
}

// Get returns the cached mapping for the key.
func (c *MappingCache) Get(key domain.MappingKey) (*domain.EntityMapping, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mapping, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	cloned := *mapping
	return &cloned, true
}

// Put stores the mapping under its key, replacing any previous record.
func (c *MappingCache) Put(key domain.MappingKey, mapping *domain.EntityMapping) {
	cloned := *mapping
	c.mu.Lock()
	c.entries[key] = &cloned
	c.mu.Unlock()
}

// Delete removes the key.
func (c *MappingCache) Delete(key domain.MappingKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached mappings.
func (c *MappingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
