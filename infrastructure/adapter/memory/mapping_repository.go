// Package memory provides in-memory implementations of the outbound storage
// and queue ports. They back unit tests and local runs without postgres or
// redis; the postgres and redisqueue adapters are the production pair.
package memory

import (
	"context"
	"sync"

	"github.com/syncora/syncora/domain"
)

// MappingRepository is an in-memory outbound.MappingRepository.
type MappingRepository struct {
	mu    sync.RWMutex
	table map[domain.MappingKey]domain.EntityMapping
}

// NewMappingRepository builds an empty repository.
func NewMappingRepository() *MappingRepository {
	return &MappingRepository{table: make(map[domain.MappingKey]domain.EntityMapping)}
}

func (r *MappingRepository) Save(ctx context.Context, mapping *domain.EntityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[mapping.Key()] = *mapping
	return nil
}

func (r *MappingRepository) Get(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.EntityMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mapping, ok := r.table[domain.MappingKey{EntityType: entityType, SourceID: sourceID, SourceSystem: sourceSystem}]
	if !ok {
		return nil, nil
	}
	cloned := mapping
	return &cloned, nil
}

func (r *MappingRepository) Delete(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (bool, error) {
	key := domain.MappingKey{EntityType: entityType, SourceID: sourceID, SourceSystem: sourceSystem}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.table[key]; !ok {
		return false, nil
	}
	delete(r.table, key)
	return true, nil
}

// Len returns the number of stored mappings.
func (r *MappingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}
