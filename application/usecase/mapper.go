package usecase

import (
	"context"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

// EntityMapper owns bidirectional identity mappings between the two systems.
// Reads go cache-then-store; writes persist first, then refresh the cache, so
// the cache never serves a record staler than what is durable.
type EntityMapper struct {
	repo  outbound.MappingRepository
	cache outbound.MappingCache
	log   logger.Logger
}

// NewEntityMapper builds an EntityMapper.
func NewEntityMapper(repo outbound.MappingRepository, cache outbound.MappingCache, log logger.Logger) *EntityMapper {
	return &EntityMapper{repo: repo, cache: cache, log: log}
}

// SaveMapping upserts the mapping for (entityType, sourceId, sourceSystem)
// and returns the canonical record with the inferred complementary target
// system. Saving over an existing key is an explicit remap.
func (m *EntityMapper) SaveMapping(ctx context.Context, entityType domain.EntityType, sourceID, targetID string, sourceSystem domain.System) (*domain.EntityMapping, error) {
	if !entityType.IsValid() {
		return nil, &domain.ValidationError{Field: "entityType", Reason: "unknown entity type " + string(entityType)}
	}
	if !sourceSystem.IsValid() {
		return nil, &domain.ValidationError{Field: "sourceSystem", Reason: "unknown system " + string(sourceSystem)}
	}
	if sourceID == "" || targetID == "" {
		return nil, &domain.ValidationError{Field: "sourceId", Reason: "source and target ids must not be empty"}
	}

	mapping := domain.NewEntityMapping(entityType, sourceID, targetID, sourceSystem)
	existing, err := m.repo.Get(ctx, entityType, sourceID, sourceSystem)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		mapping.CreatedAt = existing.CreatedAt
	}
	if err := m.repo.Save(ctx, mapping); err != nil {
		return nil, err
	}
	m.cache.Put(mapping.Key(), mapping)

	m.log.Debug(ctx, "Mapping saved", map[string]interface{}{
		"entity_type":   entityType,
		"source_id":     sourceID,
		"source_system": sourceSystem,
		"target_id":     targetID,
	})
	return mapping, nil
}

// GetMapping looks the mapping up, cache first. It returns nil (not an
// error) when no mapping exists; callers branch explicitly on absence.
func (m *EntityMapper) GetMapping(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.EntityMapping, error) {
	key := domain.MappingKey{EntityType: entityType, SourceID: sourceID, SourceSystem: sourceSystem}
	if cached, ok := m.cache.Get(key); ok {
		return cached, nil
	}
	mapping, err := m.repo.Get(ctx, entityType, sourceID, sourceSystem)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, nil
	}
	m.cache.Put(key, mapping)
	return mapping, nil
}

// RequireMapping is GetMapping with absence promoted to a hard
// MissingMappingError, used where a prerequisite mapping must exist.
func (m *EntityMapper) RequireMapping(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.EntityMapping, error) {
	mapping, err := m.GetMapping(ctx, entityType, sourceID, sourceSystem)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, &domain.MissingMappingError{EntityType: entityType, SourceID: sourceID, SourceSystem: sourceSystem}
	}
	return mapping, nil
}

// DeleteMapping removes the persisted row and the cache entry. Used for
// permanent unlinking only.
func (m *EntityMapper) DeleteMapping(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (bool, error) {
	deleted, err := m.repo.Delete(ctx, entityType, sourceID, sourceSystem)
	if err != nil {
		return false, err
	}
	m.cache.Delete(domain.MappingKey{EntityType: entityType, SourceID: sourceID, SourceSystem: sourceSystem})
	if deleted {
		m.log.Info(ctx, "Mapping unlinked", map[string]interface{}{
			"entity_type":   entityType,
			"source_id":     sourceID,
			"source_system": sourceSystem,
		})
	}
	return deleted, nil
}
