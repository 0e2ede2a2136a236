package domain

import (
	"fmt"
	"time"
)

// EntityMapping links one object's identity in the source system to its
// counterpart in the target system. At most one active mapping exists per
// (entityType, sourceId, sourceSystem) key.
type EntityMapping struct {
	EntityType   EntityType `json:"entity_type"`
	SourceID     string     `json:"source_id"`
	SourceSystem System     `json:"source_system"`
	TargetSystem System     `json:"target_system"`
	TargetID     string     `json:"target_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// MappingKey is the unique lookup key of an entity mapping.
type MappingKey struct {
	EntityType   EntityType
	SourceID     string
	SourceSystem System
}

// Key returns the mapping's unique lookup key.
func (m *EntityMapping) Key() MappingKey {
	return MappingKey{EntityType: m.EntityType, SourceID: m.SourceID, SourceSystem: m.SourceSystem}
}

func (k MappingKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.EntityType, k.SourceSystem, k.SourceID)
}

// NewEntityMapping builds a mapping with the target system inferred as the
// complement of the source.
func NewEntityMapping(entityType EntityType, sourceID, targetID string, sourceSystem System) *EntityMapping {
	now := time.Now().UTC()
	return &EntityMapping{
		EntityType:   entityType,
		SourceID:     sourceID,
		SourceSystem: sourceSystem,
		TargetSystem: sourceSystem.Complement(),
		TargetID:     targetID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
