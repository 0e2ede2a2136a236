// Package postgres implements the persistence ports on PostgreSQL using
// database/sql with lib/pq. Every repository takes an injected *sql.DB so
// callers own pooling and lifecycle.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
)

type MappingRepositoryAdapter struct {
	db *sql.DB
}

func NewMappingRepositoryAdapter(db *sql.DB) outbound.MappingRepository {
	return &MappingRepositoryAdapter{db: db}
}

func (r *MappingRepositoryAdapter) Save(ctx context.Context, mapping *domain.EntityMapping) error {
	if mapping == nil {
		return &domain.ValidationError{Field: "mapping", Reason: "must not be nil"}
	}

	query := `
		INSERT INTO entity_mappings (entity_type, source_id, source_system, target_system, target_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type, source_id, source_system)
		DO UPDATE SET target_system = EXCLUDED.target_system,
		              target_id     = EXCLUDED.target_id,
		              updated_at    = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		mapping.EntityType,
		mapping.SourceID,
		mapping.SourceSystem,
		mapping.TargetSystem,
		mapping.TargetID,
		mapping.CreatedAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return &domain.PersistenceError{Op: "mapping_save", Err: err}
	}
	return nil
}

func (r *MappingRepositoryAdapter) Get(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.EntityMapping, error) {
	query := `
		SELECT entity_type, source_id, source_system, target_system, target_id, created_at, updated_at
		FROM entity_mappings
		WHERE entity_type = $1 AND source_id = $2 AND source_system = $3
	`

	var mapping domain.EntityMapping
	err := r.db.QueryRowContext(ctx, query, entityType, sourceID, sourceSystem).Scan(
		&mapping.EntityType,
		&mapping.SourceID,
		&mapping.SourceSystem,
		&mapping.TargetSystem,
		&mapping.TargetID,
		&mapping.CreatedAt,
		&mapping.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &domain.PersistenceError{Op: "mapping_get", Err: err}
	}
	return &mapping, nil
}

func (r *MappingRepositoryAdapter) Delete(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (bool, error) {
	query := `
		DELETE FROM entity_mappings
		WHERE entity_type = $1 AND source_id = $2 AND source_system = $3
	`

	result, err := r.db.ExecContext(ctx, query, entityType, sourceID, sourceSystem)
	if err != nil {
		return false, &domain.PersistenceError{Op: "mapping_delete", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, &domain.PersistenceError{Op: "mapping_delete", Err: err}
	}
	return affected > 0, nil
}
