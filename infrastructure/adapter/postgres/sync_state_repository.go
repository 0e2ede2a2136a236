package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

type SyncStateRepositoryAdapter struct {
	db  *sql.DB
	log logger.Logger
}

func NewSyncStateRepositoryAdapter(db *sql.DB, log logger.Logger) outbound.SyncStateRepository {
	return &SyncStateRepositoryAdapter{db: db, log: log}
}

func (r *SyncStateRepositoryAdapter) Get(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.SyncStatus, error) {
	query := `
		SELECT entity_type, source_id, source_system, target_system, target_id, last_sync_time, status, error_message
		FROM sync_states
		WHERE entity_type = $1 AND source_id = $2 AND source_system = $3
	`

	var status domain.SyncStatus
	var targetID, errorMessage sql.NullString
	err := r.db.QueryRowContext(ctx, query, entityType, sourceID, sourceSystem).Scan(
		&status.EntityType,
		&status.SourceID,
		&status.SourceSystem,
		&status.TargetSystem,
		&targetID,
		&status.LastSyncTime,
		&status.Status,
		&errorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UnsyncedStatus(entityType, sourceID, sourceSystem), nil
		}
		return nil, &domain.PersistenceError{Op: "state_get", Err: err}
	}
	status.TargetID = targetID.String
	status.ErrorMessage = errorMessage.String
	status.Synced = true
	return &status, nil
}

// Update upserts the status row. NULLIF keeps the stored target id when the
// caller passes an empty one.
func (r *SyncStateRepositoryAdapter) Update(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System, targetID string, status domain.SyncState, errorMessage string) error {
	query := `
		INSERT INTO sync_states (entity_type, source_id, source_system, target_system, target_id, last_sync_time, status, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), $6, NULLIF($7, ''))
		ON CONFLICT (entity_type, source_id, source_system)
		DO UPDATE SET target_id      = COALESCE(NULLIF(EXCLUDED.target_id, ''), sync_states.target_id),
		              last_sync_time = EXCLUDED.last_sync_time,
		              status         = EXCLUDED.status,
		              error_message  = EXCLUDED.error_message
	`

	_, err := r.db.ExecContext(ctx, query,
		entityType,
		sourceID,
		sourceSystem,
		sourceSystem.Complement(),
		targetID,
		status,
		errorMessage,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "state_update", Err: err}
	}
	return nil
}

func (r *SyncStateRepositoryAdapter) MarkForResync(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) error {
	query := `
		INSERT INTO sync_states (entity_type, source_id, source_system, target_system, target_id, last_sync_time, status, error_message)
		VALUES ($1, $2, $3, $4, NULL, NOW(), $5, NULL)
		ON CONFLICT (entity_type, source_id, source_system)
		DO UPDATE SET last_sync_time = EXCLUDED.last_sync_time,
		              status         = EXCLUDED.status,
		              error_message  = NULL
	`

	_, err := r.db.ExecContext(ctx, query, entityType, sourceID, sourceSystem, sourceSystem.Complement(), domain.SyncPending)
	if err != nil {
		return &domain.PersistenceError{Op: "state_mark_resync", Err: err}
	}
	return nil
}

func (r *SyncStateRepositoryAdapter) GetPending(ctx context.Context, entityType domain.EntityType, sourceSystem domain.System, limit int) ([]*domain.SyncStatus, error) {
	query := `
		SELECT entity_type, source_id, source_system, target_system, target_id, last_sync_time, status, error_message
		FROM sync_states
		WHERE status = $1
		  AND ($2 = '' OR entity_type = $2)
		  AND ($3 = '' OR source_system = $3)
		ORDER BY last_sync_time ASC
		LIMIT $4
	`
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, query, domain.SyncPending, string(entityType), string(sourceSystem), limit)
}

func (r *SyncStateRepositoryAdapter) GetFailed(ctx context.Context, limit int) ([]*domain.SyncStatus, error) {
	query := `
		SELECT entity_type, source_id, source_system, target_system, target_id, last_sync_time, status, error_message
		FROM sync_states
		WHERE status = $1
		ORDER BY last_sync_time ASC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, query, domain.SyncFailed, limit)
}

func (r *SyncStateRepositoryAdapter) list(ctx context.Context, query string, args ...interface{}) ([]*domain.SyncStatus, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "state_list", Err: err}
	}
	defer rows.Close()

	var out []*domain.SyncStatus
	for rows.Next() {
		var row domain.SyncStatus
		var targetID, errorMessage sql.NullString
		if err := rows.Scan(
			&row.EntityType,
			&row.SourceID,
			&row.SourceSystem,
			&row.TargetSystem,
			&targetID,
			&row.LastSyncTime,
			&row.Status,
			&errorMessage,
		); err != nil {
			return nil, &domain.PersistenceError{Op: "state_list", Err: err}
		}
		row.TargetID = targetID.String
		row.ErrorMessage = errorMessage.String
		row.Synced = true
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "state_list", Err: err}
	}
	return out, nil
}

// Stats is a single GROUP BY query, so the snapshot is internally consistent.
func (r *SyncStateRepositoryAdapter) Stats(ctx context.Context) (*domain.SyncStats, error) {
	query := `
		SELECT entity_type, source_system, status, COUNT(*)
		FROM sync_states
		GROUP BY entity_type, source_system, status
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "state_stats", Err: err}
	}
	defer rows.Close()

	stats := &domain.SyncStats{ByGroup: make(map[domain.StatsKey]domain.StatusCounts)}
	for rows.Next() {
		var entityType domain.EntityType
		var sourceSystem domain.System
		var status domain.SyncState
		var count int
		if err := rows.Scan(&entityType, &sourceSystem, &status, &count); err != nil {
			return nil, &domain.PersistenceError{Op: "state_stats", Err: err}
		}
		key := domain.StatsKey{EntityType: entityType, SourceSystem: sourceSystem}
		counts := stats.ByGroup[key]
		switch status {
		case domain.SyncPending:
			counts.Pending += count
		case domain.SyncCompleted:
			counts.Completed += count
		case domain.SyncFailed:
			counts.Failed += count
		}
		stats.ByGroup[key] = counts
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "state_stats", Err: err}
	}
	return stats, nil
}

// Reset bulk-deletes status rows. Destructive, so every call is logged.
func (r *SyncStateRepositoryAdapter) Reset(ctx context.Context, entityType domain.EntityType) (int, error) {
	query := `DELETE FROM sync_states WHERE $1 = '' OR entity_type = $1`

	result, err := r.db.ExecContext(ctx, query, string(entityType))
	if err != nil {
		return 0, &domain.PersistenceError{Op: "state_reset", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, &domain.PersistenceError{Op: "state_reset", Err: err}
	}
	r.log.Warn(ctx, "Sync states reset", map[string]interface{}{
		"entity_type": string(entityType),
		"removed":     affected,
	})
	return int(affected), nil
}
