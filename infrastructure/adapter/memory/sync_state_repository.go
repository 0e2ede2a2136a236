package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/syncora/syncora/domain"
)

type stateKey struct {
	entityType   domain.EntityType
	sourceID     string
	sourceSystem domain.System
}

// SyncStateRepository is an in-memory outbound.SyncStateRepository.
type SyncStateRepository struct {
	mu    sync.Mutex
	table map[stateKey]domain.SyncStatus
}

// NewSyncStateRepository builds an empty repository.
func NewSyncStateRepository() *SyncStateRepository {
	return &SyncStateRepository{table: make(map[stateKey]domain.SyncStatus)}
}

func (r *SyncStateRepository) Get(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.SyncStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.table[stateKey{entityType, sourceID, sourceSystem}]
	if !ok {
		return domain.UnsyncedStatus(entityType, sourceID, sourceSystem), nil
	}
	cloned := status
	return &cloned, nil
}

func (r *SyncStateRepository) Update(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System, targetID string, status domain.SyncState, errorMessage string) error {
	key := stateKey{entityType, sourceID, sourceSystem}
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.table[key]
	if !ok {
		row = domain.SyncStatus{
			EntityType:   entityType,
			SourceID:     sourceID,
			SourceSystem: sourceSystem,
			TargetSystem: sourceSystem.Complement(),
		}
	}
	if targetID != "" {
		row.TargetID = targetID
	}
	row.Status = status
	row.ErrorMessage = errorMessage
	row.LastSyncTime = now
	row.Synced = true
	r.table[key] = row
	return nil
}

func (r *SyncStateRepository) MarkForResync(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) error {
	key := stateKey{entityType, sourceID, sourceSystem}
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.table[key]
	if !ok {
		row = domain.SyncStatus{
			EntityType:   entityType,
			SourceID:     sourceID,
			SourceSystem: sourceSystem,
			TargetSystem: sourceSystem.Complement(),
			Synced:       true,
		}
	}
	row.Status = domain.SyncPending
	row.ErrorMessage = ""
	row.LastSyncTime = now
	r.table[key] = row
	return nil
}

func (r *SyncStateRepository) GetPending(ctx context.Context, entityType domain.EntityType, sourceSystem domain.System, limit int) ([]*domain.SyncStatus, error) {
	return r.listByStatus(domain.SyncPending, entityType, sourceSystem, limit), nil
}

func (r *SyncStateRepository) GetFailed(ctx context.Context, limit int) ([]*domain.SyncStatus, error) {
	return r.listByStatus(domain.SyncFailed, "", "", limit), nil
}

func (r *SyncStateRepository) listByStatus(status domain.SyncState, entityType domain.EntityType, sourceSystem domain.System, limit int) []*domain.SyncStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []*domain.SyncStatus
	for _, row := range r.table {
		if row.Status != status {
			continue
		}
		if entityType != "" && row.EntityType != entityType {
			continue
		}
		if sourceSystem != "" && row.SourceSystem != sourceSystem {
			continue
		}
		cloned := row
		rows = append(rows, &cloned)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].LastSyncTime.Before(rows[j].LastSyncTime)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Stats computes the snapshot under one lock hold, so it reflects a single
// point in time.
func (r *SyncStateRepository) Stats(ctx context.Context) (*domain.SyncStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &domain.SyncStats{ByGroup: make(map[domain.StatsKey]domain.StatusCounts)}
	for _, row := range r.table {
		key := domain.StatsKey{EntityType: row.EntityType, SourceSystem: row.SourceSystem}
		counts := stats.ByGroup[key]
		switch row.Status {
		case domain.SyncPending:
			counts.Pending++
		case domain.SyncCompleted:
			counts.Completed++
		case domain.SyncFailed:
			counts.Failed++
		}
		stats.ByGroup[key] = counts
		stats.Total++
	}
	return stats, nil
}

func (r *SyncStateRepository) Reset(ctx context.Context, entityType domain.EntityType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key := range r.table {
		if entityType != "" && key.entityType != entityType {
			continue
		}
		delete(r.table, key)
		removed++
	}
	return removed, nil
}
