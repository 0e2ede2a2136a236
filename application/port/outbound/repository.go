package outbound

import (
	"context"
	"encoding/json"

	"github.com/syncora/syncora/domain"
)

// MappingRepository persists entity identity mappings. It is the system of
// record behind the mapper's cache.
type MappingRepository interface {
	// Save upserts the mapping for its key. Saving over an existing key is an
	// explicit remap.
	Save(ctx context.Context, mapping *domain.EntityMapping) error
	// Get returns the mapping for the key, or nil (not an error) when absent.
	Get(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.EntityMapping, error)
	// Delete removes the mapping permanently. Returns false when no row existed.
	Delete(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (bool, error)
}

// SyncStateRepository tracks per-entity propagation status.
type SyncStateRepository interface {
	// Get returns the stored row, or the unsynced sentinel when absent.
	Get(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.SyncStatus, error)
	// Update upserts the status row. An empty targetID keeps the stored one;
	// lastSyncTime, status and errorMessage are always refreshed. New rows
	// infer targetSystem as the complement of sourceSystem.
	Update(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System, targetID string, status domain.SyncState, errorMessage string) error
	// MarkForResync sets status=pending and clears the error without touching
	// the target id. Idempotent.
	MarkForResync(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) error
	// GetPending returns pending rows ordered oldest lastSyncTime first,
	// bounded by limit. Zero-valued filters match everything.
	GetPending(ctx context.Context, entityType domain.EntityType, sourceSystem domain.System, limit int) ([]*domain.SyncStatus, error)
	// GetFailed returns failed rows, oldest first, bounded by limit.
	GetFailed(ctx context.Context, limit int) ([]*domain.SyncStatus, error)
	// Stats returns one consistent snapshot of counts grouped by entity type,
	// source system and status.
	Stats(ctx context.Context) (*domain.SyncStats, error)
	// Reset bulk-deletes rows (all rows when entityType is empty) and returns
	// the count removed. Intended for test and recovery paths only.
	Reset(ctx context.Context, entityType domain.EntityType) (int, error)
}

// TransactionRepository records the audited lifecycle of propagation attempts.
type TransactionRepository interface {
	// Begin persists a pending transaction carrying a full snapshot of the
	// triggering event.
	Begin(ctx context.Context, event *domain.SyncEvent) (*domain.SyncTransaction, error)
	// RecordStep appends one durable timestamped step. Returns
	// domain.ErrTransactionFinal when the transaction has already terminated.
	RecordStep(ctx context.Context, transactionID, description string, data json.RawMessage) error
	// Commit marks the transaction completed and fixes endTime and duration.
	Commit(ctx context.Context, transactionID string) error
	// Rollback marks the transaction failed with the given message. It records
	// the failure only; compensation is the orchestrator's concern.
	Rollback(ctx context.Context, transactionID, errorMessage string) error
	// GetByID returns the transaction with its ordered steps.
	GetByID(ctx context.Context, transactionID string) (*domain.SyncTransaction, error)
	// ListRecent returns matching transactions newest-first, steps included.
	ListRecent(ctx context.Context, filter domain.TransactionFilter, limit int) ([]*domain.SyncTransaction, error)
}

// MappingCache is the explicit in-process lookup table in front of the
// mapping repository. Writes must be linearized per key.
type MappingCache interface {
	Get(key domain.MappingKey) (*domain.EntityMapping, bool)
	Put(key domain.MappingKey, mapping *domain.EntityMapping)
	Delete(key domain.MappingKey)
}
