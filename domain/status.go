package domain

import "time"

// SyncState is the last known propagation outcome for one entity.
type SyncState string

const (
	SyncPending   SyncState = "pending"
	SyncCompleted SyncState = "completed"
	SyncFailed    SyncState = "failed"
)

// IsValid reports whether s is a known sync state.
func (s SyncState) IsValid() bool {
	switch s {
	case SyncPending, SyncCompleted, SyncFailed:
		return true
	}
	return false
}

// SyncStatus is one entity's propagation status row. Synced is false on the
// sentinel returned for entities that have never been propagated.
type SyncStatus struct {
	EntityType   EntityType `json:"entity_type"`
	SourceID     string     `json:"source_id"`
	SourceSystem System     `json:"source_system"`
	TargetSystem System     `json:"target_system"`
	TargetID     string     `json:"target_id,omitempty"`
	LastSyncTime time.Time  `json:"last_sync_time"`
	Status       SyncState  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Synced       bool       `json:"synced"`
}

// UnsyncedStatus is the sentinel for an entity with no recorded status.
func UnsyncedStatus(entityType EntityType, sourceID string, sourceSystem System) *SyncStatus {
	return &SyncStatus{
		EntityType:   entityType,
		SourceID:     sourceID,
		SourceSystem: sourceSystem,
		TargetSystem: sourceSystem.Complement(),
		Synced:       false,
	}
}

// StatusCounts groups row counts by sync state.
type StatusCounts struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Total returns the number of rows across all states.
func (c StatusCounts) Total() int {
	return c.Pending + c.Completed + c.Failed
}

// StatsKey identifies one group in a stats snapshot.
type StatsKey struct {
	EntityType   EntityType `json:"entity_type"`
	SourceSystem System     `json:"source_system"`
}

// SyncStats is a single consistent snapshot of status counts grouped by
// entity type and source system.
type SyncStats struct {
	ByGroup map[StatsKey]StatusCounts `json:"-"`
	Total   int                       `json:"total"`
}
