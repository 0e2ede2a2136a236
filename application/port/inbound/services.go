package inbound

import (
	"context"

	"github.com/syncora/syncora/domain"
)

// Orchestrator drives one logical cross-system operation end to end.
type Orchestrator interface {
	CreateUser(ctx context.Context, user *domain.CanvasUser) (*domain.IntegratedEntity, error)
	CreateCourse(ctx context.Context, course *domain.CanvasCourse) (*domain.IntegratedEntity, error)
	CreateAssignment(ctx context.Context, assignment *domain.CanvasAssignment) (*domain.IntegratedEntity, error)
	CreateSubmission(ctx context.Context, submission *domain.CanvasSubmission) (*domain.IntegratedEntity, error)
	GradeSubmission(ctx context.Context, grade *domain.CanvasGrade) (*domain.IntegratedEntity, error)
	CreateDiscussion(ctx context.Context, discussion *domain.CanvasDiscussion) (*domain.IntegratedEntity, error)

	// GetIntegratedEntity resolves the mapping and fetches the entity from
	// both systems. It fails with domain.MissingMappingError when no mapping
	// exists; it never fabricates one on read.
	GetIntegratedEntity(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.IntegratedEntity, error)

	// ProcessEvent handles one dequeued sync event. Reference events verify
	// and reconcile; create and update events re-propagate.
	ProcessEvent(ctx context.Context, event *domain.SyncEvent) error
}

// StatisticsGroup is one (entityType, sourceSystem) bucket of status counts.
type StatisticsGroup struct {
	EntityType   domain.EntityType `json:"entity_type"`
	SourceSystem domain.System     `json:"source_system"`
	Pending      int               `json:"pending"`
	Completed    int               `json:"completed"`
	Failed       int               `json:"failed"`
	Total        int               `json:"total"`
}

// Statistics is the monitor's read-side aggregate: store counts plus live
// queue depth per priority tier.
type Statistics struct {
	Groups      []StatisticsGroup `json:"groups"`
	Total       int               `json:"total"`
	QueueDepths map[string]int64  `json:"queue_depths"`
}

// Monitor is the read-side surface plus the manual resync trigger.
type Monitor interface {
	GetStatistics(ctx context.Context) (*Statistics, error)
	GetPendingItems(ctx context.Context, limit int) ([]*domain.SyncStatus, error)
	GetEntitySyncHistory(ctx context.Context, entityType domain.EntityType, sourceID string) ([]*domain.SyncTransaction, error)
	// TriggerResync marks the entity pending and enqueues a verification
	// event. It returns as soon as the event is durably queued; dispatch is
	// asynchronous.
	TriggerResync(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System, priority domain.Priority) error
}
