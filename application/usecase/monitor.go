package usecase

import (
	"context"
	"time"

	"github.com/syncora/syncora/application/port/inbound"
	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

const historyLimit = 50

// SyncMonitor is the read side of the engine: consistent statistics, the
// pending and failed backlog, per-entity audit history and the manual resync
// trigger.
type SyncMonitor struct {
	states       outbound.SyncStateRepository
	transactions outbound.TransactionRepository
	queue        outbound.EventQueue
	log          logger.Logger
}

// NewSyncMonitor wires the monitor.
func NewSyncMonitor(states outbound.SyncStateRepository, transactions outbound.TransactionRepository, queue outbound.EventQueue, log logger.Logger) *SyncMonitor {
	return &SyncMonitor{states: states, transactions: transactions, queue: queue, log: log}
}

// GetStatistics returns one consistent snapshot of status counts plus live
// queue depths. Groups come out in a stable order.
func (m *SyncMonitor) GetStatistics(ctx context.Context) (*inbound.Statistics, error) {
	stats, err := m.states.Stats(ctx)
	if err != nil {
		return nil, err
	}
	depths, err := m.queue.Depths(ctx)
	if err != nil {
		return nil, err
	}

	out := &inbound.Statistics{
		Total:       stats.Total,
		QueueDepths: make(map[string]int64, len(depths)),
	}
	for tier, depth := range depths {
		out.QueueDepths[string(tier)] = depth
	}
	for _, entityType := range domain.EntityTypes {
		for _, system := range []domain.System{domain.SystemCanvas, domain.SystemDiscourse} {
			counts, ok := stats.ByGroup[domain.StatsKey{EntityType: entityType, SourceSystem: system}]
			if !ok {
				continue
			}
			out.Groups = append(out.Groups, inbound.StatisticsGroup{
				EntityType:   entityType,
				SourceSystem: system,
				Pending:      counts.Pending,
				Completed:    counts.Completed,
				Failed:       counts.Failed,
				Total:        counts.Total(),
			})
		}
	}
	return out, nil
}

// GetPendingItems returns the propagation backlog: pending rows first, then
// failed rows, each oldest-first, together bounded by limit.
func (m *SyncMonitor) GetPendingItems(ctx context.Context, limit int) ([]*domain.SyncStatus, error) {
	if limit <= 0 {
		limit = historyLimit
	}
	pending, err := m.states.GetPending(ctx, "", "", limit)
	if err != nil {
		return nil, err
	}
	items := pending
	if remaining := limit - len(items); remaining > 0 {
		failed, err := m.states.GetFailed(ctx, remaining)
		if err != nil {
			return nil, err
		}
		items = append(items, failed...)
	}
	return items, nil
}

// GetEntitySyncHistory returns the entity's recent transactions newest-first,
// steps included.
func (m *SyncMonitor) GetEntitySyncHistory(ctx context.Context, entityType domain.EntityType, sourceID string) ([]*domain.SyncTransaction, error) {
	if !entityType.IsValid() {
		return nil, &domain.ValidationError{Field: "entityType", Reason: "unknown entity type " + string(entityType)}
	}
	if sourceID == "" {
		return nil, &domain.ValidationError{Field: "sourceId", Reason: "must not be empty"}
	}
	filter := domain.TransactionFilter{EntityType: entityType, SourceID: sourceID}
	return m.transactions.ListRecent(ctx, filter, historyLimit)
}

// TriggerResync marks the entity pending and enqueues a verification event at
// the requested priority. It returns once the event is durably queued;
// dispatch happens asynchronously.
func (m *SyncMonitor) TriggerResync(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System, priority domain.Priority) error {
	if !entityType.IsValid() {
		return &domain.ValidationError{Field: "entityType", Reason: "unknown entity type " + string(entityType)}
	}
	if sourceID == "" {
		return &domain.ValidationError{Field: "sourceId", Reason: "must not be empty"}
	}
	if !sourceSystem.IsValid() {
		return &domain.ValidationError{Field: "sourceSystem", Reason: "unknown system " + string(sourceSystem)}
	}
	if !priority.IsValid() {
		priority = domain.PriorityHigh
	}

	if err := m.states.MarkForResync(ctx, entityType, sourceID, sourceSystem); err != nil {
		return err
	}
	event := &domain.SyncEvent{
		Priority:     priority,
		EntityType:   entityType,
		Operation:    domain.OperationReference,
		SourceSystem: sourceSystem,
		SourceID:     sourceID,
		EnqueuedAt:   time.Now().UTC(),
	}
	if err := m.queue.Publish(ctx, event); err != nil {
		return err
	}
	m.log.Info(ctx, "Resync triggered", map[string]interface{}{
		"entity_type": entityType,
		"source_id":   sourceID,
		"priority":    priority,
	})
	return nil
}
