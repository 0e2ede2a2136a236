package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/adapter/memory"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

func newTestMonitor() (*SyncMonitor, *memory.SyncStateRepository, *memory.TransactionRepository, *memory.EventQueue) {
	states := memory.NewSyncStateRepository()
	transactions := memory.NewTransactionRepository()
	queue := memory.NewEventQueue()
	return NewSyncMonitor(states, transactions, queue, logger.NewNopLogger()), states, transactions, queue
}

func TestGetStatisticsGroupsAndDepths(t *testing.T) {
	monitor, states, _, queue := newTestMonitor()
	ctx := context.Background()

	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-1", domain.SystemCanvas, "du-1", domain.SyncCompleted, ""))
	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-2", domain.SystemCanvas, "", domain.SyncFailed, "boom"))
	require.NoError(t, states.Update(ctx, domain.EntityCourse, "c-1", domain.SystemCanvas, "", domain.SyncPending, ""))
	require.NoError(t, queue.Publish(ctx, testEvent(domain.PriorityCritical)))

	stats, err := monitor.GetStatistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	require.Len(t, stats.Groups, 2)

	// EntityTypes order puts users before courses.
	users := stats.Groups[0]
	assert.Equal(t, domain.EntityUser, users.EntityType)
	assert.Equal(t, 1, users.Completed)
	assert.Equal(t, 1, users.Failed)
	assert.Equal(t, 2, users.Total)

	courses := stats.Groups[1]
	assert.Equal(t, domain.EntityCourse, courses.EntityType)
	assert.Equal(t, 1, courses.Pending)

	assert.Equal(t, int64(1), stats.QueueDepths["critical"])
	assert.Equal(t, int64(0), stats.QueueDepths["high"])
}

func TestGetPendingItemsIncludesFailed(t *testing.T) {
	monitor, states, _, _ := newTestMonitor()
	ctx := context.Background()

	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-1", domain.SystemCanvas, "", domain.SyncPending, ""))
	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-2", domain.SystemCanvas, "", domain.SyncFailed, "boom"))
	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-3", domain.SystemCanvas, "du-3", domain.SyncCompleted, ""))

	items, err := monitor.GetPendingItems(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.SyncPending, items[0].Status)
	assert.Equal(t, domain.SyncFailed, items[1].Status)
}

func TestGetPendingItemsHonorsLimit(t *testing.T) {
	monitor, states, _, _ := newTestMonitor()
	ctx := context.Background()

	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-1", domain.SystemCanvas, "", domain.SyncPending, ""))
	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-2", domain.SystemCanvas, "", domain.SyncFailed, "boom"))

	items, err := monitor.GetPendingItems(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestGetEntitySyncHistory(t *testing.T) {
	monitor, _, transactions, _ := newTestMonitor()
	ctx := context.Background()

	first, err := transactions.Begin(ctx, testEvent(domain.PriorityHigh))
	require.NoError(t, err)
	require.NoError(t, transactions.Commit(ctx, first.ID))
	second, err := transactions.Begin(ctx, testEvent(domain.PriorityHigh))
	require.NoError(t, err)
	require.NoError(t, transactions.Rollback(ctx, second.ID, "boom"))

	history, err := monitor.GetEntitySyncHistory(ctx, domain.EntityUser, "u-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestGetEntitySyncHistoryValidates(t *testing.T) {
	monitor, _, _, _ := newTestMonitor()

	_, err := monitor.GetEntitySyncHistory(context.Background(), "widget", "x")
	assert.Error(t, err)

	_, err = monitor.GetEntitySyncHistory(context.Background(), domain.EntityUser, "")
	assert.Error(t, err)
}

func TestTriggerResyncMarksPendingAndEnqueues(t *testing.T) {
	monitor, states, _, queue := newTestMonitor()
	ctx := context.Background()

	require.NoError(t, states.Update(ctx, domain.EntityUser, "u-9", domain.SystemCanvas, "du-9", domain.SyncFailed, "boom"))
	require.NoError(t, monitor.TriggerResync(ctx, domain.EntityUser, "u-9", domain.SystemCanvas, domain.PriorityCritical))

	status, err := states.Get(ctx, domain.EntityUser, "u-9", domain.SystemCanvas)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncPending, status.Status)
	assert.Empty(t, status.ErrorMessage)
	assert.Equal(t, "du-9", status.TargetID)

	event := queue.TryDequeue()
	require.NotNil(t, event)
	assert.Equal(t, domain.OperationReference, event.Operation)
	assert.Equal(t, domain.PriorityCritical, event.Priority)
	assert.Equal(t, "u-9", event.SourceID)
}

func TestTriggerResyncRejectsUnknownEntityType(t *testing.T) {
	monitor, _, _, queue := newTestMonitor()

	err := monitor.TriggerResync(context.Background(), "gadget", "x", domain.SystemCanvas, domain.PriorityHigh)
	require.Error(t, err)
	assert.Nil(t, queue.TryDequeue())
}

func TestTriggerResyncDefaultsPriority(t *testing.T) {
	monitor, _, _, queue := newTestMonitor()

	require.NoError(t, monitor.TriggerResync(context.Background(), domain.EntityUser, "u-1", domain.SystemCanvas, ""))

	event := queue.TryDequeue()
	require.NotNil(t, event)
	assert.Equal(t, domain.PriorityHigh, event.Priority)
}
