package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncora/syncora/domain"
)

func TestTransactionBeginSnapshotsEvent(t *testing.T) {
	repo := NewTransactionRepository()

	trigger := event(domain.PriorityCritical, "s-1")
	trigger.EntityType = domain.EntitySubmission
	tx, err := repo.Begin(context.Background(), trigger)
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, domain.EntitySubmission, tx.EntityType)
	assert.Equal(t, domain.SystemCanvas, tx.SourceSystem)
	assert.Equal(t, domain.SystemDiscourse, tx.TargetSystem)
	assert.Equal(t, domain.TransactionPending, tx.Status)

	var snapshot domain.SyncEvent
	require.NoError(t, json.Unmarshal(tx.EventSnapshot, &snapshot))
	assert.Equal(t, "s-1", snapshot.SourceID)
	assert.Equal(t, domain.PriorityCritical, snapshot.Priority)
}

func TestTransactionStepsSequence(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	tx, err := repo.Begin(ctx, event(domain.PriorityHigh, "u-1"))
	require.NoError(t, err)

	require.NoError(t, repo.RecordStep(ctx, tx.ID, "fetched source record", nil))
	require.NoError(t, repo.RecordStep(ctx, tx.ID, "created target record", json.RawMessage(`{"id":"du-1"}`)))

	loaded, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, 1, loaded.Steps[0].Seq)
	assert.Equal(t, 2, loaded.Steps[1].Seq)
	assert.Equal(t, "created target record", loaded.Steps[1].Description)
}

func TestTransactionCommitIsFinal(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	tx, err := repo.Begin(ctx, event(domain.PriorityHigh, "u-1"))
	require.NoError(t, err)
	require.NoError(t, repo.Commit(ctx, tx.ID))

	assert.ErrorIs(t, repo.RecordStep(ctx, tx.ID, "late step", nil), domain.ErrTransactionFinal)
	assert.ErrorIs(t, repo.Commit(ctx, tx.ID), domain.ErrTransactionFinal)
	assert.ErrorIs(t, repo.Rollback(ctx, tx.ID, "too late"), domain.ErrTransactionFinal)

	loaded, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, loaded.Status)
	require.NotNil(t, loaded.EndTime)
	require.NotEmpty(t, loaded.Steps)
	assert.Equal(t, "transaction committed", loaded.Steps[len(loaded.Steps)-1].Description)
}

func TestTransactionRollbackRecordsCause(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	tx, err := repo.Begin(ctx, event(domain.PriorityHigh, "u-2"))
	require.NoError(t, err)
	require.NoError(t, repo.Rollback(ctx, tx.ID, "discourse unreachable"))

	loaded, err := repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionFailed, loaded.Status)
	assert.Equal(t, "discourse unreachable", loaded.ErrorMessage)
	assert.Equal(t, "transaction rolled back: discourse unreachable", loaded.Steps[len(loaded.Steps)-1].Description)
}

func TestTransactionListRecentNewestFirstWithFilter(t *testing.T) {
	repo := NewTransactionRepository()
	ctx := context.Background()

	first, err := repo.Begin(ctx, event(domain.PriorityHigh, "u-1"))
	require.NoError(t, err)
	courseEvent := event(domain.PriorityHigh, "c-1")
	courseEvent.EntityType = domain.EntityCourse
	_, err = repo.Begin(ctx, courseEvent)
	require.NoError(t, err)
	second, err := repo.Begin(ctx, event(domain.PriorityHigh, "u-1"))
	require.NoError(t, err)

	out, err := repo.ListRecent(ctx, domain.TransactionFilter{
		EntityType: domain.EntityUser,
		SourceID:   "u-1",
	}, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, second.ID, out[0].ID)
	assert.Equal(t, first.ID, out[1].ID)

	limited, err := repo.ListRecent(ctx, domain.TransactionFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}
