package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncora/syncora/domain"
)

// TransactionRepository is an in-memory outbound.TransactionRepository.
type TransactionRepository struct {
	mu    sync.Mutex
	table map[string]*domain.SyncTransaction
	order []string
}

// NewTransactionRepository builds an empty repository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{table: make(map[string]*domain.SyncTransaction)}
}

func (r *TransactionRepository) Begin(ctx context.Context, event *domain.SyncEvent) (*domain.SyncTransaction, error) {
	snapshot, err := json.Marshal(event)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "begin", Err: err}
	}

	tx := &domain.SyncTransaction{
		ID:            "tx-" + uuid.NewString(),
		EntityType:    event.EntityType,
		SourceID:      event.SourceID,
		Operation:     event.Operation,
		SourceSystem:  event.SourceSystem,
		TargetSystem:  event.SourceSystem.Complement(),
		StartTime:     time.Now().UTC(),
		Status:        domain.TransactionPending,
		EventSnapshot: snapshot,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[tx.ID] = tx
	r.order = append(r.order, tx.ID)

	cloned := cloneTransaction(tx)
	return cloned, nil
}

func (r *TransactionRepository) RecordStep(ctx context.Context, transactionID, description string, data json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.table[transactionID]
	if !ok {
		return &domain.PersistenceError{Op: "record_step", Err: fmt.Errorf("transaction %s not found", transactionID)}
	}
	if tx.Status.IsTerminal() {
		return domain.ErrTransactionFinal
	}
	tx.Steps = append(tx.Steps, domain.SyncStep{
		TransactionID: transactionID,
		Seq:           len(tx.Steps) + 1,
		Timestamp:     time.Now().UTC(),
		Description:   description,
		Data:          data,
	})
	return nil
}

func (r *TransactionRepository) Commit(ctx context.Context, transactionID string) error {
	return r.finalize(transactionID, domain.TransactionCompleted, "", "commit")
}

func (r *TransactionRepository) Rollback(ctx context.Context, transactionID, errorMessage string) error {
	return r.finalize(transactionID, domain.TransactionFailed, errorMessage, "rollback")
}

func (r *TransactionRepository) finalize(transactionID string, status domain.TransactionStatus, errorMessage, step string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.table[transactionID]
	if !ok {
		return &domain.PersistenceError{Op: step, Err: fmt.Errorf("transaction %s not found", transactionID)}
	}
	if tx.Status.IsTerminal() {
		return domain.ErrTransactionFinal
	}
	now := time.Now().UTC()
	tx.Status = status
	tx.ErrorMessage = errorMessage
	tx.EndTime = &now
	tx.Duration = now.Sub(tx.StartTime)
	description := "transaction committed"
	if step == "rollback" {
		description = "transaction rolled back: " + errorMessage
	}
	tx.Steps = append(tx.Steps, domain.SyncStep{
		TransactionID: transactionID,
		Seq:           len(tx.Steps) + 1,
		Timestamp:     now,
		Description:   description,
	})
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, transactionID string) (*domain.SyncTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.table[transactionID]
	if !ok {
		return nil, &domain.PersistenceError{Op: "get", Err: fmt.Errorf("transaction %s not found", transactionID)}
	}
	return cloneTransaction(tx), nil
}

func (r *TransactionRepository) ListRecent(ctx context.Context, filter domain.TransactionFilter, limit int) ([]*domain.SyncTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Insertion order is chronological; walk it backwards for newest-first.
	var out []*domain.SyncTransaction
	for i := len(r.order) - 1; i >= 0; i-- {
		tx := r.table[r.order[i]]
		if filter.Matches(tx) {
			out = append(out, cloneTransaction(tx))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneTransaction(tx *domain.SyncTransaction) *domain.SyncTransaction {
	cloned := *tx
	cloned.Steps = append([]domain.SyncStep(nil), tx.Steps...)
	if tx.EndTime != nil {
		end := *tx.EndTime
		cloned.EndTime = &end
	}
	return &cloned
}
