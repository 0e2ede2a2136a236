package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
)

type TransactionRepositoryAdapter struct {
	db *sql.DB
}

func NewTransactionRepositoryAdapter(db *sql.DB) outbound.TransactionRepository {
	return &TransactionRepositoryAdapter{db: db}
}

func (r *TransactionRepositoryAdapter) Begin(ctx context.Context, event *domain.SyncEvent) (*domain.SyncTransaction, error) {
	if event == nil {
		return nil, &domain.ValidationError{Field: "event", Reason: "must not be nil"}
	}
	snapshot, err := json.Marshal(event)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "tx_begin", Err: err}
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

	query := `
		INSERT INTO sync_transactions (id, entity_type, source_id, operation, source_system, target_system, start_time, status, event_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		tx.ID, tx.EntityType, tx.SourceID, tx.Operation, tx.SourceSystem, tx.TargetSystem, tx.StartTime, tx.Status, tx.EventSnapshot,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "tx_begin", Err: err}
	}
	return tx, nil
}

// RecordStep appends one step. The seq is computed inside the insert so
// concurrent writers cannot collide, and the status guard enforces the
// terminal-transaction rule at the database.
func (r *TransactionRepositoryAdapter) RecordStep(ctx context.Context, transactionID, description string, data json.RawMessage) error {
	query := `
		INSERT INTO sync_transaction_steps (transaction_id, seq, step_time, description, data)
		SELECT t.id,
		       COALESCE((SELECT MAX(seq) FROM sync_transaction_steps WHERE transaction_id = t.id), 0) + 1,
		       NOW(), $2, $3
		FROM sync_transactions t
		WHERE t.id = $1 AND t.status = $4
	`
	result, err := r.db.ExecContext(ctx, query, transactionID, description, []byte(data), domain.TransactionPending)
	if err != nil {
		return &domain.PersistenceError{Op: "tx_record_step", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &domain.PersistenceError{Op: "tx_record_step", Err: err}
	}
	if affected == 0 {
		return r.stepRejection(ctx, transactionID)
	}
	return nil
}

// stepRejection distinguishes a finalized transaction from a missing one.
func (r *TransactionRepositoryAdapter) stepRejection(ctx context.Context, transactionID string) error {
	var status domain.TransactionStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM sync_transactions WHERE id = $1`, transactionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.PersistenceError{Op: "tx_record_step", Err: fmt.Errorf("transaction %s not found", transactionID)}
	}
	if err != nil {
		return &domain.PersistenceError{Op: "tx_record_step", Err: err}
	}
	return domain.ErrTransactionFinal
}

func (r *TransactionRepositoryAdapter) Commit(ctx context.Context, transactionID string) error {
	return r.finalize(ctx, transactionID, domain.TransactionCompleted, "", "transaction committed")
}

func (r *TransactionRepositoryAdapter) Rollback(ctx context.Context, transactionID, errorMessage string) error {
	return r.finalize(ctx, transactionID, domain.TransactionFailed, errorMessage, "transaction rolled back: "+errorMessage)
}

func (r *TransactionRepositoryAdapter) finalize(ctx context.Context, transactionID string, status domain.TransactionStatus, errorMessage, stepDescription string) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "tx_finalize", Err: err}
	}
	defer dbTx.Rollback()

	query := `
		UPDATE sync_transactions
		SET status = $2,
		    error_message = NULLIF($3, ''),
		    end_time = NOW(),
		    duration_ms = EXTRACT(EPOCH FROM (NOW() - start_time)) * 1000
		WHERE id = $1 AND status = $4
	`
	result, err := dbTx.ExecContext(ctx, query, transactionID, status, errorMessage, domain.TransactionPending)
	if err != nil {
		return &domain.PersistenceError{Op: "tx_finalize", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &domain.PersistenceError{Op: "tx_finalize", Err: err}
	}
	if affected == 0 {
		return r.stepRejection(ctx, transactionID)
	}

	stepQuery := `
		INSERT INTO sync_transaction_steps (transaction_id, seq, step_time, description, data)
		SELECT $1,
		       COALESCE((SELECT MAX(seq) FROM sync_transaction_steps WHERE transaction_id = $1), 0) + 1,
		       NOW(), $2, NULL
	`
	if _, err := dbTx.ExecContext(ctx, stepQuery, transactionID, stepDescription); err != nil {
		return &domain.PersistenceError{Op: "tx_finalize", Err: err}
	}
	if err := dbTx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "tx_finalize", Err: err}
	}
	return nil
}

func (r *TransactionRepositoryAdapter) GetByID(ctx context.Context, transactionID string) (*domain.SyncTransaction, error) {
	query := `
		SELECT id, entity_type, source_id, operation, source_system, target_system, start_time, end_time, duration_ms, status, error_message, event_snapshot
		FROM sync_transactions
		WHERE id = $1
	`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.PersistenceError{Op: "tx_get", Err: fmt.Errorf("transaction %s not found", transactionID)}
		}
		return nil, err
	}
	if err := r.loadSteps(ctx, []*domain.SyncTransaction{tx}); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepositoryAdapter) ListRecent(ctx context.Context, filter domain.TransactionFilter, limit int) ([]*domain.SyncTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, entity_type, source_id, operation, source_system, target_system, start_time, end_time, duration_ms, status, error_message, event_snapshot
		FROM sync_transactions
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR entity_type = $2)
		  AND ($3 = '' OR source_id = $3)
		  AND ($4 = '' OR source_system = $4)
		ORDER BY start_time DESC
		LIMIT $5
	`

	rows, err := r.db.QueryContext(ctx, query,
		string(filter.Status), string(filter.EntityType), filter.SourceID, string(filter.SourceSystem), limit,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "tx_list", Err: err}
	}
	defer rows.Close()

	var out []*domain.SyncTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "tx_list", Err: err}
	}
	if err := r.loadSteps(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TransactionRepositoryAdapter) loadSteps(ctx context.Context, txs []*domain.SyncTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, len(txs))
	byID := make(map[string]*domain.SyncTransaction, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
		byID[tx.ID] = tx
	}

	query := `
		SELECT transaction_id, seq, step_time, description, data
		FROM sync_transaction_steps
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, seq
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return &domain.PersistenceError{Op: "tx_load_steps", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var step domain.SyncStep
		var data []byte
		if err := rows.Scan(&step.TransactionID, &step.Seq, &step.Timestamp, &step.Description, &data); err != nil {
			return &domain.PersistenceError{Op: "tx_load_steps", Err: err}
		}
		step.Data = data
		if tx, ok := byID[step.TransactionID]; ok {
			tx.Steps = append(tx.Steps, step)
		}
	}
	if err := rows.Err(); err != nil {
		return &domain.PersistenceError{Op: "tx_load_steps", Err: err}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.SyncTransaction, error) {
	var tx domain.SyncTransaction
	var endTime sql.NullTime
	var durationMS sql.NullFloat64
	var errorMessage sql.NullString
	var snapshot []byte
	err := row.Scan(
		&tx.ID,
		&tx.EntityType,
		&tx.SourceID,
		&tx.Operation,
		&tx.SourceSystem,
		&tx.TargetSystem,
		&tx.StartTime,
		&endTime,
		&durationMS,
		&tx.Status,
		&errorMessage,
		&snapshot,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, &domain.PersistenceError{Op: "tx_scan", Err: err}
	}
	if endTime.Valid {
		t := endTime.Time
		tx.EndTime = &t
	}
	if durationMS.Valid {
		tx.Duration = time.Duration(durationMS.Float64 * float64(time.Millisecond))
	}
	tx.ErrorMessage = errorMessage.String
	tx.EventSnapshot = snapshot
	return &tx, nil
}
