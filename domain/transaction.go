package domain

import (
	"encoding/json"
	"time"
)

// TransactionStatus is the lifecycle state of a sync transaction.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// IsTerminal reports whether the status permits no further mutation.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

// SyncTransaction is the audited record of one cross-system propagation
// attempt. It is not a database ACID transaction: steps 2–5 of an
// orchestration are individually durable so a partial failure stays
// detectable and repairable from the trail.
type SyncTransaction struct {
	ID            string            `json:"id"`
	EntityType    EntityType        `json:"entity_type"`
	SourceID      string            `json:"source_id"`
	Operation     Operation         `json:"operation"`
	SourceSystem  System            `json:"source_system"`
	TargetSystem  System            `json:"target_system"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       *time.Time        `json:"end_time,omitempty"`
	Duration      time.Duration     `json:"duration,omitempty"`
	Status        TransactionStatus `json:"status"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	EventSnapshot json.RawMessage   `json:"event_snapshot,omitempty"`
	Steps         []SyncStep        `json:"steps,omitempty"`
}

// SyncStep is one append-only, timestamped entry in a transaction's audit
// trail. Steps persist incrementally; a crash mid-transaction keeps the
// partial trail.
type SyncStep struct {
	TransactionID string          `json:"transaction_id"`
	Seq           int             `json:"seq"`
	Timestamp     time.Time       `json:"timestamp"`
	Description   string          `json:"description"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// TransactionFilter narrows a recent-transactions listing. Zero values match
// everything.
type TransactionFilter struct {
	Status       TransactionStatus
	EntityType   EntityType
	SourceID     string
	SourceSystem System
}

// Matches reports whether tx satisfies every set filter field.
func (f TransactionFilter) Matches(tx *SyncTransaction) bool {
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.EntityType != "" && tx.EntityType != f.EntityType {
		return false
	}
	if f.SourceID != "" && tx.SourceID != f.SourceID {
		return false
	}
	if f.SourceSystem != "" && tx.SourceSystem != f.SourceSystem {
		return false
	}
	return true
}
