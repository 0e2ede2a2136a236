package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType classifies the objects that can be propagated between systems.
type EntityType string

const (
	EntityUser       EntityType = "user"
	EntityCourse     EntityType = "course"
	EntityAssignment EntityType = "assignment"
	EntitySubmission EntityType = "submission"
	EntityGrade      EntityType = "grade"
	EntityDiscussion EntityType = "discussion"
)

// EntityTypes lists every known entity type in a stable order.
var EntityTypes = []EntityType{
	EntityUser,
	EntityCourse,
	EntityAssignment,
	EntitySubmission,
	EntityGrade,
	EntityDiscussion,
}

// IsValid reports whether t is a known entity type.
func (t EntityType) IsValid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseEntityType converts a wire string into an EntityType.
func ParseEntityType(raw string) (EntityType, error) {
	t := EntityType(raw)
	if !t.IsValid() {
		return "", &ValidationError{Field: "entityType", Reason: fmt.Sprintf("unknown entity type %q", raw)}
	}
	return t, nil
}

// Operation is the kind of work a sync event asks for.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	// OperationReference verifies an existing propagation by re-reading both
	// systems instead of mutating either.
	OperationReference Operation = "reference"
)

// IsValid reports whether o is a known operation.
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationReference:
		return true
	}
	return false
}

// ParseOperation converts a wire string into an Operation.
func ParseOperation(raw string) (Operation, error) {
	o := Operation(raw)
	if !o.IsValid() {
		return "", &ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", raw)}
	}
	return o, nil
}

// Priority is the dispatch tier of a sync event. All critical events drain
// before any high event, and all high before any background.
type Priority string

const (
	PriorityCritical   Priority = "critical"
	PriorityHigh       Priority = "high"
	PriorityBackground Priority = "background"
)

// Priorities lists the tiers in dispatch order.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityBackground}

// IsValid reports whether p is a known priority tier.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityBackground:
		return true
	}
	return false
}

// QueueName returns the durable queue key for the tier.
func (p Priority) QueueName() string {
	return "sync:" + string(p)
}

// ParsePriority converts a wire string into a Priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.IsValid() {
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", raw)}
	}
	return p, nil
}

// SyncEvent is one unit of queued propagation work. It lives in the queue
// until dispatched or exhausted.
type SyncEvent struct {
	TransactionID string          `json:"transaction_id"`
	Priority      Priority        `json:"priority"`
	EntityType    EntityType      `json:"entity_type"`
	Operation     Operation       `json:"operation"`
	SourceSystem  System          `json:"source_system"`
	SourceID      string          `json:"source_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Attempts      int             `json:"attempts"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// Validate checks the event's closed fields before it is accepted for dispatch.
func (e *SyncEvent) Validate() error {
	if !e.EntityType.IsValid() {
		return &ValidationError{Field: "entityType", Reason: fmt.Sprintf("unknown entity type %q", e.EntityType)}
	}
	if !e.Operation.IsValid() {
		return &ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", e.Operation)}
	}
	if !e.SourceSystem.IsValid() {
		return &ValidationError{Field: "sourceSystem", Reason: fmt.Sprintf("unknown system %q", e.SourceSystem)}
	}
	if !e.Priority.IsValid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", e.Priority)}
	}
	if e.SourceID == "" {
		return &ValidationError{Field: "sourceId", Reason: "must not be empty"}
	}
	return nil
}

// CreatePayload carries the source-system record for create events.
type CreatePayload struct {
	Record json.RawMessage `json:"record"`
}

// UpdatePayload carries the changed fields for update events.
type UpdatePayload struct {
	Changes json.RawMessage `json:"changes"`
}

// DeletePayload carries the unlink flag for delete events.
type DeletePayload struct {
	Unlink bool `json:"unlink"`
}

// ReferencePayload names the transaction whose outcome a verification event
// checks.
type ReferencePayload struct {
	VerifyTransactionID string `json:"verify_transaction_id,omitempty"`
}

// DecodePayload unmarshals the event payload into the typed structure for its
// operation kind. Events with no payload decode to the zero value.
func (e *SyncEvent) DecodePayload() (interface{}, error) {
	var dst interface{}
	switch e.Operation {
	case OperationCreate:
		dst = &CreatePayload{}
	case OperationUpdate:
		dst = &UpdatePayload{}
	case OperationDelete:
		dst = &DeletePayload{}
	case OperationReference:
		dst = &ReferencePayload{}
	default:
		return nil, &ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", e.Operation)}
	}
	if len(e.Payload) == 0 {
		return dst, nil
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: err.Error()}
	}
	return dst, nil
}
