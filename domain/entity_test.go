package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSystemComplement(t *testing.T) {
	if SystemCanvas.Complement() != SystemDiscourse {
		t.Error("canvas complement should be discourse")
	}
	if SystemDiscourse.Complement() != SystemCanvas {
		t.Error("discourse complement should be canvas")
	}
	if _, err := ParseSystem("moodle"); err == nil {
		t.Error("unknown system must be rejected")
	}
	var vErr *ValidationError
	_, err := ParseSystem("")
	if !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestParseEnums(t *testing.T) {
	for _, raw := range []string{"user", "course", "assignment", "submission", "grade", "discussion"} {
		if _, err := ParseEntityType(raw); err != nil {
			t.Errorf("ParseEntityType(%q) = %v", raw, err)
		}
	}
	if _, err := ParseEntityType("widget"); err == nil {
		t.Error("unknown entity type must be rejected")
	}
	if _, err := ParseOperation("reference"); err != nil {
		t.Error("reference is a valid operation")
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("unknown priority must be rejected")
	}
	if PriorityCritical.QueueName() != "sync:critical" {
		t.Errorf("queue name = %q", PriorityCritical.QueueName())
	}
}

func TestSyncEventValidate(t *testing.T) {
	valid := SyncEvent{
		Priority:     PriorityHigh,
		EntityType:   EntityCourse,
		Operation:    OperationCreate,
		SourceSystem: SystemCanvas,
		SourceID:     "c-1",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	missing := valid
	missing.SourceID = ""
	if err := missing.Validate(); err == nil {
		t.Error("empty source id must be rejected")
	}

	badOp := valid
	badOp.Operation = "explode"
	var vErr *ValidationError
	if err := badOp.Validate(); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestDecodePayloadUnion(t *testing.T) {
	ev := SyncEvent{
		Priority:     PriorityCritical,
		EntityType:   EntitySubmission,
		Operation:    OperationReference,
		SourceSystem: SystemCanvas,
		SourceID:     "s-1",
		Payload:      json.RawMessage(`{"verify_transaction_id":"tx-1"}`),
	}
	decoded, err := ev.DecodePayload()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ref, ok := decoded.(*ReferencePayload)
	if !ok {
		t.Fatalf("decoded into %T, want *ReferencePayload", decoded)
	}
	if ref.VerifyTransactionID != "tx-1" {
		t.Errorf("verify id = %q", ref.VerifyTransactionID)
	}

	ev.Operation = OperationCreate
	ev.Payload = json.RawMessage(`{not json`)
	if _, err := ev.DecodePayload(); err == nil {
		t.Error("malformed payload must be a validation failure")
	}

	ev.Payload = nil
	if _, err := ev.DecodePayload(); err != nil {
		t.Errorf("empty payload should decode to zero value, got %v", err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	transient := &TransientExternalError{System: SystemCanvas, Op: "get_user", Err: errors.New("timeout")}
	if !IsTransient(transient) {
		t.Error("transient error must be retriable")
	}
	permanent := &PermanentExternalError{System: SystemDiscourse, Op: "create_topic", Status: 422, Err: errors.New("invalid")}
	if IsTransient(permanent) {
		t.Error("permanent error must not be retriable")
	}
	missing := &MissingMappingError{EntityType: EntityCourse, SourceID: "c-1", SourceSystem: SystemCanvas}
	if !IsMissingMapping(missing) {
		t.Error("IsMissingMapping should match")
	}
	if IsTransient(missing) {
		t.Error("missing mapping is never retried")
	}
}
