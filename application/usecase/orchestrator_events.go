package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syncora/syncora/domain"
)

// GetIntegratedEntity resolves the mapping and reads the entity from both
// systems. Reads never fabricate a mapping; an unmapped entity fails with
// MissingMappingError.
func (o *SyncOrchestrator) GetIntegratedEntity(ctx context.Context, entityType domain.EntityType, sourceID string, sourceSystem domain.System) (*domain.IntegratedEntity, error) {
	if !entityType.IsValid() {
		return nil, &domain.ValidationError{Field: "entityType", Reason: fmt.Sprintf("unknown entity type %q", entityType)}
	}
	if sourceID == "" {
		return nil, &domain.ValidationError{Field: "sourceId", Reason: "must not be empty"}
	}
	mapping, err := o.mapper.RequireMapping(ctx, entityType, sourceID, sourceSystem)
	if err != nil {
		return nil, err
	}

	canvasID, discourseID := mapping.SourceID, mapping.TargetID
	if mapping.SourceSystem == domain.SystemDiscourse {
		canvasID, discourseID = mapping.TargetID, mapping.SourceID
	}

	canvasSide, err := o.fetchCanvas(ctx, entityType, canvasID)
	if err != nil {
		return nil, err
	}
	discourseSide, err := o.fetchDiscourse(ctx, entityType, discourseID)
	if err != nil {
		return nil, err
	}
	return &domain.IntegratedEntity{Mapping: mapping, Canvas: canvasSide, Discourse: discourseSide}, nil
}

// ProcessEvent handles one dequeued sync event inside its own audited
// transaction. Reference events verify both systems and reconcile the stored
// status; create and update events re-propagate the current source record;
// delete events retire the target counterpart.
//
// The returned error's kind steers the dispatcher: transient failures are
// retried, everything else is dead-lettered.
func (o *SyncOrchestrator) ProcessEvent(ctx context.Context, event *domain.SyncEvent) error {
	if event == nil {
		return &domain.ValidationError{Field: "event", Reason: "must not be nil"}
	}
	if err := event.Validate(); err != nil {
		return err
	}
	unlock := o.lockEntity(event.EntityType, event.SourceID, event.SourceSystem)
	defer unlock()

	tx, err := o.transactions.Begin(ctx, event)
	if err != nil {
		return err
	}

	var targetID string
	var opErr error
	switch event.Operation {
	case domain.OperationReference:
		targetID, opErr = o.verifyEntity(ctx, tx, event)
	case domain.OperationCreate, domain.OperationUpdate:
		targetID, opErr = o.propagateEvent(ctx, tx, event)
	case domain.OperationDelete:
		targetID, opErr = o.deleteEntity(ctx, tx, event)
	default:
		opErr = &domain.ValidationError{Field: "operation", Reason: fmt.Sprintf("unknown operation %q", event.Operation)}
	}

	return o.finishEvent(ctx, tx, event, targetID, opErr)
}

// finishEvent closes the event's transaction and reconciles the status row.
// Transient failures leave the status untouched: the dispatcher owns the
// retry cycle and marks the entity failed only on exhaustion.
func (o *SyncOrchestrator) finishEvent(ctx context.Context, tx *domain.SyncTransaction, event *domain.SyncEvent, targetID string, opErr error) error {
	detached := context.WithoutCancel(ctx)

	if opErr != nil {
		if err := o.transactions.Rollback(detached, tx.ID, opErr.Error()); err != nil {
			o.log.Error(detached, "Rollback failed", err, map[string]interface{}{"transaction_id": tx.ID})
		}
		if !domain.IsTransient(opErr) {
			if err := o.states.Update(detached, event.EntityType, event.SourceID, event.SourceSystem, "", domain.SyncFailed, opErr.Error()); err != nil {
				o.log.Error(detached, "Status update failed", err, map[string]interface{}{"transaction_id": tx.ID})
			}
		}
		return opErr
	}

	if err := o.transactions.Commit(detached, tx.ID); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := o.states.Update(detached, event.EntityType, event.SourceID, event.SourceSystem, targetID, domain.SyncCompleted, ""); err != nil {
		o.log.Error(detached, "Status update failed", err, map[string]interface{}{"transaction_id": tx.ID})
	}
	o.log.Info(detached, "Event processed", map[string]interface{}{
		"transaction_id": tx.ID,
		"entity_type":    event.EntityType,
		"operation":      event.Operation,
		"source_id":      event.SourceID,
	})
	return nil
}

// verifyEntity re-reads the entity from both systems through its mapping.
// Both reads must succeed for the entity to be considered in sync.
func (o *SyncOrchestrator) verifyEntity(ctx context.Context, tx *domain.SyncTransaction, event *domain.SyncEvent) (string, error) {
	mapping, err := o.mapper.RequireMapping(ctx, event.EntityType, event.SourceID, event.SourceSystem)
	if err != nil {
		return "", err
	}
	if err := o.step(ctx, tx.ID, "mapping resolved", mapping); err != nil {
		return "", err
	}

	canvasID, discourseID := mapping.SourceID, mapping.TargetID
	if mapping.SourceSystem == domain.SystemDiscourse {
		canvasID, discourseID = mapping.TargetID, mapping.SourceID
	}
	if _, err := o.fetchCanvas(ctx, event.EntityType, canvasID); err != nil {
		return "", fmt.Errorf("canvas verification: %w", err)
	}
	if _, err := o.fetchDiscourse(ctx, event.EntityType, discourseID); err != nil {
		return "", fmt.Errorf("discourse verification: %w", err)
	}
	if err := o.step(ctx, tx.ID, "both systems verified", mapping.Key()); err != nil {
		return "", err
	}
	return mapping.TargetID, nil
}

// propagateEvent pushes the current source record onto the target system,
// updating through the mapping when one exists and creating the counterpart
// (plus its mapping) when it does not. Only canvas-sourced mutations are
// supported; the forum is the downstream replica.
func (o *SyncOrchestrator) propagateEvent(ctx context.Context, tx *domain.SyncTransaction, event *domain.SyncEvent) (string, error) {
	if event.SourceSystem != domain.SystemCanvas {
		return "", &domain.ValidationError{Field: "sourceSystem", Reason: "mutation events originating in discourse are not supported"}
	}

	if event.EntityType == domain.EntityGrade {
		return o.propagateGrade(ctx, tx, event)
	}

	mapping, err := o.mapper.GetMapping(ctx, event.EntityType, event.SourceID, event.SourceSystem)
	if err != nil {
		return "", err
	}

	switch event.EntityType {
	case domain.EntityUser:
		record, err := o.canvas.GetUser(ctx, event.SourceID)
		if err != nil {
			return "", fmt.Errorf("canvas fetch: %w", err)
		}
		if err := o.step(ctx, tx.ID, "canvas record fetched", record); err != nil {
			return "", err
		}
		transformed := domain.UserToDiscourse(*record)
		if mapping != nil {
			updated, err := o.discourse.UpdateUser(ctx, mapping.TargetID, &transformed)
			if err != nil {
				return "", fmt.Errorf("discourse update: %w", err)
			}
			return updated.ID, o.step(ctx, tx.ID, "discourse user updated", updated)
		}
		created, err := o.discourse.CreateUser(ctx, &transformed)
		if err != nil {
			return "", fmt.Errorf("discourse create: %w", err)
		}
		return created.ID, o.linkTarget(ctx, tx, event, created.ID, created)

	case domain.EntityCourse:
		record, err := o.canvas.GetCourse(ctx, event.SourceID)
		if err != nil {
			return "", fmt.Errorf("canvas fetch: %w", err)
		}
		if err := o.step(ctx, tx.ID, "canvas record fetched", record); err != nil {
			return "", err
		}
		transformed := domain.CourseToCategory(*record)
		if mapping != nil {
			updated, err := o.discourse.UpdateCategory(ctx, mapping.TargetID, &transformed)
			if err != nil {
				return "", fmt.Errorf("discourse update: %w", err)
			}
			return updated.ID, o.step(ctx, tx.ID, "discourse category updated", updated)
		}
		created, err := o.discourse.CreateCategory(ctx, &transformed)
		if err != nil {
			return "", fmt.Errorf("discourse create: %w", err)
		}
		return created.ID, o.linkTarget(ctx, tx, event, created.ID, created)

	case domain.EntityAssignment, domain.EntityDiscussion:
		topic, err := o.buildTopic(ctx, event)
		if err != nil {
			return "", err
		}
		if err := o.step(ctx, tx.ID, "canvas record fetched", topic); err != nil {
			return "", err
		}
		if mapping != nil {
			updated, err := o.discourse.UpdateTopic(ctx, mapping.TargetID, topic)
			if err != nil {
				return "", fmt.Errorf("discourse update: %w", err)
			}
			return updated.ID, o.step(ctx, tx.ID, "discourse topic updated", updated)
		}
		created, err := o.discourse.CreateTopic(ctx, topic)
		if err != nil {
			return "", fmt.Errorf("discourse create: %w", err)
		}
		return created.ID, o.linkTarget(ctx, tx, event, created.ID, created)

	case domain.EntitySubmission:
		record, err := o.canvas.GetSubmission(ctx, event.SourceID)
		if err != nil {
			return "", fmt.Errorf("canvas fetch: %w", err)
		}
		if err := o.step(ctx, tx.ID, "canvas record fetched", record); err != nil {
			return "", err
		}
		transformed := domain.SubmissionToPost(*record)
		if mapping != nil {
			update := &domain.DiscoursePostUpdate{PostID: mapping.TargetID, Raw: transformed.Raw, EditReason: "submission sync"}
			updated, err := o.discourse.UpdatePost(ctx, mapping.TargetID, update)
			if err != nil {
				return "", fmt.Errorf("discourse update: %w", err)
			}
			return updated.ID, o.step(ctx, tx.ID, "discourse post updated", updated)
		}
		assignmentMapping, err := o.mapper.RequireMapping(ctx, domain.EntityAssignment, record.AssignmentID, domain.SystemCanvas)
		if err != nil {
			return "", err
		}
		transformed.TopicID = assignmentMapping.TargetID
		created, err := o.discourse.CreatePost(ctx, &transformed)
		if err != nil {
			return "", fmt.Errorf("discourse create: %w", err)
		}
		return created.ID, o.linkTarget(ctx, tx, event, created.ID, created)
	}

	return "", &domain.ValidationError{Field: "entityType", Reason: fmt.Sprintf("unknown entity type %q", event.EntityType)}
}

// buildTopic fetches the topic-shaped source record and transforms it. The
// course mapping supplies the category for fresh topics.
func (o *SyncOrchestrator) buildTopic(ctx context.Context, event *domain.SyncEvent) (*domain.DiscourseTopic, error) {
	var topic domain.DiscourseTopic
	var courseID string
	switch event.EntityType {
	case domain.EntityAssignment:
		record, err := o.canvas.GetAssignment(ctx, event.SourceID)
		if err != nil {
			return nil, fmt.Errorf("canvas fetch: %w", err)
		}
		topic = domain.AssignmentToTopic(*record)
		courseID = record.CourseID
	default:
		record, err := o.canvas.GetDiscussion(ctx, event.SourceID)
		if err != nil {
			return nil, fmt.Errorf("canvas fetch: %w", err)
		}
		topic = domain.DiscussionToTopic(*record)
		courseID = record.CourseID
	}
	courseMapping, err := o.mapper.RequireMapping(ctx, domain.EntityCourse, courseID, domain.SystemCanvas)
	if err != nil {
		return nil, err
	}
	topic.CategoryID = courseMapping.TargetID
	return &topic, nil
}

// propagateGrade re-applies a grade annotation. The grade record rides in the
// event payload; grades have no standalone fetch endpoint on the LMS side.
func (o *SyncOrchestrator) propagateGrade(ctx context.Context, tx *domain.SyncTransaction, event *domain.SyncEvent) (string, error) {
	decoded, err := event.DecodePayload()
	if err != nil {
		return "", err
	}
	var raw json.RawMessage
	switch p := decoded.(type) {
	case *domain.CreatePayload:
		raw = p.Record
	case *domain.UpdatePayload:
		raw = p.Changes
	}
	if len(raw) == 0 {
		return "", &domain.ValidationError{Field: "payload", Reason: "grade events must carry the grade record"}
	}
	var grade domain.CanvasGrade
	if err := json.Unmarshal(raw, &grade); err != nil {
		return "", &domain.ValidationError{Field: "payload", Reason: err.Error()}
	}
	if grade.SubmissionID == "" {
		grade.SubmissionID = event.SourceID
	}

	submissionMapping, err := o.mapper.RequireMapping(ctx, domain.EntitySubmission, grade.SubmissionID, domain.SystemCanvas)
	if err != nil {
		return "", err
	}
	post, err := o.discourse.GetPost(ctx, submissionMapping.TargetID)
	if err != nil {
		return "", fmt.Errorf("discourse post fetch: %w", err)
	}
	update := domain.GradeToPostUpdate(grade, post.Raw)
	update.PostID = post.ID
	annotated, err := o.discourse.UpdatePost(ctx, post.ID, &update)
	if err != nil {
		return "", fmt.Errorf("discourse update: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse post annotated", annotated); err != nil {
		return "", err
	}
	if _, err := o.mapper.SaveMapping(ctx, domain.EntityGrade, grade.SubmissionID, post.ID, domain.SystemCanvas); err != nil {
		return "", fmt.Errorf("mapping persist: %w", err)
	}
	return post.ID, nil
}

// linkTarget persists the mapping for a freshly created counterpart and
// records the step.
func (o *SyncOrchestrator) linkTarget(ctx context.Context, tx *domain.SyncTransaction, event *domain.SyncEvent, targetID string, created interface{}) error {
	if err := o.step(ctx, tx.ID, "discourse counterpart created", created); err != nil {
		return err
	}
	mapping, err := o.mapper.SaveMapping(ctx, event.EntityType, event.SourceID, targetID, event.SourceSystem)
	if err != nil {
		return fmt.Errorf("mapping persist: %w", err)
	}
	return o.step(ctx, tx.ID, "mapping persisted", mapping)
}

// deleteEntity retires the target counterpart. Deletes are soft on the target
// side: users are deactivated and categories archived rather than removed.
// The mapping survives unless the event explicitly asks to unlink.
func (o *SyncOrchestrator) deleteEntity(ctx context.Context, tx *domain.SyncTransaction, event *domain.SyncEvent) (string, error) {
	mapping, err := o.mapper.GetMapping(ctx, event.EntityType, event.SourceID, event.SourceSystem)
	if err != nil {
		return "", err
	}
	if mapping == nil {
		return "", o.step(ctx, tx.ID, "no mapping, nothing to retire", nil)
	}

	switch event.EntityType {
	case domain.EntityUser:
		err = o.discourse.DeactivateUser(ctx, mapping.TargetID)
	case domain.EntityCourse:
		err = o.discourse.ArchiveCategory(ctx, mapping.TargetID)
	case domain.EntityAssignment, domain.EntityDiscussion:
		err = o.discourse.DeleteTopic(ctx, mapping.TargetID)
	case domain.EntitySubmission, domain.EntityGrade:
		err = o.discourse.DeletePost(ctx, mapping.TargetID)
	}
	if err != nil {
		return "", fmt.Errorf("discourse retire: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse counterpart retired", mapping); err != nil {
		return "", err
	}

	decoded, err := event.DecodePayload()
	if err != nil {
		return "", err
	}
	if payload, ok := decoded.(*domain.DeletePayload); ok && payload.Unlink {
		if _, err := o.mapper.DeleteMapping(ctx, event.EntityType, event.SourceID, event.SourceSystem); err != nil {
			return "", err
		}
		if err := o.step(ctx, tx.ID, "mapping unlinked", mapping.Key()); err != nil {
			return "", err
		}
	}
	return mapping.TargetID, nil
}

// fetchCanvas reads one entity from the LMS by type. Grades read through
// their submission.
func (o *SyncOrchestrator) fetchCanvas(ctx context.Context, entityType domain.EntityType, id string) (interface{}, error) {
	switch entityType {
	case domain.EntityUser:
		u, err := o.canvas.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return u, nil
	case domain.EntityCourse:
		c, err := o.canvas.GetCourse(ctx, id)
		if err != nil {
			return nil, err
		}
		return c, nil
	case domain.EntityAssignment:
		a, err := o.canvas.GetAssignment(ctx, id)
		if err != nil {
			return nil, err
		}
		return a, nil
	case domain.EntitySubmission, domain.EntityGrade:
		s, err := o.canvas.GetSubmission(ctx, id)
		if err != nil {
			return nil, err
		}
		return s, nil
	case domain.EntityDiscussion:
		d, err := o.canvas.GetDiscussion(ctx, id)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, &domain.ValidationError{Field: "entityType", Reason: fmt.Sprintf("unknown entity type %q", entityType)}
}

// fetchDiscourse reads the forum counterpart by type.
func (o *SyncOrchestrator) fetchDiscourse(ctx context.Context, entityType domain.EntityType, id string) (interface{}, error) {
	switch entityType {
	case domain.EntityUser:
		u, err := o.discourse.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return u, nil
	case domain.EntityCourse:
		c, err := o.discourse.GetCategory(ctx, id)
		if err != nil {
			return nil, err
		}
		return c, nil
	case domain.EntityAssignment, domain.EntityDiscussion:
		t, err := o.discourse.GetTopic(ctx, id)
		if err != nil {
			return nil, err
		}
		return t, nil
	case domain.EntitySubmission, domain.EntityGrade:
		p, err := o.discourse.GetPost(ctx, id)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, &domain.ValidationError{Field: "entityType", Reason: fmt.Sprintf("unknown entity type %q", entityType)}
}
