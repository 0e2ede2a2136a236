package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

// SyncOrchestrator executes one logical cross-system operation inside an
// audited transaction: resolve prerequisite mappings, mutate the source
// system, transform, mutate the target system, persist the mapping. A
// follow-up verification event is enqueued after commit.
//
// Orchestrations for the same (entityType, sourceId, sourceSystem) key are
// serialized through a per-key lock; distinct keys run concurrently.
type SyncOrchestrator struct {
	mapper       *EntityMapper
	states       outbound.SyncStateRepository
	transactions outbound.TransactionRepository
	queue        outbound.EventQueue
	canvas       outbound.CanvasClient
	discourse    outbound.DiscourseClient
	log          logger.Logger
	keys         *keyedLock
}

// NewSyncOrchestrator wires the orchestrator.
func NewSyncOrchestrator(
	mapper *EntityMapper,
	states outbound.SyncStateRepository,
	transactions outbound.TransactionRepository,
	queue outbound.EventQueue,
	canvas outbound.CanvasClient,
	discourse outbound.DiscourseClient,
	log logger.Logger,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		mapper:       mapper,
		states:       states,
		transactions: transactions,
		queue:        queue,
		canvas:       canvas,
		discourse:    discourse,
		log:          log,
		keys:         newKeyedLock(),
	}
}

// lockEntity serializes in-flight propagations per entity key. Entities whose
// source id is not yet assigned cannot collide with an existing key, so an
// empty id skips locking.
func (o *SyncOrchestrator) lockEntity(entityType domain.EntityType, sourceID string, sourceSystem domain.System) func() {
	if sourceID == "" {
		return func() {}
	}
	key := domain.MappingKey{EntityType: entityType, SourceID: sourceID, SourceSystem: sourceSystem}
	return o.keys.Lock(key.String())
}

func (o *SyncOrchestrator) begin(ctx context.Context, entityType domain.EntityType, operation domain.Operation, sourceID string, priority domain.Priority) (*domain.SyncTransaction, error) {
	trigger := &domain.SyncEvent{
		Priority:     priority,
		EntityType:   entityType,
		Operation:    operation,
		SourceSystem: domain.SystemCanvas,
		SourceID:     sourceID,
	}
	return o.transactions.Begin(ctx, trigger)
}

// step appends one audit step; the payload is serialized as the step data.
func (o *SyncOrchestrator) step(ctx context.Context, transactionID, description string, payload interface{}) error {
	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return &domain.PersistenceError{Op: "record_step", Err: err}
		}
		data = encoded
	}
	if err := o.transactions.RecordStep(ctx, transactionID, description, data); err != nil {
		return fmt.Errorf("%s: %w", description, err)
	}
	return nil
}

// finish closes the transaction and records the propagation outcome. Terminal
// writes run on a detached context: once begun, a transaction always reaches
// commit or rollback even if the caller stops waiting.
func (o *SyncOrchestrator) finish(ctx context.Context, tx *domain.SyncTransaction, priority domain.Priority, result *domain.IntegratedEntity, opErr error) (*domain.IntegratedEntity, error) {
	detached := context.WithoutCancel(ctx)

	if opErr != nil {
		if err := o.transactions.Rollback(detached, tx.ID, opErr.Error()); err != nil {
			o.log.Error(detached, "Rollback failed", err, map[string]interface{}{"transaction_id": tx.ID})
		}
		if tx.SourceID != "" {
			if err := o.states.Update(detached, tx.EntityType, tx.SourceID, tx.SourceSystem, "", domain.SyncFailed, opErr.Error()); err != nil {
				o.log.Error(detached, "Status update failed", err, map[string]interface{}{"transaction_id": tx.ID})
			}
		}
		o.log.Error(detached, "Propagation failed", opErr, map[string]interface{}{
			"transaction_id": tx.ID,
			"entity_type":    tx.EntityType,
			"source_id":      tx.SourceID,
		})
		return nil, opErr
	}

	if err := o.transactions.Commit(detached, tx.ID); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	sourceID := tx.SourceID
	targetID := ""
	if result != nil && result.Mapping != nil {
		sourceID = result.Mapping.SourceID
		targetID = result.Mapping.TargetID
	}
	if sourceID != "" {
		if err := o.states.Update(detached, tx.EntityType, sourceID, tx.SourceSystem, targetID, domain.SyncCompleted, ""); err != nil {
			o.log.Error(detached, "Status update failed", err, map[string]interface{}{"transaction_id": tx.ID})
		}
	}

	if sourceID == "" {
		return result, nil
	}

	// Consistency-critical operations get critical verification; everything
	// else is checked in the background.
	verify := &domain.SyncEvent{
		TransactionID: tx.ID,
		Priority:      priority,
		EntityType:    tx.EntityType,
		Operation:     domain.OperationReference,
		SourceSystem:  tx.SourceSystem,
		SourceID:      sourceID,
	}
	if payload, err := json.Marshal(&domain.ReferencePayload{VerifyTransactionID: tx.ID}); err == nil {
		verify.Payload = payload
	}
	if err := o.queue.Publish(detached, verify); err != nil {
		o.log.Error(detached, "Verification enqueue failed", err, map[string]interface{}{"transaction_id": tx.ID})
	}

	o.log.Info(detached, "Propagation completed", map[string]interface{}{
		"transaction_id": tx.ID,
		"entity_type":    tx.EntityType,
		"source_id":      sourceID,
		"target_id":      targetID,
	})
	return result, nil
}

// CreateUser creates the user in Canvas, mirrors it as a Discourse account
// and links the two.
func (o *SyncOrchestrator) CreateUser(ctx context.Context, user *domain.CanvasUser) (*domain.IntegratedEntity, error) {
	if user == nil || user.Name == "" {
		return nil, &domain.ValidationError{Field: "user", Reason: "name is required"}
	}
	unlock := o.lockEntity(domain.EntityUser, user.ID, domain.SystemCanvas)
	defer unlock()

	tx, err := o.begin(ctx, domain.EntityUser, domain.OperationCreate, user.ID, domain.PriorityBackground)
	if err != nil {
		return nil, err
	}
	result, opErr := o.createUser(ctx, tx, user)
	return o.finish(ctx, tx, domain.PriorityBackground, result, opErr)
}

func (o *SyncOrchestrator) createUser(ctx context.Context, tx *domain.SyncTransaction, user *domain.CanvasUser) (*domain.IntegratedEntity, error) {
	created, err := o.canvas.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("canvas user mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "canvas user created", created); err != nil {
		return nil, err
	}

	transformed := domain.UserToDiscourse(*created)
	forumUser, err := o.discourse.CreateUser(ctx, &transformed)
	if err != nil {
		return nil, fmt.Errorf("discourse user mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse user created", forumUser); err != nil {
		return nil, err
	}

	mapping, err := o.mapper.SaveMapping(ctx, domain.EntityUser, created.ID, forumUser.ID, domain.SystemCanvas)
	if err != nil {
		return nil, fmt.Errorf("mapping persist: %w", err)
	}
	if err := o.step(ctx, tx.ID, "mapping persisted", mapping); err != nil {
		return nil, err
	}
	return &domain.IntegratedEntity{Mapping: mapping, Canvas: created, Discourse: forumUser}, nil
}

// CreateCourse creates the course in Canvas and its category in Discourse.
func (o *SyncOrchestrator) CreateCourse(ctx context.Context, course *domain.CanvasCourse) (*domain.IntegratedEntity, error) {
	if course == nil || course.Name == "" {
		return nil, &domain.ValidationError{Field: "course", Reason: "name is required"}
	}
	unlock := o.lockEntity(domain.EntityCourse, course.ID, domain.SystemCanvas)
	defer unlock()

	tx, err := o.begin(ctx, domain.EntityCourse, domain.OperationCreate, course.ID, domain.PriorityBackground)
	if err != nil {
		return nil, err
	}
	result, opErr := o.createCourse(ctx, tx, course)
	return o.finish(ctx, tx, domain.PriorityBackground, result, opErr)
}

func (o *SyncOrchestrator) createCourse(ctx context.Context, tx *domain.SyncTransaction, course *domain.CanvasCourse) (*domain.IntegratedEntity, error) {
	created, err := o.canvas.CreateCourse(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("canvas course mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "canvas course created", created); err != nil {
		return nil, err
	}

	transformed := domain.CourseToCategory(*created)
	category, err := o.discourse.CreateCategory(ctx, &transformed)
	if err != nil {
		return nil, fmt.Errorf("discourse category mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse category created", category); err != nil {
		return nil, err
	}

	mapping, err := o.mapper.SaveMapping(ctx, domain.EntityCourse, created.ID, category.ID, domain.SystemCanvas)
	if err != nil {
		return nil, fmt.Errorf("mapping persist: %w", err)
	}
	if err := o.step(ctx, tx.ID, "mapping persisted", mapping); err != nil {
		return nil, err
	}
	return &domain.IntegratedEntity{Mapping: mapping, Canvas: created, Discourse: category}, nil
}

// CreateAssignment creates the assignment in Canvas and its topic in the
// course's Discourse category. The course mapping must already exist.
func (o *SyncOrchestrator) CreateAssignment(ctx context.Context, assignment *domain.CanvasAssignment) (*domain.IntegratedEntity, error) {
	if assignment == nil || assignment.CourseID == "" {
		return nil, &domain.ValidationError{Field: "assignment", Reason: "course id is required"}
	}
	unlock := o.lockEntity(domain.EntityAssignment, assignment.ID, domain.SystemCanvas)
	defer unlock()

	tx, err := o.begin(ctx, domain.EntityAssignment, domain.OperationCreate, assignment.ID, domain.PriorityBackground)
	if err != nil {
		return nil, err
	}
	result, opErr := o.createAssignment(ctx, tx, assignment)
	return o.finish(ctx, tx, domain.PriorityBackground, result, opErr)
}

func (o *SyncOrchestrator) createAssignment(ctx context.Context, tx *domain.SyncTransaction, assignment *domain.CanvasAssignment) (*domain.IntegratedEntity, error) {
	courseMapping, err := o.mapper.RequireMapping(ctx, domain.EntityCourse, assignment.CourseID, domain.SystemCanvas)
	if err != nil {
		return nil, err
	}
	if err := o.step(ctx, tx.ID, "course mapping resolved", courseMapping); err != nil {
		return nil, err
	}

	created, err := o.canvas.CreateAssignment(ctx, assignment)
	if err != nil {
		return nil, fmt.Errorf("canvas assignment mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "canvas assignment created", created); err != nil {
		return nil, err
	}

	transformed := domain.AssignmentToTopic(*created)
	transformed.CategoryID = courseMapping.TargetID
	topic, err := o.discourse.CreateTopic(ctx, &transformed)
	if err != nil {
		return nil, fmt.Errorf("discourse topic mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse topic created", topic); err != nil {
		return nil, err
	}

	mapping, err := o.mapper.SaveMapping(ctx, domain.EntityAssignment, created.ID, topic.ID, domain.SystemCanvas)
	if err != nil {
		return nil, fmt.Errorf("mapping persist: %w", err)
	}
	if err := o.step(ctx, tx.ID, "mapping persisted", mapping); err != nil {
		return nil, err
	}
	return &domain.IntegratedEntity{Mapping: mapping, Canvas: created, Discourse: topic}, nil
}

// CreateSubmission submits work in Canvas and echoes it as a post under the
// assignment's topic. Assignment and user mappings must already exist.
// Submissions are consistency critical, so verification runs at critical
// priority.
func (o *SyncOrchestrator) CreateSubmission(ctx context.Context, submission *domain.CanvasSubmission) (*domain.IntegratedEntity, error) {
	if submission == nil || submission.AssignmentID == "" || submission.UserID == "" {
		return nil, &domain.ValidationError{Field: "submission", Reason: "assignment id and user id are required"}
	}
	unlock := o.lockEntity(domain.EntitySubmission, submission.ID, domain.SystemCanvas)
	defer unlock()

	tx, err := o.begin(ctx, domain.EntitySubmission, domain.OperationCreate, submission.ID, domain.PriorityCritical)
	if err != nil {
		return nil, err
	}
	result, opErr := o.createSubmission(ctx, tx, submission)
	return o.finish(ctx, tx, domain.PriorityCritical, result, opErr)
}

func (o *SyncOrchestrator) createSubmission(ctx context.Context, tx *domain.SyncTransaction, submission *domain.CanvasSubmission) (*domain.IntegratedEntity, error) {
	assignmentMapping, err := o.mapper.RequireMapping(ctx, domain.EntityAssignment, submission.AssignmentID, domain.SystemCanvas)
	if err != nil {
		return nil, err
	}
	if _, err := o.mapper.RequireMapping(ctx, domain.EntityUser, submission.UserID, domain.SystemCanvas); err != nil {
		return nil, err
	}
	if err := o.step(ctx, tx.ID, "prerequisite mappings resolved", assignmentMapping); err != nil {
		return nil, err
	}

	created, err := o.canvas.CreateSubmission(ctx, submission)
	if err != nil {
		return nil, fmt.Errorf("canvas submission mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "canvas submission created", created); err != nil {
		return nil, err
	}

	transformed := domain.SubmissionToPost(*created)
	transformed.TopicID = assignmentMapping.TargetID
	post, err := o.discourse.CreatePost(ctx, &transformed)
	if err != nil {
		return nil, fmt.Errorf("discourse post mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse post created", post); err != nil {
		return nil, err
	}

	mapping, err := o.mapper.SaveMapping(ctx, domain.EntitySubmission, created.ID, post.ID, domain.SystemCanvas)
	if err != nil {
		return nil, fmt.Errorf("mapping persist: %w", err)
	}
	if err := o.step(ctx, tx.ID, "mapping persisted", mapping); err != nil {
		return nil, err
	}
	return &domain.IntegratedEntity{Mapping: mapping, Canvas: created, Discourse: post}, nil
}

// GradeSubmission records the grade in Canvas and annotates the submission's
// forum post with the score. Submission and user mappings must already exist.
func (o *SyncOrchestrator) GradeSubmission(ctx context.Context, grade *domain.CanvasGrade) (*domain.IntegratedEntity, error) {
	if grade == nil || grade.SubmissionID == "" || grade.UserID == "" {
		return nil, &domain.ValidationError{Field: "grade", Reason: "submission id and user id are required"}
	}
	unlock := o.lockEntity(domain.EntitySubmission, grade.SubmissionID, domain.SystemCanvas)
	defer unlock()

	tx, err := o.begin(ctx, domain.EntityGrade, domain.OperationUpdate, grade.SubmissionID, domain.PriorityCritical)
	if err != nil {
		return nil, err
	}
	result, opErr := o.gradeSubmission(ctx, tx, grade)
	return o.finish(ctx, tx, domain.PriorityCritical, result, opErr)
}

func (o *SyncOrchestrator) gradeSubmission(ctx context.Context, tx *domain.SyncTransaction, grade *domain.CanvasGrade) (*domain.IntegratedEntity, error) {
	submissionMapping, err := o.mapper.RequireMapping(ctx, domain.EntitySubmission, grade.SubmissionID, domain.SystemCanvas)
	if err != nil {
		return nil, err
	}
	if _, err := o.mapper.RequireMapping(ctx, domain.EntityUser, grade.UserID, domain.SystemCanvas); err != nil {
		return nil, err
	}
	if err := o.step(ctx, tx.ID, "prerequisite mappings resolved", submissionMapping); err != nil {
		return nil, err
	}

	graded, err := o.canvas.GradeSubmission(ctx, grade)
	if err != nil {
		return nil, fmt.Errorf("canvas grade mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "canvas grade recorded", graded); err != nil {
		return nil, err
	}

	post, err := o.discourse.GetPost(ctx, submissionMapping.TargetID)
	if err != nil {
		return nil, fmt.Errorf("discourse post fetch: %w", err)
	}
	update := domain.GradeToPostUpdate(*graded, post.Raw)
	update.PostID = post.ID
	annotated, err := o.discourse.UpdatePost(ctx, post.ID, &update)
	if err != nil {
		return nil, fmt.Errorf("discourse post mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse post annotated", annotated); err != nil {
		return nil, err
	}

	mapping, err := o.mapper.SaveMapping(ctx, domain.EntityGrade, graded.SubmissionID, post.ID, domain.SystemCanvas)
	if err != nil {
		return nil, fmt.Errorf("mapping persist: %w", err)
	}
	if err := o.step(ctx, tx.ID, "mapping persisted", mapping); err != nil {
		return nil, err
	}
	return &domain.IntegratedEntity{Mapping: mapping, Canvas: graded, Discourse: annotated}, nil
}

// CreateDiscussion creates the discussion in Canvas and its topic in the
// course's Discourse category. The course mapping must already exist.
func (o *SyncOrchestrator) CreateDiscussion(ctx context.Context, discussion *domain.CanvasDiscussion) (*domain.IntegratedEntity, error) {
	if discussion == nil || discussion.CourseID == "" {
		return nil, &domain.ValidationError{Field: "discussion", Reason: "course id is required"}
	}
	unlock := o.lockEntity(domain.EntityDiscussion, discussion.ID, domain.SystemCanvas)
	defer unlock()

	tx, err := o.begin(ctx, domain.EntityDiscussion, domain.OperationCreate, discussion.ID, domain.PriorityBackground)
	if err != nil {
		return nil, err
	}
	result, opErr := o.createDiscussion(ctx, tx, discussion)
	return o.finish(ctx, tx, domain.PriorityBackground, result, opErr)
}

func (o *SyncOrchestrator) createDiscussion(ctx context.Context, tx *domain.SyncTransaction, discussion *domain.CanvasDiscussion) (*domain.IntegratedEntity, error) {
	courseMapping, err := o.mapper.RequireMapping(ctx, domain.EntityCourse, discussion.CourseID, domain.SystemCanvas)
	if err != nil {
		return nil, err
	}
	if err := o.step(ctx, tx.ID, "course mapping resolved", courseMapping); err != nil {
		return nil, err
	}

	created, err := o.canvas.CreateDiscussion(ctx, discussion)
	if err != nil {
		return nil, fmt.Errorf("canvas discussion mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "canvas discussion created", created); err != nil {
		return nil, err
	}

	transformed := domain.DiscussionToTopic(*created)
	transformed.CategoryID = courseMapping.TargetID
	topic, err := o.discourse.CreateTopic(ctx, &transformed)
	if err != nil {
		return nil, fmt.Errorf("discourse topic mutation: %w", err)
	}
	if err := o.step(ctx, tx.ID, "discourse topic created", topic); err != nil {
		return nil, err
	}

	mapping, err := o.mapper.SaveMapping(ctx, domain.EntityDiscussion, created.ID, topic.ID, domain.SystemCanvas)
	if err != nil {
		return nil, fmt.Errorf("mapping persist: %w", err)
	}
	if err := o.step(ctx, tx.ID, "mapping persisted", mapping); err != nil {
		return nil, err
	}
	return &domain.IntegratedEntity{Mapping: mapping, Canvas: created, Discourse: topic}, nil
}
