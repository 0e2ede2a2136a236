package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncora/syncora/domain"
)

func TestCreateCourseLinksBothSystems(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	result, err := eng.orchestrator.CreateCourse(ctx, &domain.CanvasCourse{Name: "Intro to Go", CourseCode: "GO-101"})
	require.NoError(t, err)
	require.NotNil(t, result.Mapping)

	assert.Equal(t, domain.EntityCourse, result.Mapping.EntityType)
	assert.Equal(t, domain.SystemCanvas, result.Mapping.SourceSystem)
	assert.Equal(t, domain.SystemDiscourse, result.Mapping.TargetSystem)

	category, ok := result.Discourse.(*domain.DiscourseCategory)
	require.True(t, ok)
	assert.Equal(t, "go-101", category.Slug)

	status, err := eng.states.Get(ctx, domain.EntityCourse, result.Mapping.SourceID, domain.SystemCanvas)
	require.NoError(t, err)
	assert.True(t, status.Synced)
	assert.Equal(t, domain.SyncCompleted, status.Status)
	assert.Equal(t, category.ID, status.TargetID)
}

func TestCreateCourseEnqueuesVerification(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	result, err := eng.orchestrator.CreateCourse(ctx, &domain.CanvasCourse{Name: "Databases"})
	require.NoError(t, err)

	event := eng.queue.TryDequeue()
	require.NotNil(t, event)
	assert.Equal(t, domain.OperationReference, event.Operation)
	assert.Equal(t, domain.PriorityBackground, event.Priority)
	assert.Equal(t, result.Mapping.SourceID, event.SourceID)
}

func TestCreateCourseCommitsTransaction(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.orchestrator.CreateCourse(ctx, &domain.CanvasCourse{Name: "Systems"})
	require.NoError(t, err)

	recent, err := eng.transactions.ListRecent(ctx, domain.TransactionFilter{EntityType: domain.EntityCourse}, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	tx := recent[0]
	assert.Equal(t, domain.TransactionCompleted, tx.Status)
	require.NotNil(t, tx.EndTime)
	require.NotEmpty(t, tx.Steps)
	assert.Equal(t, "transaction committed", tx.Steps[len(tx.Steps)-1].Description)
}

func TestCreateAssignmentUsesCourseMapping(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	course, err := eng.orchestrator.CreateCourse(ctx, &domain.CanvasCourse{Name: "Networks"})
	require.NoError(t, err)

	result, err := eng.orchestrator.CreateAssignment(ctx, &domain.CanvasAssignment{
		CourseID: course.Mapping.SourceID,
		Name:     "Lab 1",
	})
	require.NoError(t, err)

	topic, ok := result.Discourse.(*domain.DiscourseTopic)
	require.True(t, ok)
	assert.Equal(t, course.Mapping.TargetID, topic.CategoryID)
}

func TestCreateAssignmentWithoutCourseMappingFails(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.orchestrator.CreateAssignment(ctx, &domain.CanvasAssignment{CourseID: "nope", Name: "Lab"})
	require.Error(t, err)
	assert.True(t, domain.IsMissingMapping(err))

	// The attempt itself must still leave a failed audit trail.
	recent, lerr := eng.transactions.ListRecent(ctx, domain.TransactionFilter{EntityType: domain.EntityAssignment}, 10)
	require.NoError(t, lerr)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.TransactionFailed, recent[0].Status)
	assert.Contains(t, recent[0].ErrorMessage, "no mapping")

	assert.Empty(t, eng.discourse.topics)
}

func TestGradeSubmissionAnnotatesPost(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	user, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	course, err := eng.orchestrator.CreateCourse(ctx, &domain.CanvasCourse{Name: "Algorithms"})
	require.NoError(t, err)
	assignment, err := eng.orchestrator.CreateAssignment(ctx, &domain.CanvasAssignment{
		CourseID: course.Mapping.SourceID, Name: "Sorting", PointsPossible: 100,
	})
	require.NoError(t, err)
	submission, err := eng.orchestrator.CreateSubmission(ctx, &domain.CanvasSubmission{
		AssignmentID: assignment.Mapping.SourceID,
		UserID:       user.Mapping.SourceID,
		Body:         "my answer",
	})
	require.NoError(t, err)

	result, err := eng.orchestrator.GradeSubmission(ctx, &domain.CanvasGrade{
		SubmissionID:   submission.Mapping.SourceID,
		UserID:         user.Mapping.SourceID,
		Score:          92,
		PointsPossible: 100,
		Comment:        "well done",
	})
	require.NoError(t, err)

	post, ok := result.Discourse.(*domain.DiscoursePost)
	require.True(t, ok)
	assert.Contains(t, post.Raw, "**Graded:**")
	assert.Contains(t, post.Raw, "92")
	assert.Contains(t, post.Raw, "> well done")

	// The grade mapping is keyed by the submission id.
	assert.Equal(t, submission.Mapping.SourceID, result.Mapping.SourceID)
	assert.Equal(t, submission.Mapping.TargetID, result.Mapping.TargetID)
}

func TestGradeSubmissionWithoutMappingFails(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.orchestrator.GradeSubmission(ctx, &domain.CanvasGrade{
		SubmissionID: "missing", UserID: "u-1", Score: 50,
	})
	require.Error(t, err)
	assert.True(t, domain.IsMissingMapping(err))

	recent, lerr := eng.transactions.ListRecent(ctx, domain.TransactionFilter{EntityType: domain.EntityGrade}, 10)
	require.NoError(t, lerr)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.TransactionFailed, recent[0].Status)
}

func TestCreateUserTransientFailureRollsBack(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()
	eng.discourse.fail["CreateUser"] = &domain.TransientExternalError{
		System: domain.SystemDiscourse, Op: "CreateUser", Err: errors.New("gateway timeout"),
	}

	_, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Grace", Email: "grace@example.com"})
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))

	recent, lerr := eng.transactions.ListRecent(ctx, domain.TransactionFilter{EntityType: domain.EntityUser}, 10)
	require.NoError(t, lerr)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.TransactionFailed, recent[0].Status)

	// No verification should be queued for a failed propagation.
	assert.Nil(t, eng.queue.TryDequeue())
}

func TestCreateUserRejectsEmptyName(t *testing.T) {
	eng := newTestEngine()

	_, err := eng.orchestrator.CreateUser(context.Background(), &domain.CanvasUser{Email: "x@example.com"})
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestGetIntegratedEntityReadsBothSides(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	created, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Linus", Email: "linus@example.com"})
	require.NoError(t, err)

	got, err := eng.orchestrator.GetIntegratedEntity(ctx, domain.EntityUser, created.Mapping.SourceID, domain.SystemCanvas)
	require.NoError(t, err)
	require.NotNil(t, got.Canvas)
	require.NotNil(t, got.Discourse)

	forum, ok := got.Discourse.(*domain.DiscourseUser)
	require.True(t, ok)
	assert.Equal(t, created.Mapping.TargetID, forum.ID)
}

func TestGetIntegratedEntityNeverFabricatesMapping(t *testing.T) {
	eng := newTestEngine()

	_, err := eng.orchestrator.GetIntegratedEntity(context.Background(), domain.EntityUser, "ghost", domain.SystemCanvas)
	require.Error(t, err)
	assert.True(t, domain.IsMissingMapping(err))
}

func TestProcessEventReferenceReconciles(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	created, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Barbara", Email: "barbara@example.com"})
	require.NoError(t, err)

	event := eng.queue.TryDequeue()
	require.NotNil(t, event)
	require.Equal(t, domain.OperationReference, event.Operation)

	require.NoError(t, eng.orchestrator.ProcessEvent(ctx, event))

	status, err := eng.states.Get(ctx, domain.EntityUser, created.Mapping.SourceID, domain.SystemCanvas)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncCompleted, status.Status)
}

func TestProcessEventReferenceFailsWhenTargetGone(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	created, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Vanish", Email: "vanish@example.com"})
	require.NoError(t, err)
	delete(eng.discourse.users, created.Mapping.TargetID)

	event := eng.queue.TryDequeue()
	require.NotNil(t, event)

	err = eng.orchestrator.ProcessEvent(ctx, event)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "discourse verification"))
}

func TestProcessEventUpdatePropagatesCurrentRecord(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	created, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Old Name", Email: "person@example.com"})
	require.NoError(t, err)
	eng.queue.TryDequeue()

	sourceID := created.Mapping.SourceID
	eng.canvas.users[sourceID].Name = "New Name"

	err = eng.orchestrator.ProcessEvent(ctx, &domain.SyncEvent{
		Priority:     domain.PriorityHigh,
		EntityType:   domain.EntityUser,
		Operation:    domain.OperationUpdate,
		SourceSystem: domain.SystemCanvas,
		SourceID:     sourceID,
	})
	require.NoError(t, err)

	assert.Equal(t, "New Name", eng.discourse.users[created.Mapping.TargetID].Name)
}

func TestProcessEventCreateLinksUnmappedEntity(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	// Record exists in canvas but was never propagated.
	eng.canvas.users["u-77"] = &domain.CanvasUser{ID: "u-77", Name: "Side Door", Email: "side@example.com"}

	err := eng.orchestrator.ProcessEvent(ctx, &domain.SyncEvent{
		Priority:     domain.PriorityHigh,
		EntityType:   domain.EntityUser,
		Operation:    domain.OperationCreate,
		SourceSystem: domain.SystemCanvas,
		SourceID:     "u-77",
	})
	require.NoError(t, err)

	mapping, err := eng.mapper.GetMapping(ctx, domain.EntityUser, "u-77", domain.SystemCanvas)
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.NotEmpty(t, mapping.TargetID)
	assert.Contains(t, eng.discourse.users, mapping.TargetID)
}

func TestProcessEventRejectsDiscourseMutation(t *testing.T) {
	eng := newTestEngine()

	err := eng.orchestrator.ProcessEvent(context.Background(), &domain.SyncEvent{
		Priority:     domain.PriorityHigh,
		EntityType:   domain.EntityUser,
		Operation:    domain.OperationCreate,
		SourceSystem: domain.SystemDiscourse,
		SourceID:     "du-1",
	})
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.True(t, errors.As(err, &validation))
	assert.False(t, domain.IsTransient(err))
}

func TestProcessEventDeleteDeactivatesAndUnlinks(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	created, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Leaver", Email: "leaver@example.com"})
	require.NoError(t, err)
	eng.queue.TryDequeue()

	payload, _ := json.Marshal(&domain.DeletePayload{Unlink: true})
	err = eng.orchestrator.ProcessEvent(ctx, &domain.SyncEvent{
		Priority:     domain.PriorityHigh,
		EntityType:   domain.EntityUser,
		Operation:    domain.OperationDelete,
		SourceSystem: domain.SystemCanvas,
		SourceID:     created.Mapping.SourceID,
		Payload:      payload,
	})
	require.NoError(t, err)

	assert.False(t, eng.discourse.users[created.Mapping.TargetID].Active)

	mapping, err := eng.mapper.GetMapping(ctx, domain.EntityUser, created.Mapping.SourceID, domain.SystemCanvas)
	require.NoError(t, err)
	assert.Nil(t, mapping)
}

func TestProcessEventDeleteKeepsMappingByDefault(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	created, err := eng.orchestrator.CreateCourse(ctx, &domain.CanvasCourse{Name: "Retiring"})
	require.NoError(t, err)
	eng.queue.TryDequeue()

	err = eng.orchestrator.ProcessEvent(ctx, &domain.SyncEvent{
		Priority:     domain.PriorityHigh,
		EntityType:   domain.EntityCourse,
		Operation:    domain.OperationDelete,
		SourceSystem: domain.SystemCanvas,
		SourceID:     created.Mapping.SourceID,
	})
	require.NoError(t, err)

	assert.True(t, eng.discourse.archived[created.Mapping.TargetID])

	mapping, err := eng.mapper.GetMapping(ctx, domain.EntityCourse, created.Mapping.SourceID, domain.SystemCanvas)
	require.NoError(t, err)
	assert.NotNil(t, mapping)
}

func TestProcessEventGradeRequiresPayload(t *testing.T) {
	eng := newTestEngine()

	err := eng.orchestrator.ProcessEvent(context.Background(), &domain.SyncEvent{
		Priority:     domain.PriorityCritical,
		EntityType:   domain.EntityGrade,
		Operation:    domain.OperationCreate,
		SourceSystem: domain.SystemCanvas,
		SourceID:     "s-1",
	})
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestProcessEventValidatesEvent(t *testing.T) {
	eng := newTestEngine()

	err := eng.orchestrator.ProcessEvent(context.Background(), &domain.SyncEvent{
		Priority:     domain.PriorityHigh,
		EntityType:   "spaceship",
		Operation:    domain.OperationCreate,
		SourceSystem: domain.SystemCanvas,
		SourceID:     "x",
	})
	require.Error(t, err)
	var validation *domain.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestSubmissionVerificationIsCritical(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	user, err := eng.orchestrator.CreateUser(ctx, &domain.CanvasUser{Name: "Student", Email: "s@example.com"})
	require.NoError(t, err)
	course, err := eng.orchestrator.CreateCourse(ctx, &domain.CanvasCourse{Name: "Course"})
	require.NoError(t, err)
	assignment, err := eng.orchestrator.CreateAssignment(ctx, &domain.CanvasAssignment{CourseID: course.Mapping.SourceID, Name: "HW"})
	require.NoError(t, err)

	// Drain the background verifications queued so far.
	for eng.queue.TryDequeue() != nil {
	}

	_, err = eng.orchestrator.CreateSubmission(ctx, &domain.CanvasSubmission{
		AssignmentID: assignment.Mapping.SourceID,
		UserID:       user.Mapping.SourceID,
		Body:         "work",
	})
	require.NoError(t, err)

	event := eng.queue.TryDequeue()
	require.NotNil(t, event)
	assert.Equal(t, domain.PriorityCritical, event.Priority)
	assert.Equal(t, domain.EntitySubmission, event.EntityType)
}
