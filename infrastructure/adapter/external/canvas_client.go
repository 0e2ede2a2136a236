package external

import (
	"context"
	"net/url"
	"time"

	"github.com/syncora/syncora/application/port/outbound"
	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

// CanvasClientAdapter talks to the LMS REST API.
type CanvasClientAdapter struct {
	rest *restClient
}

func NewCanvasClientAdapter(baseURL, token string, timeout time.Duration, log logger.Logger) outbound.CanvasClient {
	return &CanvasClientAdapter{
		rest: newRESTClient(baseURL, token, domain.SystemCanvas, timeout, log),
	}
}

func (c *CanvasClientAdapter) GetUser(ctx context.Context, id string) (*domain.CanvasUser, error) {
	var user domain.CanvasUser
	if err := c.rest.get(ctx, "/api/v1/users/"+url.PathEscape(id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *CanvasClientAdapter) CreateUser(ctx context.Context, user *domain.CanvasUser) (*domain.CanvasUser, error) {
	var created domain.CanvasUser
	if err := c.rest.post(ctx, "/api/v1/users", user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *CanvasClientAdapter) UpdateUser(ctx context.Context, id string, user *domain.CanvasUser) (*domain.CanvasUser, error) {
	var updated domain.CanvasUser
	if err := c.rest.put(ctx, "/api/v1/users/"+url.PathEscape(id), user, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *CanvasClientAdapter) GetCourse(ctx context.Context, id string) (*domain.CanvasCourse, error) {
	var course domain.CanvasCourse
	if err := c.rest.get(ctx, "/api/v1/courses/"+url.PathEscape(id), &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *CanvasClientAdapter) CreateCourse(ctx context.Context, course *domain.CanvasCourse) (*domain.CanvasCourse, error) {
	var created domain.CanvasCourse
	if err := c.rest.post(ctx, "/api/v1/courses", course, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *CanvasClientAdapter) UpdateCourse(ctx context.Context, id string, course *domain.CanvasCourse) (*domain.CanvasCourse, error) {
	var updated domain.CanvasCourse
	if err := c.rest.put(ctx, "/api/v1/courses/"+url.PathEscape(id), course, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *CanvasClientAdapter) GetAssignment(ctx context.Context, id string) (*domain.CanvasAssignment, error) {
	var assignment domain.CanvasAssignment
	if err := c.rest.get(ctx, "/api/v1/assignments/"+url.PathEscape(id), &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (c *CanvasClientAdapter) CreateAssignment(ctx context.Context, assignment *domain.CanvasAssignment) (*domain.CanvasAssignment, error) {
	var created domain.CanvasAssignment
	path := "/api/v1/courses/" + url.PathEscape(assignment.CourseID) + "/assignments"
	if err := c.rest.post(ctx, path, assignment, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *CanvasClientAdapter) GetSubmission(ctx context.Context, id string) (*domain.CanvasSubmission, error) {
	var submission domain.CanvasSubmission
	if err := c.rest.get(ctx, "/api/v1/submissions/"+url.PathEscape(id), &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

func (c *CanvasClientAdapter) CreateSubmission(ctx context.Context, submission *domain.CanvasSubmission) (*domain.CanvasSubmission, error) {
	var created domain.CanvasSubmission
	path := "/api/v1/assignments/" + url.PathEscape(submission.AssignmentID) + "/submissions"
	if err := c.rest.post(ctx, path, submission, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *CanvasClientAdapter) GradeSubmission(ctx context.Context, grade *domain.CanvasGrade) (*domain.CanvasGrade, error) {
	var graded domain.CanvasGrade
	path := "/api/v1/submissions/" + url.PathEscape(grade.SubmissionID) + "/grade"
	if err := c.rest.put(ctx, path, grade, &graded); err != nil {
		return nil, err
	}
	return &graded, nil
}

func (c *CanvasClientAdapter) GetDiscussion(ctx context.Context, id string) (*domain.CanvasDiscussion, error) {
	var discussion domain.CanvasDiscussion
	if err := c.rest.get(ctx, "/api/v1/discussion_topics/"+url.PathEscape(id), &discussion); err != nil {
		return nil, err
	}
	return &discussion, nil
}

func (c *CanvasClientAdapter) CreateDiscussion(ctx context.Context, discussion *domain.CanvasDiscussion) (*domain.CanvasDiscussion, error) {
	var created domain.CanvasDiscussion
	path := "/api/v1/courses/" + url.PathEscape(discussion.CourseID) + "/discussion_topics"
	if err := c.rest.post(ctx, path, discussion, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
