package outbound

import (
	"context"

	"github.com/syncora/syncora/domain"
)

// CanvasClient is the narrow resource-oriented interface onto the LMS.
// Every call carries the caller's ctx; deadline expiry surfaces as a
// domain.TransientExternalError, 4xx responses as PermanentExternalError.
type CanvasClient interface {
	GetUser(ctx context.Context, id string) (*domain.CanvasUser, error)
	CreateUser(ctx context.Context, user *domain.CanvasUser) (*domain.CanvasUser, error)
	UpdateUser(ctx context.Context, id string, user *domain.CanvasUser) (*domain.CanvasUser, error)

	GetCourse(ctx context.Context, id string) (*domain.CanvasCourse, error)
	CreateCourse(ctx context.Context, course *domain.CanvasCourse) (*domain.CanvasCourse, error)
	UpdateCourse(ctx context.Context, id string, course *domain.CanvasCourse) (*domain.CanvasCourse, error)

	GetAssignment(ctx context.Context, id string) (*domain.CanvasAssignment, error)
	CreateAssignment(ctx context.Context, assignment *domain.CanvasAssignment) (*domain.CanvasAssignment, error)

	GetSubmission(ctx context.Context, id string) (*domain.CanvasSubmission, error)
	CreateSubmission(ctx context.Context, submission *domain.CanvasSubmission) (*domain.CanvasSubmission, error)

	GradeSubmission(ctx context.Context, grade *domain.CanvasGrade) (*domain.CanvasGrade, error)

	GetDiscussion(ctx context.Context, id string) (*domain.CanvasDiscussion, error)
	CreateDiscussion(ctx context.Context, discussion *domain.CanvasDiscussion) (*domain.CanvasDiscussion, error)
}

// DiscourseClient is the narrow resource-oriented interface onto the forum.
type DiscourseClient interface {
	GetUser(ctx context.Context, id string) (*domain.DiscourseUser, error)
	CreateUser(ctx context.Context, user *domain.DiscourseUser) (*domain.DiscourseUser, error)
	UpdateUser(ctx context.Context, id string, user *domain.DiscourseUser) (*domain.DiscourseUser, error)

	GetCategory(ctx context.Context, id string) (*domain.DiscourseCategory, error)
	CreateCategory(ctx context.Context, category *domain.DiscourseCategory) (*domain.DiscourseCategory, error)
	UpdateCategory(ctx context.Context, id string, category *domain.DiscourseCategory) (*domain.DiscourseCategory, error)

	GetTopic(ctx context.Context, id string) (*domain.DiscourseTopic, error)
	CreateTopic(ctx context.Context, topic *domain.DiscourseTopic) (*domain.DiscourseTopic, error)
	UpdateTopic(ctx context.Context, id string, topic *domain.DiscourseTopic) (*domain.DiscourseTopic, error)

	GetPost(ctx context.Context, id string) (*domain.DiscoursePost, error)
	CreatePost(ctx context.Context, post *domain.DiscoursePost) (*domain.DiscoursePost, error)
	UpdatePost(ctx context.Context, id string, update *domain.DiscoursePostUpdate) (*domain.DiscoursePost, error)

	DeactivateUser(ctx context.Context, id string) error
	ArchiveCategory(ctx context.Context, id string) error
	DeleteTopic(ctx context.Context, id string) error
	DeletePost(ctx context.Context, id string) error
}
