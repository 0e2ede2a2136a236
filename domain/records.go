package domain

import "time"

// Canvas-side records. Fields mirror the narrow slice of the LMS API this
// engine consumes; IDs are opaque strings.

type CanvasUser struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	WorkflowState string `json:"workflow_state,omitempty"`
}

type CanvasCourse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CourseCode        string `json:"course_code,omitempty"`
	PublicDescription string `json:"public_description,omitempty"`
	SyllabusBody      string `json:"syllabus_body,omitempty"`
	WorkflowState     string `json:"workflow_state,omitempty"`
}

type CanvasAssignment struct {
	ID             string     `json:"id"`
	CourseID       string     `json:"course_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	PointsPossible float64    `json:"points_possible,omitempty"`
}

type CanvasSubmission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	UserID       string     `json:"user_id"`
	Body         string     `json:"body,omitempty"`
	Attempt      int        `json:"attempt,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
}

type CanvasGrade struct {
	SubmissionID   string     `json:"submission_id"`
	AssignmentID   string     `json:"assignment_id"`
	UserID         string     `json:"user_id"`
	Score          float64    `json:"score"`
	PointsPossible float64    `json:"points_possible,omitempty"`
	Comment        string     `json:"comment,omitempty"`
	GradedAt       *time.Time `json:"graded_at,omitempty"`
}

type CanvasDiscussion struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Message  string `json:"message,omitempty"`
}

// Discourse-side records.

type DiscourseUser struct {
	ID           string            `json:"id"`
	Username     string            `json:"username"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Active       bool              `json:"active"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

type DiscourseCategory struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Slug         string            `json:"slug"`
	Color        string            `json:"color,omitempty"`
	TextColor    string            `json:"text_color,omitempty"`
	Description  string            `json:"description,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

type DiscourseTopic struct {
	ID           string            `json:"id"`
	CategoryID   string            `json:"category_id"`
	Title        string            `json:"title"`
	Raw          string            `json:"raw,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

type DiscoursePost struct {
	ID           string            `json:"id"`
	TopicID      string            `json:"topic_id"`
	Username     string            `json:"username,omitempty"`
	Raw          string            `json:"raw"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// DiscoursePostUpdate is an edit applied to an existing post, used to annotate
// a submission post with its grade.
type DiscoursePostUpdate struct {
	PostID     string `json:"post_id"`
	Raw        string `json:"raw"`
	EditReason string `json:"edit_reason,omitempty"`
}

// IntegratedEntity is the read-path view of one entity fetched from both
// systems through its mapping.
type IntegratedEntity struct {
	Mapping   *EntityMapping  `json:"mapping"`
	Canvas    interface{}     `json:"canvas"`
	Discourse interface{}     `json:"discourse"`
}
