package domain

import (
	"fmt"
	"strings"
)

// Transform functions are pure and total over their documented fields: a
// missing optional source field degrades to a defined default instead of
// failing. One pair exists per entity kind.

// Slugify converts text into a URL-safe slug: lowercase, whitespace to
// hyphens, everything outside [a-z0-9-] stripped, repeated hyphens collapsed,
// edges trimmed.
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

// UserToDiscourse maps an LMS user onto a forum user. The username derives
// from the email local part; accounts without a usable email fall back to a
// deterministic canvas-user-<id> handle.
func UserToDiscourse(u CanvasUser) DiscourseUser {
	username := ""
	if at := strings.Index(u.Email, "@"); at > 0 {
		username = Slugify(u.Email[:at])
	}
	if username == "" {
		username = "canvas-user-" + u.ID
	}
	return DiscourseUser{
		Username: username,
		Name:     u.Name,
		Email:    u.Email,
		Active:   u.WorkflowState != "deleted",
		CustomFields: map[string]string{
			"canvas_user_id": u.ID,
		},
	}
}

// DiscourseUserToCanvas maps a forum user back onto an LMS user.
func DiscourseUserToCanvas(u DiscourseUser) CanvasUser {
	name := u.Name
	if name == "" {
		name = u.Username
	}
	state := "active"
	if !u.Active {
		state = "deleted"
	}
	return CanvasUser{
		ID:            u.CustomFields["canvas_user_id"],
		Name:          name,
		Email:         u.Email,
		WorkflowState: state,
	}
}

// CourseToCategory maps an LMS course onto a forum category. The slug comes
// from the course code when present, otherwise the name.
func CourseToCategory(c CanvasCourse) DiscourseCategory {
	code := c.CourseCode
	if code == "" {
		code = c.Name
	}
	description := c.PublicDescription
	if description == "" {
		description = c.SyllabusBody
	}
	return DiscourseCategory{
		Name:        c.Name,
		Slug:        Slugify(code),
		Color:       "0088CC",
		TextColor:   "FFFFFF",
		Description: description,
		CustomFields: map[string]string{
			"canvas_course_id":   c.ID,
			"canvas_course_code": code,
		},
	}
}

// CategoryToCourse maps a forum category back onto an LMS course.
func CategoryToCourse(c DiscourseCategory) CanvasCourse {
	return CanvasCourse{
		ID:                c.CustomFields["canvas_course_id"],
		Name:              c.Name,
		CourseCode:        c.CustomFields["canvas_course_code"],
		PublicDescription: c.Description,
	}
}

// AssignmentToTopic maps an LMS assignment onto a forum topic. The category
// binding is the caller's job since it requires the course mapping.
func AssignmentToTopic(a CanvasAssignment) DiscourseTopic {
	title := a.Name
	if title == "" {
		title = "Assignment " + a.ID
	}
	raw := a.Description
	if a.PointsPossible > 0 {
		raw += fmt.Sprintf("\n\n**Points possible:** %g", a.PointsPossible)
	}
	if a.DueAt != nil {
		raw += fmt.Sprintf("\n**Due:** %s", a.DueAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	return DiscourseTopic{
		Title: title,
		Raw:   strings.TrimSpace(raw),
		CustomFields: map[string]string{
			"canvas_assignment_id": a.ID,
			"canvas_course_id":     a.CourseID,
		},
	}
}

// TopicToAssignment maps a forum topic back onto an LMS assignment.
func TopicToAssignment(t DiscourseTopic) CanvasAssignment {
	return CanvasAssignment{
		ID:          t.CustomFields["canvas_assignment_id"],
		CourseID:    t.CustomFields["canvas_course_id"],
		Name:        t.Title,
		Description: t.Raw,
	}
}

// SubmissionToPost maps an LMS submission onto a forum post under the
// assignment's topic. The topic binding is the caller's job.
func SubmissionToPost(s CanvasSubmission) DiscoursePost {
	raw := s.Body
	if raw == "" {
		raw = fmt.Sprintf("Submission %s (attempt %d)", s.ID, maxInt(s.Attempt, 1))
	}
	return DiscoursePost{
		Raw: raw,
		CustomFields: map[string]string{
			"canvas_submission_id": s.ID,
			"canvas_assignment_id": s.AssignmentID,
			"canvas_user_id":       s.UserID,
		},
	}
}

// PostToSubmission maps a forum post back onto an LMS submission.
func PostToSubmission(p DiscoursePost) CanvasSubmission {
	return CanvasSubmission{
		ID:           p.CustomFields["canvas_submission_id"],
		AssignmentID: p.CustomFields["canvas_assignment_id"],
		UserID:       p.CustomFields["canvas_user_id"],
		Body:         p.Raw,
	}
}

// GradeToPostUpdate maps a grade onto an annotation edit of the submission's
// forum post.
func GradeToPostUpdate(g CanvasGrade, postRaw string) DiscoursePostUpdate {
	annotation := fmt.Sprintf("**Graded:** %g", g.Score)
	if g.PointsPossible > 0 {
		annotation = fmt.Sprintf("**Graded:** %g / %g", g.Score, g.PointsPossible)
	}
	if g.Comment != "" {
		annotation += "\n> " + g.Comment
	}
	raw := annotation
	if postRaw != "" {
		raw = postRaw + "\n\n---\n" + annotation
	}
	return DiscoursePostUpdate{
		Raw:        raw,
		EditReason: "grade sync",
	}
}

// PostUpdateToGrade extracts nothing meaningful; grades never flow back from
// the forum, so the reverse transform returns the zero grade for the post.
func PostUpdateToGrade(p DiscoursePost) CanvasGrade {
	return CanvasGrade{
		SubmissionID: p.CustomFields["canvas_submission_id"],
		AssignmentID: p.CustomFields["canvas_assignment_id"],
		UserID:       p.CustomFields["canvas_user_id"],
	}
}

// DiscussionToTopic maps an LMS discussion onto a forum topic.
func DiscussionToTopic(d CanvasDiscussion) DiscourseTopic {
	title := d.Title
	if title == "" {
		title = "Discussion " + d.ID
	}
	return DiscourseTopic{
		Title: title,
		Raw:   d.Message,
		CustomFields: map[string]string{
			"canvas_discussion_id": d.ID,
			"canvas_course_id":     d.CourseID,
		},
	}
}

// TopicToDiscussion maps a forum topic back onto an LMS discussion.
func TopicToDiscussion(t DiscourseTopic) CanvasDiscussion {
	return CanvasDiscussion{
		ID:       t.CustomFields["canvas_discussion_id"],
		CourseID: t.CustomFields["canvas_course_id"],
		Title:    t.Title,
		Message:  t.Raw,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
