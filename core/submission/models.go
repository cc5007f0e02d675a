package submission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/microlms/core"
)

// State of the (assignment, student) pair.
type State int

const (
	StateNone State = iota
	StateSubmitted
	StateGraded
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "SUBMITTED"
	case StateGraded:
		return "GRADED"
	default:
		return "NONE"
	}
}

// StateOf returns StateNone for a nil submission.
func StateOf(s *Submission) State {
	switch {
	case s == nil:
		return StateNone
	case s.AcquiredMarks == nil:
		return StateSubmitted
	default:
		return StateGraded
	}
}

type Submission struct {
	ID            string    `json:"id"`
	AssignmentID  string    `json:"assignment_id"`
	StudentID     string    `json:"student_id"`
	StudentEmail  string    `json:"student_email"`
	SubmittedAt   time.Time `json:"submitted_at"` // UTC
	FilePaths     []string  `json:"files"`
	AcquiredMarks *int      `json:"acquired_marks"` // nil until graded
}

func (s Submission) Graded() bool { return s.AcquiredMarks != nil }

type GradeRequest struct {
	SubmissionID string `json:"submission_id" validate:"required"`
	CourseID     string `json:"course_id" validate:"required"`
	Marks        *int   `json:"marks" validate:"required"`
}

func (gr *GradeRequest) Validate(validate *validator.Validate) error {
	gr.SubmissionID = core.CleanString(gr.SubmissionID)
	gr.CourseID = core.CleanString(gr.CourseID)
	return validate.Struct(gr)
}

type UpdateGrade struct {
	Marks *int `json:"marks" validate:"required"`
}
