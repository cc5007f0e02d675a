package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/microlms/core"
)

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	InviteCode  string    `json:"invite_code"`
	TeacherID   string    `json:"teacher_id"`
	StudentIDs  []string  `json:"-"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

func (c Course) OwnerID() string { return c.TeacherID }

func (c Course) HasStudent(userID string) bool {
	for _, id := range c.StudentIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CourseListing is the course as listed to its caller.
// Teachers get the invite code and roster, students get the teacher's name.
type CourseListing struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	InviteCode       string   `json:"invite_code,omitempty"`
	EnrolledStudents []string `json:"enrolled_students,omitempty"`
	TeacherName      string   `json:"teacher_name,omitempty"`
}

type NewCourse struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Title != nil {
		title := core.CleanString(*uc.Title)
		uc.Title = &title
	}
	return validate.Struct(uc)
}

type Assignment struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"` // UTC
	MaxMarks    int       `json:"max_marks"`
	Materials   []string  `json:"materials"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// PastDue reports whether now is after the due date.
func (a Assignment) PastDue(now time.Time) bool {
	return now.After(a.DueDate)
}

type NewAssignment struct {
	CourseID    string    `json:"course_id" validate:"required"`
	Title       string    `json:"title" validate:"required,notblank,max=255"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxMarks    int       `json:"max_marks" validate:"required,gt=0"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.DueDate = na.DueDate.UTC()
	return validate.Struct(na)
}

// UpdateAssignment only changes the provided fields. The due date is not checked against the clock.
type UpdateAssignment struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxMarks    *int       `json:"max_marks" validate:"omitempty,gt=0"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		title := core.CleanString(*ua.Title)
		ua.Title = &title
	}
	return validate.Struct(ua)
}

// GetFilter selects a single course by one of its unique fields.
type GetFilter struct {
	ID         string
	InviteCode string
}
