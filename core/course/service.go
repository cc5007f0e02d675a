package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/user"
)

var (
	// errors
	ErrCourseNotFound     = core.NewError(core.KindNotFound, "course not found")
	ErrInvalidInviteCode  = core.NewError(core.KindNotFound, "invalid invite code")
	ErrNotAStudent        = core.NewError(core.KindForbidden, "user is not a student")
	ErrNotEnrolled        = core.NewError(core.KindForbidden, "user is not enrolled in this course")
	ErrAlreadyEnrolled    = core.NewError(core.KindConflict, "user already enrolled in the course")
	ErrUserNotAStudent    = core.NewError(core.KindInvalidState, "the user is not a student")
	ErrStudentNotEnrolled = core.NewError(core.KindInvalidState, "student is not enrolled in this course")
	ErrInviteCodeExists   = core.NewError(core.KindConflict, "invite code already in use")
	ErrInviteCodeSpace    = core.NewError(core.KindConflict, "could not generate a unique invite code")
	ErrAssignmentNotFound = core.NewError(core.KindNotFound, "assignment not found")
	ErrDueDateInPast      = core.NewError(core.KindValidation, "due date must be in the future")
)

type (
	Repository interface {
		InviteCodeExists(ctx context.Context, code string) (bool, error)
		// CreateCourse fails with ErrInviteCodeExists when the invite code is taken.
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		ListCoursesByTeacher(ctx context.Context, teacherID string) ([]Course, error)
		ListCoursesByStudent(ctx context.Context, studentID string) ([]Course, error)
		// AddStudent fails with ErrAlreadyEnrolled if the student is already a member.
		AddStudent(ctx context.Context, courseID, studentID string) error
		// RemoveStudent fails with ErrStudentNotEnrolled if the student is not a member.
		RemoveStudent(ctx context.Context, courseID, studentID string) error
		// DeleteCourse removes the course with its submissions, assignments and enrollments.
		// It returns the references of the files attached to the removed records.
		DeleteCourse(ctx context.Context, id string) ([]string, error)

		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		// DeleteAssignment removes the assignment with its submissions and returns their file references.
		DeleteAssignment(ctx context.Context, id string) ([]string, error)
		ListAssignments(ctx context.Context, courseID string) ([]Assignment, error)
		// ListPendingAssignments lists the course assignments the student has not submitted.
		ListPendingAssignments(ctx context.Context, courseID, studentID string) ([]Assignment, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetByEmail(ctx context.Context, email string) (user.User, error)
	}

	Service struct {
		repo          Repository
		users         UserGetter
		mailSvc       core.EmailService
		files         core.FileStorage
		logger        core.Logger
		validate      *validator.Validate
		now           core.NowFunc
		genInviteCode func() (string, error)
	}
)

func NewService(
	repo Repository,
	users UserGetter,
	mailSvc core.EmailService,
	files core.FileStorage,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:          repo,
		users:         users,
		mailSvc:       mailSvc,
		files:         files,
		logger:        logger,
		validate:      validate,
		now:           core.UTCNow,
		genInviteCode: generateInviteCode,
	}
}

// SetNowFunc replaces the service clock.
func (svc *Service) SetNowFunc(now core.NowFunc) {
	svc.now = now
}

// CreateCourse creates a course owned by the teacher, with a fresh invite code.
func (svc *Service) CreateCourse(ctx context.Context, teacher auth.Identity, nc NewCourse) (Course, error) {
	if err := auth.RequireRole(teacher, auth.RoleTeacher); err != nil {
		return Course{}, err
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	crs := Course{
		ID:          uuid.New().String(),
		Title:       nc.Title,
		Description: nc.Description,
		TeacherID:   teacher.UserID,
		CreatedAt:   svc.now(),
	}
	return svc.createWithUniqueInviteCode(ctx, crs)
}

// GetCourse returns a course visible to its owner or to an enrolled student.
func (svc *Service) GetCourse(ctx context.Context, id auth.Identity, courseID string) (Course, error) {
	crs, err := svc.getCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if err := requireMember(id, crs); err != nil {
		return Course{}, err
	}
	return crs, nil
}

func (svc *Service) UpdateCourse(ctx context.Context, teacher auth.Identity, courseID string, uc UpdateCourse) (Course, error) {
	crs, err := svc.getCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if err := auth.All(auth.RequireRole(teacher, auth.RoleTeacher), auth.RequireCourseOwner(teacher, crs)); err != nil {
		return Course{}, err
	}
	if err := uc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	if uc.Title != nil {
		crs.Title = *uc.Title
	}
	if uc.Description != nil {
		crs.Description = core.CleanString(*uc.Description)
	}
	return svc.repo.UpdateCourse(ctx, crs)
}

// Enroll adds the student to the course matching inviteCode.
func (svc *Service) Enroll(ctx context.Context, student auth.Identity, inviteCode string) error {
	inviteCode = core.CleanString(inviteCode, true /* lower */)
	if inviteCode == "" {
		return ErrInvalidInviteCode
	}
	crs, err := svc.repo.GetCourse(ctx, GetFilter{InviteCode: inviteCode})
	if err != nil {
		if errors.Is(err, ErrCourseNotFound) {
			return ErrInvalidInviteCode
		}
		return errors.Wrap(err, "finding course by invite code")
	}
	if err := auth.RequireRole(student, auth.RoleStudent); err != nil {
		return ErrNotAStudent
	}
	if crs.HasStudent(student.UserID) {
		return ErrAlreadyEnrolled
	}
	// the storage constraint settles concurrent enrollments
	return svc.repo.AddStudent(ctx, crs.ID, student.UserID)
}

// Unenroll removes a student from a course owned by the teacher.
func (svc *Service) Unenroll(ctx context.Context, teacher auth.Identity, courseID, studentEmail string) error {
	crs, err := svc.getCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if err := auth.RequireCourseOwner(teacher, crs); err != nil {
		return err
	}
	student, err := svc.users.GetByEmail(ctx, studentEmail)
	if err != nil {
		return err
	}
	if !student.Roles.Has(auth.RoleStudent) {
		return ErrUserNotAStudent
	}
	if !crs.HasStudent(student.ID) {
		return ErrStudentNotEnrolled
	}
	return svc.repo.RemoveStudent(ctx, crs.ID, student.ID)
}

// DeleteCourse deletes the course with its assignments and their submissions.
func (svc *Service) DeleteCourse(ctx context.Context, teacher auth.Identity, courseID string) error {
	if err := auth.RequireRole(teacher, auth.RoleTeacher); err != nil {
		return err
	}
	crs, err := svc.getCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if err := auth.RequireCourseOwner(teacher, crs); err != nil {
		return err
	}
	refs, err := svc.repo.DeleteCourse(ctx, crs.ID)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	core.DeleteFiles(ctx, svc.files, svc.logger, refs...)
	return nil
}

// ListCourses lists owned courses for teachers and enrolled courses for students.
func (svc *Service) ListCourses(ctx context.Context, id auth.Identity) ([]CourseListing, error) {
	role, ok := listingRole(id)
	if !ok {
		return nil, auth.ErrForbidden
	}

	switch role {
	case auth.RoleTeacher:
		courses, err := svc.repo.ListCoursesByTeacher(ctx, id.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "listing teacher courses")
		}
		listings := make([]CourseListing, 0, len(courses))
		for _, crs := range courses {
			emails := make([]string, 0, len(crs.StudentIDs))
			for _, sid := range crs.StudentIDs {
				student, err := svc.users.GetByID(ctx, sid)
				if err != nil {
					return nil, errors.Wrap(err, "finding enrolled student")
				}
				emails = append(emails, student.Email)
			}
			listings = append(listings, CourseListing{
				ID:               crs.ID,
				Title:            crs.Title,
				Description:      crs.Description,
				InviteCode:       crs.InviteCode,
				EnrolledStudents: emails,
			})
		}
		return listings, nil

	case auth.RoleStudent:
		courses, err := svc.repo.ListCoursesByStudent(ctx, id.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "listing student courses")
		}
		listings := make([]CourseListing, 0, len(courses))
		for _, crs := range courses {
			teacher, err := svc.users.GetByID(ctx, crs.TeacherID)
			if err != nil {
				return nil, errors.Wrap(err, "finding course teacher")
			}
			listings = append(listings, CourseListing{
				ID:          crs.ID,
				Title:       crs.Title,
				Description: crs.Description,
				TeacherName: teacher.FullName,
			})
		}
		return listings, nil

	case auth.RoleAdmin:
		return nil, auth.ErrForbidden

	default:
		return nil, auth.ErrForbidden
	}
}

// listingRole picks the role whose view a user gets; teachers win over students.
func listingRole(id auth.Identity) (auth.Role, bool) {
	for _, role := range []auth.Role{auth.RoleTeacher, auth.RoleStudent, auth.RoleAdmin} {
		if id.HasRole(role) {
			return role, true
		}
	}
	return 0, false
}

// requireMember allows the course owner and enrolled students.
func requireMember(id auth.Identity, crs Course) error {
	if auth.RequireCourseOwner(id, crs) == nil {
		return nil
	}
	return auth.All(auth.RequireRole(id, auth.RoleStudent), auth.RequireEnrolled(id, crs))
}

func (svc *Service) getCourse(ctx context.Context, courseID string) (Course, error) {
	if _, err := uuid.Parse(courseID); err != nil {
		return Course{}, ErrCourseNotFound
	}
	return svc.repo.GetCourse(ctx, GetFilter{ID: courseID})
}

func (svc *Service) getAssignment(ctx context.Context, assignmentID string) (Assignment, error) {
	if _, err := uuid.Parse(assignmentID); err != nil {
		return Assignment{}, ErrAssignmentNotFound
	}
	return svc.repo.GetAssignment(ctx, assignmentID)
}

func (svc *Service) futureDueDate(due time.Time) error {
	if !due.After(svc.now()) {
		return ErrDueDateInPast
	}
	return nil
}
