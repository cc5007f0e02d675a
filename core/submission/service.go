package submission

import (
	"context"
	"fmt"
	"net/mail"
	"path"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/course"
)

var (
	// errors
	ErrSubmissionNotFound = core.NewError(core.KindNotFound, "submission not found")
	ErrPastDeadline       = core.NewError(core.KindInvalidState, "the assignment due date has passed")
	ErrAlreadySubmitted   = core.NewError(core.KindConflict, "assignment already submitted, unsubmit first to resubmit")
	ErrAlreadyGraded      = core.NewError(core.KindConflict, "submission already graded")
	ErrMarksExceedMaximum = core.NewError(core.KindValidation, "marks exceed the assignment max marks")
	ErrNegativeMarks      = core.NewError(core.KindValidation, "marks cannot be negative")
	ErrCourseMismatch     = core.NewError(core.KindForbidden, "submission does not belong to the specified course")

	ErrAssignmentNotFound = course.ErrAssignmentNotFound
	ErrNotAStudent        = course.ErrNotAStudent
	ErrNotEnrolled        = course.ErrNotEnrolled
)

type (
	Repository interface {
		// CreateSubmission fails with ErrAlreadySubmitted when the student already has a submission
		// for the assignment.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		// SetMarksIfUngraded fails with ErrAlreadyGraded when marks are already set.
		SetMarksIfUngraded(ctx context.Context, id string, marks int) (Submission, error)
		UpdateMarks(ctx context.Context, id string, marks int) (Submission, error)
		// DeleteIfUngraded fails with ErrAlreadyGraded when marks are set.
		DeleteIfUngraded(ctx context.Context, id string) error
		ListSubmissions(ctx context.Context, assignmentID string) ([]Submission, error)
	}

	// CourseReader is the read side of the course storage.
	CourseReader interface {
		GetCourse(ctx context.Context, filter course.GetFilter) (course.Course, error)
		GetAssignment(ctx context.Context, id string) (course.Assignment, error)
	}

	Service struct {
		repo            Repository
		courses         CourseReader
		users           course.UserGetter
		mailSvc         core.EmailService
		files           core.FileStorage
		logger          core.Logger
		validate        *validator.Validate
		restrictListing bool
		now             core.NowFunc
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	courses CourseReader,
	users course.UserGetter,
	mailSvc core.EmailService,
	files core.FileStorage,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:            repo,
		courses:         courses,
		users:           users,
		mailSvc:         mailSvc,
		files:           files,
		logger:          logger,
		validate:        validate,
		restrictListing: conf.RestrictSubmissionListing,
		now:             core.UTCNow,
	}
}

// SetNowFunc replaces the service clock.
func (svc *Service) SetNowFunc(now core.NowFunc) {
	svc.now = now
}

// Submit records the student's files for the assignment. The first failed check wins:
// assignment exists, caller is a student, deadline not passed, nothing submitted yet, caller enrolled.
func (svc *Service) Submit(ctx context.Context, student auth.Identity, assignmentID string, files []core.Upload) (Submission, error) {
	asg, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err := auth.RequireRole(student, auth.RoleStudent); err != nil {
		return Submission{}, ErrNotAStudent
	}
	now := svc.now()
	if asg.PastDue(now) {
		return Submission{}, ErrPastDeadline
	}
	if _, err := svc.repo.GetStudentSubmission(ctx, asg.ID, student.UserID); err == nil {
		return Submission{}, ErrAlreadySubmitted
	} else if !errors.Is(err, ErrSubmissionNotFound) {
		return Submission{}, errors.Wrap(err, "finding existing submission")
	}
	crs, err := svc.courses.GetCourse(ctx, course.GetFilter{ID: asg.CourseID})
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding assignment course")
	}
	if err := auth.RequireEnrolled(student, crs); err != nil {
		return Submission{}, ErrNotEnrolled
	}
	if err := core.ValidateUploads("files", files); err != nil {
		return Submission{}, err
	}

	sub := Submission{
		ID:           uuid.New().String(),
		AssignmentID: asg.ID,
		StudentID:    student.UserID,
		SubmittedAt:  now,
	}
	if sub.FilePaths, err = svc.storeFiles(ctx, path.Join(crs.ID, "assignments", asg.ID, student.UserID), files); err != nil {
		return Submission{}, err
	}
	created, err := svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		// a concurrent submit won the race
		core.DeleteFiles(ctx, svc.files, svc.logger, sub.FilePaths...)
		return Submission{}, err
	}
	created.StudentEmail = student.Email
	return created, nil
}

// Grade sets the marks of an ungraded submission. Grading twice fails with ErrAlreadyGraded; use UpdateGrade.
func (svc *Service) Grade(ctx context.Context, teacher auth.Identity, gr GradeRequest) (Submission, error) {
	if err := gr.Validate(svc.validate); err != nil {
		return Submission{}, err
	}
	sub, err := svc.getSubmission(ctx, gr.SubmissionID)
	if err != nil {
		return Submission{}, err
	}
	if sub.Graded() {
		return Submission{}, ErrAlreadyGraded
	}
	asg, crs, err := svc.assignmentWithCourse(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err := checkMarks(*gr.Marks, asg.MaxMarks); err != nil {
		return Submission{}, err
	}
	if err := auth.All(auth.RequireRole(teacher, auth.RoleTeacher), auth.RequireCourseOwner(teacher, crs)); err != nil {
		return Submission{}, err
	}
	if crs.ID != gr.CourseID {
		return Submission{}, ErrCourseMismatch
	}

	graded, err := svc.repo.SetMarksIfUngraded(ctx, sub.ID, *gr.Marks)
	if err != nil {
		return Submission{}, err
	}
	svc.withStudentEmail(ctx, &graded)
	svc.notifyGrade(graded, asg, crs, "Assignment Graded: "+asg.Title, "submission_graded")
	return graded, nil
}

// UpdateGrade overwrites the marks of a submission, graded or not.
func (svc *Service) UpdateGrade(ctx context.Context, teacher auth.Identity, submissionID string, marks int) (Submission, error) {
	sub, err := svc.getSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	asg, crs, err := svc.assignmentWithCourse(ctx, sub.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err := checkMarks(marks, asg.MaxMarks); err != nil {
		return Submission{}, err
	}
	if err := auth.All(auth.RequireRole(teacher, auth.RoleTeacher), auth.RequireCourseOwner(teacher, crs)); err != nil {
		return Submission{}, err
	}

	updated, err := svc.repo.UpdateMarks(ctx, sub.ID, marks)
	if err != nil {
		return Submission{}, err
	}
	svc.withStudentEmail(ctx, &updated)
	svc.notifyGrade(updated, asg, crs, "Updated Grade for Assignment: "+asg.Title, "grade_updated")
	return updated, nil
}

// Unsubmit withdraws an ungraded submission before the deadline and deletes its files.
func (svc *Service) Unsubmit(ctx context.Context, student auth.Identity, assignmentID string) error {
	if err := auth.RequireAuthenticated(student); err != nil {
		return err
	}
	asg, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	sub, err := svc.repo.GetStudentSubmission(ctx, asg.ID, student.UserID)
	if err != nil {
		return err
	}
	if asg.PastDue(svc.now()) {
		return ErrPastDeadline
	}
	if sub.Graded() {
		return ErrAlreadyGraded
	}
	if err := svc.repo.DeleteIfUngraded(ctx, sub.ID); err != nil {
		return err
	}
	core.DeleteFiles(ctx, svc.files, svc.logger, sub.FilePaths...)
	return nil
}

// ListForAssignment lists the submissions of an assignment to a teacher.
// Ownership of the course is only required when listing is restricted.
func (svc *Service) ListForAssignment(ctx context.Context, teacher auth.Identity, assignmentID string) ([]Submission, error) {
	if err := auth.RequireRole(teacher, auth.RoleTeacher); err != nil {
		return nil, err
	}
	asg, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if svc.restrictListing {
		crs, err := svc.courses.GetCourse(ctx, course.GetFilter{ID: asg.CourseID})
		if err != nil {
			return nil, errors.Wrap(err, "finding assignment course")
		}
		if err := auth.RequireCourseOwner(teacher, crs); err != nil {
			return nil, err
		}
	}

	subs, err := svc.repo.ListSubmissions(ctx, asg.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	for i := range subs {
		svc.withStudentEmail(ctx, &subs[i])
	}
	return subs, nil
}

// GetOwn returns the caller's submission for the assignment.
func (svc *Service) GetOwn(ctx context.Context, student auth.Identity, assignmentID string) (Submission, error) {
	if err := auth.RequireAuthenticated(student); err != nil {
		return Submission{}, err
	}
	asg, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	sub, err := svc.repo.GetStudentSubmission(ctx, asg.ID, student.UserID)
	if err != nil {
		return Submission{}, err
	}
	sub.StudentEmail = student.Email
	return sub, nil
}

func checkMarks(marks, maxMarks int) error {
	switch {
	case marks < 0:
		return ErrNegativeMarks
	case marks > maxMarks:
		return ErrMarksExceedMaximum
	default:
		return nil
	}
}

func (svc *Service) getAssignment(ctx context.Context, assignmentID string) (course.Assignment, error) {
	if _, err := uuid.Parse(assignmentID); err != nil {
		return course.Assignment{}, ErrAssignmentNotFound
	}
	return svc.courses.GetAssignment(ctx, assignmentID)
}

func (svc *Service) getSubmission(ctx context.Context, submissionID string) (Submission, error) {
	if _, err := uuid.Parse(submissionID); err != nil {
		return Submission{}, ErrSubmissionNotFound
	}
	return svc.repo.GetSubmission(ctx, submissionID)
}

func (svc *Service) assignmentWithCourse(ctx context.Context, assignmentID string) (course.Assignment, course.Course, error) {
	asg, err := svc.courses.GetAssignment(ctx, assignmentID)
	if err != nil {
		return course.Assignment{}, course.Course{}, errors.Wrap(err, "finding submission assignment")
	}
	crs, err := svc.courses.GetCourse(ctx, course.GetFilter{ID: asg.CourseID})
	if err != nil {
		return course.Assignment{}, course.Course{}, errors.Wrap(err, "finding assignment course")
	}
	return asg, crs, nil
}

func (svc *Service) storeFiles(ctx context.Context, scope string, files []core.Upload) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, f := range files {
		ref, err := svc.files.Store(ctx, scope, uuid.New().String()+"-"+core.CleanFilename(f.Filename), f.Content)
		if err != nil {
			core.DeleteFiles(ctx, svc.files, svc.logger, refs...)
			return nil, errors.Wrap(err, "storing submission file")
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (svc *Service) withStudentEmail(ctx context.Context, sub *Submission) {
	if sub.StudentEmail != "" {
		return
	}
	student, err := svc.users.GetByID(ctx, sub.StudentID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("finding submission student %s: %v", sub.StudentID, err), err)
		return
	}
	sub.StudentEmail = student.Email
}

type gradeMailData struct {
	AssignmentTitle string
	CourseTitle     string
	Marks           int
	MaxMarks        int
}

func (svc *Service) notifyGrade(sub Submission, asg course.Assignment, crs course.Course, subject, tmplName string) {
	if sub.StudentEmail == "" || sub.AcquiredMarks == nil {
		return
	}
	svc.mailSvc.SendMessages(core.NewTemplatedMessage(
		mail.Address{Address: sub.StudentEmail},
		subject,
		tmplName,
		gradeMailData{
			AssignmentTitle: asg.Title,
			CourseTitle:     crs.Title,
			Marks:           *sub.AcquiredMarks,
			MaxMarks:        asg.MaxMarks,
		},
	))
}
