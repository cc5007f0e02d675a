package course

import (
	"context"
	"fmt"
	"net/mail"
	"path"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
)

// CreateAssignment adds an assignment to a course owned by the teacher and notifies enrolled students.
func (svc *Service) CreateAssignment(ctx context.Context, teacher auth.Identity, na NewAssignment, materials []core.Upload) (Assignment, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}
	crs, err := svc.getCourse(ctx, na.CourseID)
	if err != nil {
		return Assignment{}, err
	}
	if err := auth.All(auth.RequireRole(teacher, auth.RoleTeacher), auth.RequireCourseOwner(teacher, crs)); err != nil {
		return Assignment{}, err
	}
	if err := svc.futureDueDate(na.DueDate); err != nil {
		return Assignment{}, err
	}
	if err := core.ValidateUploads("files", materials); err != nil {
		return Assignment{}, err
	}

	asg := Assignment{
		ID:          uuid.New().String(),
		CourseID:    crs.ID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate,
		MaxMarks:    na.MaxMarks,
		CreatedAt:   svc.now(),
	}
	if asg.Materials, err = svc.storeMaterials(ctx, asg, materials); err != nil {
		return Assignment{}, err
	}
	created, err := svc.repo.CreateAssignment(ctx, asg)
	if err != nil {
		core.DeleteFiles(ctx, svc.files, svc.logger, asg.Materials...)
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}

	svc.notifyNewAssignment(ctx, crs, created)
	return created, nil
}

// UpdateAssignment changes the provided fields. The due date may be moved to any time.
func (svc *Service) UpdateAssignment(ctx context.Context, teacher auth.Identity, assignmentID string, ua UpdateAssignment) (Assignment, error) {
	asg, crs, err := svc.assignmentWithCourse(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if err := auth.All(auth.RequireRole(teacher, auth.RoleTeacher), auth.RequireCourseOwner(teacher, crs)); err != nil {
		return Assignment{}, err
	}
	if err := ua.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}
	if ua.Title != nil {
		asg.Title = *ua.Title
	}
	if ua.Description != nil {
		asg.Description = core.CleanString(*ua.Description)
	}
	if ua.DueDate != nil {
		asg.DueDate = ua.DueDate.UTC()
	}
	if ua.MaxMarks != nil {
		asg.MaxMarks = *ua.MaxMarks
	}
	return svc.repo.UpdateAssignment(ctx, asg)
}

// DeleteAssignment deletes the assignment with its submissions.
func (svc *Service) DeleteAssignment(ctx context.Context, teacher auth.Identity, assignmentID string) error {
	_, crs, err := svc.assignmentWithCourse(ctx, assignmentID)
	if err != nil {
		return err
	}
	if err := auth.All(auth.RequireRole(teacher, auth.RoleTeacher), auth.RequireCourseOwner(teacher, crs)); err != nil {
		return err
	}
	refs, err := svc.repo.DeleteAssignment(ctx, assignmentID)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	core.DeleteFiles(ctx, svc.files, svc.logger, refs...)
	return nil
}

// GetAssignment returns an assignment to the course owner or an enrolled student.
func (svc *Service) GetAssignment(ctx context.Context, id auth.Identity, assignmentID string) (Assignment, error) {
	asg, crs, err := svc.assignmentWithCourse(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if err := requireMember(id, crs); err != nil {
		return Assignment{}, err
	}
	return asg, nil
}

// ListAssignments lists a course's assignments to its owner or an enrolled student.
func (svc *Service) ListAssignments(ctx context.Context, id auth.Identity, courseID string) ([]Assignment, error) {
	crs, err := svc.getCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := requireMember(id, crs); err != nil {
		return nil, err
	}
	asgs, err := svc.repo.ListAssignments(ctx, crs.ID)
	return asgs, errors.Wrap(err, "listing assignments")
}

// ListPendingAssignments lists the assignments of the course the student has not submitted yet.
func (svc *Service) ListPendingAssignments(ctx context.Context, student auth.Identity, courseID string) ([]Assignment, error) {
	if err := auth.RequireRole(student, auth.RoleStudent); err != nil {
		return nil, ErrNotAStudent
	}
	crs, err := svc.getCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireEnrolled(student, crs); err != nil {
		return nil, ErrNotEnrolled
	}
	asgs, err := svc.repo.ListPendingAssignments(ctx, crs.ID, student.UserID)
	return asgs, errors.Wrap(err, "listing pending assignments")
}

func (svc *Service) assignmentWithCourse(ctx context.Context, assignmentID string) (Assignment, Course, error) {
	asg, err := svc.getAssignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, Course{}, err
	}
	crs, err := svc.repo.GetCourse(ctx, GetFilter{ID: asg.CourseID})
	if err != nil {
		return Assignment{}, Course{}, errors.Wrap(err, "finding assignment course")
	}
	return asg, crs, nil
}

// storeMaterials stores the files under <course>/materials/<assignment>; on failure, stored ones are removed.
func (svc *Service) storeMaterials(ctx context.Context, asg Assignment, materials []core.Upload) ([]string, error) {
	scope := path.Join(asg.CourseID, "materials", asg.ID)
	refs := make([]string, 0, len(materials))
	for _, m := range materials {
		ref, err := svc.files.Store(ctx, scope, uuid.New().String()+"-"+core.CleanFilename(m.Filename), m.Content)
		if err != nil {
			core.DeleteFiles(ctx, svc.files, svc.logger, refs...)
			return nil, errors.Wrap(err, "storing material")
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

type newAssignmentMailData struct {
	CourseTitle string
	Title       string
	Description string
	DueDate     string
}

func (svc *Service) notifyNewAssignment(ctx context.Context, crs Course, asg Assignment) {
	data := newAssignmentMailData{
		CourseTitle: crs.Title,
		Title:       asg.Title,
		Description: asg.Description,
		DueDate:     asg.DueDate.Format("Mon, 02 Jan 2006 15:04 MST"),
	}
	messages := make([]*core.EmailMessage, 0, len(crs.StudentIDs))
	for _, sid := range crs.StudentIDs {
		student, err := svc.users.GetByID(ctx, sid)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("new assignment notification: finding student %s: %v", sid, err), err)
			continue
		}
		messages = append(messages, core.NewTemplatedMessage(
			mail.Address{Name: student.FullName, Address: student.Email},
			"New Assignment in "+crs.Title,
			"new_assignment",
			data,
		))
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
}
