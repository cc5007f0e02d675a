package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/microlms/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) InviteCodeExists(_ context.Context, code string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.inviteCodeTaken(code), nil
}

func (repo *courseRepository) inviteCodeTaken(code string) bool {
	for _, crs := range repo.db.courses {
		if crs.InviteCode == code {
			return true
		}
	}
	return false
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.inviteCodeTaken(crs.InviteCode) {
		return course.Course{}, course.ErrInviteCodeExists
	}
	repo.db.courses[crs.ID] = cloneCourse(crs)
	return *cloneCourse(crs), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, filter course.GetFilter) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if crs, ok := repo.db.courses[filter.ID]; ok {
			return *cloneCourse(*crs), nil
		}
		return course.Course{}, course.ErrCourseNotFound
	}
	if filter.InviteCode != "" {
		for _, crs := range repo.db.courses {
			if crs.InviteCode == filter.InviteCode {
				return *cloneCourse(*crs), nil
			}
		}
	}
	return course.Course{}, course.ErrCourseNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrCourseNotFound
	}
	// only the editable fields
	orig.Title = crs.Title
	orig.Description = crs.Description
	return *cloneCourse(*orig), nil
}

func (repo *courseRepository) listCourses(match func(*course.Course) bool) []course.Course {
	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if match(crs) {
			courses = append(courses, *cloneCourse(*crs))
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) ListCoursesByTeacher(_ context.Context, teacherID string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.listCourses(func(crs *course.Course) bool { return crs.TeacherID == teacherID }), nil
}

func (repo *courseRepository) ListCoursesByStudent(_ context.Context, studentID string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.listCourses(func(crs *course.Course) bool { return crs.HasStudent(studentID) }), nil
}

func (repo *courseRepository) AddStudent(_ context.Context, courseID, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.ErrCourseNotFound
	}
	if crs.HasStudent(studentID) {
		return course.ErrAlreadyEnrolled
	}
	crs.StudentIDs = append(crs.StudentIDs, studentID)
	return nil
}

func (repo *courseRepository) RemoveStudent(_ context.Context, courseID, studentID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.ErrCourseNotFound
	}
	if !crs.HasStudent(studentID) {
		return course.ErrStudentNotEnrolled
	}
	crs.StudentIDs = removeString(crs.StudentIDs, studentID)
	return nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return nil, course.ErrCourseNotFound
	}
	return repo.db.deleteCourse(id), nil
}

func (repo *courseRepository) CreateAssignment(_ context.Context, a course.Assignment) (course.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[a.CourseID]; !ok {
		return course.Assignment{}, course.ErrCourseNotFound
	}
	repo.db.assignments[a.ID] = cloneAssignment(a)
	return *cloneAssignment(a), nil
}

func (repo *courseRepository) GetAssignment(_ context.Context, id string) (course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *cloneAssignment(*a), nil
	}
	return course.Assignment{}, course.ErrAssignmentNotFound
}

func (repo *courseRepository) UpdateAssignment(_ context.Context, a course.Assignment) (course.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return course.Assignment{}, course.ErrAssignmentNotFound
	}
	orig.Title = a.Title
	orig.Description = a.Description
	orig.DueDate = a.DueDate
	orig.MaxMarks = a.MaxMarks
	return *cloneAssignment(*orig), nil
}

func (repo *courseRepository) DeleteAssignment(_ context.Context, id string) ([]string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return nil, course.ErrAssignmentNotFound
	}
	return repo.db.deleteAssignment(id), nil
}

func (repo *courseRepository) listAssignments(match func(*course.Assignment) bool) []course.Assignment {
	asgs := make([]course.Assignment, 0)
	for _, a := range repo.db.assignments {
		if match(a) {
			asgs = append(asgs, *cloneAssignment(*a))
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].DueDate.Before(asgs[j].DueDate) })
	return asgs
}

func (repo *courseRepository) ListAssignments(_ context.Context, courseID string) ([]course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.listAssignments(func(a *course.Assignment) bool { return a.CourseID == courseID }), nil
}

func (repo *courseRepository) ListPendingAssignments(_ context.Context, courseID, studentID string) ([]course.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	submitted := make(map[string]bool)
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID {
			submitted[sub.AssignmentID] = true
		}
	}
	return repo.listAssignments(func(a *course.Assignment) bool {
		return a.CourseID == courseID && !submitted[a.ID]
	}), nil
}

func cloneCourse(crs course.Course) *course.Course {
	crs.StudentIDs = copyStrings(crs.StudentIDs)
	return &crs
}

func cloneAssignment(a course.Assignment) *course.Assignment {
	a.Materials = copyStrings(a.Materials)
	return &a
}
