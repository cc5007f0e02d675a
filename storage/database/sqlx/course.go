package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/course"
)

const selectCourses = `
SELECT c.*, COALESCE(array_agg(cs.student_id::text) FILTER (WHERE cs.student_id IS NOT NULL), '{}') AS student_ids
FROM courses c LEFT JOIN course_students cs ON cs.course_id = c.id`

type (
	courseRow struct {
		ID          string         `db:"id"`
		Title       string         `db:"title"`
		Description string         `db:"description"`
		InviteCode  string         `db:"invite_code"`
		TeacherID   string         `db:"teacher_id"`
		StudentIDs  pq.StringArray `db:"student_ids"`
		CreatedAt   time.Time      `db:"created_at"`
	}

	assignmentRow struct {
		ID          string         `db:"id"`
		CourseID    string         `db:"course_id"`
		Title       string         `db:"title"`
		Description string         `db:"description"`
		DueDate     time.Time      `db:"due_date"`
		MaxMarks    int            `db:"max_marks"`
		Materials   pq.StringArray `db:"materials"`
		CreatedAt   time.Time      `db:"created_at"`
	}
)

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		InviteCode:  row.InviteCode,
		TeacherID:   row.TeacherID,
		StudentIDs:  row.StudentIDs,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func (row assignmentRow) toAssignment() course.Assignment {
	return course.Assignment{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Description: row.Description,
		DueDate:     row.DueDate.UTC(),
		MaxMarks:    row.MaxMarks,
		Materials:   row.Materials,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var found bool
	err := repo.db.GetContext(ctx, &found, "SELECT EXISTS (SELECT 1 FROM courses WHERE invite_code = $1)", code)
	return found, errors.Wrap(err, "checking invite code")
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO courses (id, title, description, invite_code, teacher_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		crs.ID, crs.Title, crs.Description, crs.InviteCode, crs.TeacherID, crs.CreatedAt.UTC())
	if err != nil {
		if code, constraint := pqError(err); code == uniqueViolation && constraint == "courses_invite_code_key" {
			return course.Course{}, course.ErrInviteCodeExists
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.GetCourse(ctx, course.GetFilter{ID: crs.ID})
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter) (course.Course, error) {
	var where string
	var arg interface{}
	switch {
	case filter.ID != "":
		where, arg = "c.id = $1", filter.ID
	case filter.InviteCode != "":
		where, arg = "c.invite_code = $1", filter.InviteCode
	default:
		return course.Course{}, course.ErrCourseNotFound
	}

	var row courseRow
	if err := repo.db.GetContext(ctx, &row, selectCourses+" WHERE "+where+" GROUP BY c.id", arg); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrCourseNotFound, "finding course")
	}
	return row.toCourse(), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	res, err := repo.db.ExecContext(ctx, "UPDATE courses SET title = $2, description = $3 WHERE id = $1", crs.ID, crs.Title, crs.Description)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if ok, err := rowsAffected(res); err != nil {
		return course.Course{}, err
	} else if !ok {
		return course.Course{}, course.ErrCourseNotFound
	}
	return repo.GetCourse(ctx, course.GetFilter{ID: crs.ID})
}

func (repo courseRepository) listCourses(ctx context.Context, where string, arg interface{}) ([]course.Course, error) {
	var rows []courseRow
	q := selectCourses + " WHERE " + where + " GROUP BY c.id ORDER BY c.created_at"
	if err := repo.db.SelectContext(ctx, &rows, q, arg); err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo courseRepository) ListCoursesByTeacher(ctx context.Context, teacherID string) ([]course.Course, error) {
	return repo.listCourses(ctx, "c.teacher_id = $1", teacherID)
}

func (repo courseRepository) ListCoursesByStudent(ctx context.Context, studentID string) ([]course.Course, error) {
	return repo.listCourses(ctx, "c.id IN (SELECT course_id FROM course_students WHERE student_id = $1)", studentID)
}

func (repo courseRepository) AddStudent(ctx context.Context, courseID, studentID string) error {
	_, err := repo.db.ExecContext(ctx, "INSERT INTO course_students (course_id, student_id) VALUES ($1, $2)", courseID, studentID)
	switch code, constraint := pqError(err); {
	case err == nil:
		return nil
	case code == uniqueViolation && constraint == "course_students_pkey":
		return course.ErrAlreadyEnrolled
	case code == foreignKeyViolation && constraint == "course_students_course_id_fkey":
		return course.ErrCourseNotFound
	default:
		return errors.Wrap(err, "enrolling student")
	}
}

func (repo courseRepository) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM course_students WHERE course_id = $1 AND student_id = $2", courseID, studentID)
	if err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return course.ErrStudentNotEnrolled
	}
	return nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string) ([]string, error) {
	var refs []string
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var err error
		refs, err = deleteCourse(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// deleteCourse removes a course with everything attached to it and returns the file references.
func deleteCourse(ctx context.Context, tx *sqlx.Tx, id string) ([]string, error) {
	var refs []string
	err := tx.SelectContext(ctx, &refs, `
		SELECT unnest(materials) FROM assignments WHERE course_id = $1
		UNION ALL
		SELECT unnest(s.file_paths) FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.course_id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "listing course files")
	}

	for _, q := range []string{
		"DELETE FROM submissions WHERE assignment_id IN (SELECT id FROM assignments WHERE course_id = $1)",
		"DELETE FROM assignments WHERE course_id = $1",
		"DELETE FROM course_students WHERE course_id = $1",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return nil, errors.Wrap(err, "deleting course relations")
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "deleting course")
	}
	if ok, err := rowsAffected(res); err != nil {
		return nil, err
	} else if !ok {
		return nil, course.ErrCourseNotFound
	}
	return refs, nil
}

func (repo courseRepository) CreateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO assignments (id, course_id, title, description, due_date, max_marks, materials, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING *`,
		a.ID, a.CourseID, a.Title, a.Description, a.DueDate.UTC(), a.MaxMarks, pq.Array(nonNil(a.Materials)), a.CreatedAt.UTC())
	if err != nil {
		if code, _ := pqError(err); code == foreignKeyViolation {
			return course.Assignment{}, course.ErrCourseNotFound
		}
		return course.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return row.toAssignment(), nil
}

func (repo courseRepository) GetAssignment(ctx context.Context, id string) (course.Assignment, error) {
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM assignments WHERE id = $1", id); err != nil {
		return course.Assignment{}, trapNoRowsErr(err, course.ErrAssignmentNotFound, "finding assignment")
	}
	return row.toAssignment(), nil
}

func (repo courseRepository) UpdateAssignment(ctx context.Context, a course.Assignment) (course.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE assignments SET title = $2, description = $3, due_date = $4, max_marks = $5
		WHERE id = $1 RETURNING *`,
		a.ID, a.Title, a.Description, a.DueDate.UTC(), a.MaxMarks)
	if err != nil {
		return course.Assignment{}, trapNoRowsErr(err, course.ErrAssignmentNotFound, "updating assignment")
	}
	return row.toAssignment(), nil
}

func (repo courseRepository) DeleteAssignment(ctx context.Context, id string) ([]string, error) {
	var refs []string
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		err := tx.SelectContext(ctx, &refs, `
			SELECT unnest(materials) FROM assignments WHERE id = $1
			UNION ALL
			SELECT unnest(file_paths) FROM submissions WHERE assignment_id = $1`, id)
		if err != nil {
			return errors.Wrap(err, "listing assignment files")
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM submissions WHERE assignment_id = $1", id); err != nil {
			return errors.Wrap(err, "deleting submissions")
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id)
		if err != nil {
			return errors.Wrap(err, "deleting assignment")
		}
		if ok, err := rowsAffected(res); err != nil {
			return err
		} else if !ok {
			return course.ErrAssignmentNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (repo courseRepository) listAssignments(ctx context.Context, q string, args ...interface{}) ([]course.Assignment, error) {
	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "listing assignments")
	}
	asgs := make([]course.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, row.toAssignment())
	}
	return asgs, nil
}

func (repo courseRepository) ListAssignments(ctx context.Context, courseID string) ([]course.Assignment, error) {
	return repo.listAssignments(ctx, "SELECT * FROM assignments WHERE course_id = $1 ORDER BY due_date", courseID)
}

func (repo courseRepository) ListPendingAssignments(ctx context.Context, courseID, studentID string) ([]course.Assignment, error) {
	return repo.listAssignments(ctx, `
		SELECT a.* FROM assignments a
		WHERE a.course_id = $1
			AND NOT EXISTS (SELECT 1 FROM submissions s WHERE s.assignment_id = a.id AND s.student_id = $2)
		ORDER BY a.due_date`, courseID, studentID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
