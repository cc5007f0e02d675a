package sqlxrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/course"
	"github.com/trezcool/microlms/core/submission"
)

type submissionRow struct {
	ID            string         `db:"id"`
	AssignmentID  string         `db:"assignment_id"`
	StudentID     string         `db:"student_id"`
	SubmittedAt   time.Time      `db:"submitted_at"`
	FilePaths     pq.StringArray `db:"file_paths"`
	AcquiredMarks null.Int       `db:"acquired_marks"`
}

func (row submissionRow) toSubmission() submission.Submission {
	return submission.Submission{
		ID:            row.ID,
		AssignmentID:  row.AssignmentID,
		StudentID:     row.StudentID,
		SubmittedAt:   row.SubmittedAt.UTC(),
		FilePaths:     row.FilePaths,
		AcquiredMarks: row.AcquiredMarks.Ptr(),
	}
}

type submissionRepository struct {
	db core.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db core.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo submissionRepository) get(ctx context.Context, q string, args ...interface{}) (submission.Submission, error) {
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrSubmissionNotFound, "finding submission")
	}
	return row.toSubmission(), nil
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	created, err := repo.get(ctx, `
		INSERT INTO submissions (id, assignment_id, student_id, submitted_at, file_paths)
		VALUES ($1, $2, $3, $4, $5) RETURNING *`,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.SubmittedAt.UTC(), pq.Array(nonNil(sub.FilePaths)))
	switch code, constraint := pqError(err); {
	case err == nil:
		return created, nil
	case code == uniqueViolation && constraint == "submissions_assignment_student_key":
		return submission.Submission{}, submission.ErrAlreadySubmitted
	case code == foreignKeyViolation && constraint == "submissions_assignment_id_fkey":
		return submission.Submission{}, course.ErrAssignmentNotFound
	default:
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
}

func (repo submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	return repo.get(ctx, "SELECT * FROM submissions WHERE id = $1", id)
}

func (repo submissionRepository) GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	return repo.get(ctx, "SELECT * FROM submissions WHERE assignment_id = $1 AND student_id = $2", assignmentID, studentID)
}

func (repo submissionRepository) SetMarksIfUngraded(ctx context.Context, id string, marks int) (submission.Submission, error) {
	sub, err := repo.get(ctx, "UPDATE submissions SET acquired_marks = $2 WHERE id = $1 AND acquired_marks IS NULL RETURNING *", id, marks)
	if errors.Is(err, submission.ErrSubmissionNotFound) {
		return submission.Submission{}, repo.notUngraded(ctx, id)
	}
	return sub, err
}

func (repo submissionRepository) UpdateMarks(ctx context.Context, id string, marks int) (submission.Submission, error) {
	return repo.get(ctx, "UPDATE submissions SET acquired_marks = $2 WHERE id = $1 RETURNING *", id, marks)
}

func (repo submissionRepository) DeleteIfUngraded(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM submissions WHERE id = $1 AND acquired_marks IS NULL", id)
	if err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	if ok, err := rowsAffected(res); err != nil {
		return err
	} else if !ok {
		return repo.notUngraded(ctx, id)
	}
	return nil
}

// notUngraded explains why a conditional write on an ungraded submission touched nothing.
func (repo submissionRepository) notUngraded(ctx context.Context, id string) error {
	if _, err := repo.GetSubmission(ctx, id); err != nil {
		return err
	}
	return submission.ErrAlreadyGraded
}

func (repo submissionRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]submission.Submission, error) {
	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM submissions WHERE assignment_id = $1 ORDER BY submitted_at", assignmentID); err != nil {
		return nil, errors.Wrap(err, "listing submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toSubmission())
	}
	return subs, nil
}
