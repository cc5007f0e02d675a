package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/microlms/core/course"
	"github.com/trezcool/microlms/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.assignments[sub.AssignmentID]; !ok {
		return submission.Submission{}, course.ErrAssignmentNotFound
	}
	// unique (assignment, student)
	for _, s := range repo.db.submissions {
		if s.AssignmentID == sub.AssignmentID && s.StudentID == sub.StudentID {
			return submission.Submission{}, submission.ErrAlreadySubmitted
		}
	}
	sub.StudentEmail = ""
	repo.db.submissions[sub.ID] = cloneSubmission(sub)
	return *cloneSubmission(sub), nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return *cloneSubmission(*s), nil
	}
	return submission.Submission{}, submission.ErrSubmissionNotFound
}

func (repo *submissionRepository) GetStudentSubmission(_ context.Context, assignmentID, studentID string) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return *cloneSubmission(*s), nil
		}
	}
	return submission.Submission{}, submission.ErrSubmissionNotFound
}

func (repo *submissionRepository) SetMarksIfUngraded(_ context.Context, id string, marks int) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrSubmissionNotFound
	}
	if s.Graded() {
		return submission.Submission{}, submission.ErrAlreadyGraded
	}
	s.AcquiredMarks = &marks
	return *cloneSubmission(*s), nil
}

func (repo *submissionRepository) UpdateMarks(_ context.Context, id string, marks int) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrSubmissionNotFound
	}
	s.AcquiredMarks = &marks
	return *cloneSubmission(*s), nil
}

func (repo *submissionRepository) DeleteIfUngraded(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s, ok := repo.db.submissions[id]
	if !ok {
		return submission.ErrSubmissionNotFound
	}
	if s.Graded() {
		return submission.ErrAlreadyGraded
	}
	delete(repo.db.submissions, id)
	return nil
}

func (repo *submissionRepository) ListSubmissions(_ context.Context, assignmentID string) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID {
			subs = append(subs, *cloneSubmission(*s))
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func cloneSubmission(s submission.Submission) *submission.Submission {
	s.FilePaths = copyStrings(s.FilePaths)
	if s.AcquiredMarks != nil {
		marks := *s.AcquiredMarks
		s.AcquiredMarks = &marks
	}
	return &s
}
