package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/course"
	"github.com/trezcool/microlms/core/submission"
	"github.com/trezcool/microlms/core/user"
	sqlxrepos "github.com/trezcool/microlms/storage/database/sqlx"
	"github.com/trezcool/microlms/testutil"
)

type repos struct {
	users       user.Repository
	courses     course.Repository
	submissions submission.Repository
}

func newRepos(t *testing.T) repos {
	db := testutil.OpenDB(t)
	r := repos{
		users:       sqlxrepos.NewUserRepository(db),
		courses:     sqlxrepos.NewCourseRepository(db),
		submissions: sqlxrepos.NewSubmissionRepository(db),
	}
	require.NoError(t, r.users.SeedRoles(context.Background(), auth.AllRoles))
	return r
}

func (r repos) createCourse(t *testing.T, teacher user.User, inviteCode string) course.Course {
	t.Helper()
	crs, err := r.courses.CreateCourse(context.Background(), course.Course{
		ID:         testutil.NewID(),
		Title:      "Algebra",
		InviteCode: inviteCode,
		TeacherID:  teacher.ID,
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
	return crs
}

func (r repos) createAssignment(t *testing.T, crs course.Course, materials ...string) course.Assignment {
	t.Helper()
	asg, err := r.courses.CreateAssignment(context.Background(), course.Assignment{
		ID:        testutil.NewID(),
		CourseID:  crs.ID,
		Title:     "Homework",
		DueDate:   time.Now().Add(24 * time.Hour),
		MaxMarks:  20,
		Materials: materials,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return asg
}

func newSubmission(asg course.Assignment, student user.User, files ...string) submission.Submission {
	return submission.Submission{
		ID:           testutil.NewID(),
		AssignmentID: asg.ID,
		StudentID:    student.ID,
		SubmittedAt:  time.Now(),
		FilePaths:    files,
	}
}

func Test_userRepository_conflicts(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	alice := testutil.CreateUser(t, r.users, "Alice", "alice@test.local", auth.RoleStudent)
	assert.Equal(t, []auth.Role{auth.RoleStudent}, alice.Roles)

	t.Run("create with taken email", func(t *testing.T) {
		usr := alice
		usr.ID = testutil.NewID()
		_, err := r.users.CreateUser(ctx, usr)
		assert.True(t, errors.Is(err, user.ErrEmailExists), err)
	})

	t.Run("update to taken email", func(t *testing.T) {
		bob := testutil.CreateUser(t, r.users, "Bob", "bob@test.local", auth.RoleStudent)
		bob.Email = alice.Email
		_, err := r.users.UpdateUser(ctx, bob)
		assert.True(t, errors.Is(err, user.ErrEmailExists), err)
	})

	t.Run("update unknown user", func(t *testing.T) {
		usr := alice
		usr.ID = testutil.NewID()
		usr.Email = "ghost@test.local"
		_, err := r.users.UpdateUser(ctx, usr)
		assert.True(t, errors.Is(err, user.ErrNotFound), err)
	})
}

func Test_courseRepository_conflicts(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, r.users, "Teacher", "teacher@test.local", auth.RoleTeacher)
	student := testutil.CreateUser(t, r.users, "Student", "student@test.local", auth.RoleStudent)
	crs := r.createCourse(t, teacher, "ABCD2345")

	t.Run("taken invite code", func(t *testing.T) {
		_, err := r.courses.CreateCourse(ctx, course.Course{
			ID:         testutil.NewID(),
			Title:      "Geometry",
			InviteCode: crs.InviteCode,
			TeacherID:  teacher.ID,
			CreatedAt:  time.Now(),
		})
		assert.True(t, errors.Is(err, course.ErrInviteCodeExists), err)

		found, err := r.courses.InviteCodeExists(ctx, crs.InviteCode)
		assert.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("enroll twice", func(t *testing.T) {
		require.NoError(t, r.courses.AddStudent(ctx, crs.ID, student.ID))
		err := r.courses.AddStudent(ctx, crs.ID, student.ID)
		assert.True(t, errors.Is(err, course.ErrAlreadyEnrolled), err)
	})

	t.Run("enroll in unknown course", func(t *testing.T) {
		err := r.courses.AddStudent(ctx, testutil.NewID(), student.ID)
		assert.True(t, errors.Is(err, course.ErrCourseNotFound), err)
	})

	t.Run("unenroll twice", func(t *testing.T) {
		require.NoError(t, r.courses.RemoveStudent(ctx, crs.ID, student.ID))
		err := r.courses.RemoveStudent(ctx, crs.ID, student.ID)
		assert.True(t, errors.Is(err, course.ErrStudentNotEnrolled), err)
	})
}

func Test_submissionRepository_concurrentSubmit(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, r.users, "Teacher", "teacher@test.local", auth.RoleTeacher)
	student := testutil.CreateUser(t, r.users, "Student", "student@test.local", auth.RoleStudent)
	asg := r.createAssignment(t, r.createCourse(t, teacher, "ABCD2345"))

	const attempts = 5
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.submissions.CreateSubmission(ctx, newSubmission(asg, student))
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, errors.Is(err, submission.ErrAlreadySubmitted), err)
	}
	assert.Equal(t, 1, created)

	subs, err := r.submissions.ListSubmissions(ctx, asg.ID)
	assert.NoError(t, err)
	assert.Len(t, subs, 1)
}

func Test_submissionRepository_grading(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, r.users, "Teacher", "teacher@test.local", auth.RoleTeacher)
	student := testutil.CreateUser(t, r.users, "Student", "student@test.local", auth.RoleStudent)
	asg := r.createAssignment(t, r.createCourse(t, teacher, "ABCD2345"))

	sub, err := r.submissions.CreateSubmission(ctx, newSubmission(asg, student, "submissions/essay.pdf"))
	require.NoError(t, err)
	assert.False(t, sub.Graded())

	t.Run("unknown submission", func(t *testing.T) {
		_, err := r.submissions.SetMarksIfUngraded(ctx, testutil.NewID(), 10)
		assert.True(t, errors.Is(err, submission.ErrSubmissionNotFound), err)

		err = r.submissions.DeleteIfUngraded(ctx, testutil.NewID())
		assert.True(t, errors.Is(err, submission.ErrSubmissionNotFound), err)
	})

	t.Run("grade", func(t *testing.T) {
		graded, err := r.submissions.SetMarksIfUngraded(ctx, sub.ID, 15)
		require.NoError(t, err)
		if assert.True(t, graded.Graded()) {
			assert.Equal(t, 15, *graded.AcquiredMarks)
		}
	})

	t.Run("grade twice", func(t *testing.T) {
		_, err := r.submissions.SetMarksIfUngraded(ctx, sub.ID, 18)
		assert.True(t, errors.Is(err, submission.ErrAlreadyGraded), err)

		got, err := r.submissions.GetSubmission(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, 15, *got.AcquiredMarks)
	})

	t.Run("unsubmit graded", func(t *testing.T) {
		err := r.submissions.DeleteIfUngraded(ctx, sub.ID)
		assert.True(t, errors.Is(err, submission.ErrAlreadyGraded), err)

		_, err = r.submissions.GetStudentSubmission(ctx, asg.ID, student.ID)
		assert.NoError(t, err)
	})

	t.Run("regrade", func(t *testing.T) {
		got, err := r.submissions.UpdateMarks(ctx, sub.ID, 12)
		require.NoError(t, err)
		assert.Equal(t, 12, *got.AcquiredMarks)
	})

	t.Run("unsubmit ungraded", func(t *testing.T) {
		other := testutil.CreateUser(t, r.users, "Other", "other@test.local", auth.RoleStudent)
		sub, err := r.submissions.CreateSubmission(ctx, newSubmission(asg, other))
		require.NoError(t, err)

		assert.NoError(t, r.submissions.DeleteIfUngraded(ctx, sub.ID))
		_, err = r.submissions.GetSubmission(ctx, sub.ID)
		assert.True(t, errors.Is(err, submission.ErrSubmissionNotFound), err)
	})
}

func Test_courseRepository_deleteCascade(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, r.users, "Teacher", "teacher@test.local", auth.RoleTeacher)
	student := testutil.CreateUser(t, r.users, "Student", "student@test.local", auth.RoleStudent)
	crs := r.createCourse(t, teacher, "ABCD2345")
	kept := r.createCourse(t, teacher, "WXYZ6789")
	require.NoError(t, r.courses.AddStudent(ctx, crs.ID, student.ID))
	require.NoError(t, r.courses.AddStudent(ctx, kept.ID, student.ID))

	asg := r.createAssignment(t, crs, "materials/brief.pdf")
	keptAsg := r.createAssignment(t, kept, "materials/other.pdf")
	sub, err := r.submissions.CreateSubmission(ctx, newSubmission(asg, student, "submissions/essay.pdf"))
	require.NoError(t, err)
	_, err = r.submissions.SetMarksIfUngraded(ctx, sub.ID, 10)
	require.NoError(t, err)
	keptSub, err := r.submissions.CreateSubmission(ctx, newSubmission(keptAsg, student, "submissions/kept.pdf"))
	require.NoError(t, err)

	refs, err := r.courses.DeleteCourse(ctx, crs.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"materials/brief.pdf", "submissions/essay.pdf"}, refs)

	_, err = r.courses.GetCourse(ctx, course.GetFilter{ID: crs.ID})
	assert.True(t, errors.Is(err, course.ErrCourseNotFound), err)
	_, err = r.courses.GetAssignment(ctx, asg.ID)
	assert.True(t, errors.Is(err, course.ErrAssignmentNotFound), err)
	_, err = r.submissions.GetSubmission(ctx, sub.ID)
	assert.True(t, errors.Is(err, submission.ErrSubmissionNotFound), err)

	enrolled, err := r.courses.ListCoursesByStudent(ctx, student.ID)
	require.NoError(t, err)
	if assert.Len(t, enrolled, 1) {
		assert.Equal(t, kept.ID, enrolled[0].ID)
	}
	_, err = r.submissions.GetSubmission(ctx, keptSub.ID)
	assert.NoError(t, err)

	_, err = r.courses.DeleteCourse(ctx, crs.ID)
	assert.True(t, errors.Is(err, course.ErrCourseNotFound), err)
}

func Test_userRepository_deleteCascade(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, r.users, "Teacher", "teacher@test.local", auth.RoleTeacher)
	student := testutil.CreateUser(t, r.users, "Student", "student@test.local", auth.RoleStudent)
	crs := r.createCourse(t, teacher, "ABCD2345")
	require.NoError(t, r.courses.AddStudent(ctx, crs.ID, student.ID))
	asg := r.createAssignment(t, crs, "materials/brief.pdf")
	_, err := r.submissions.CreateSubmission(ctx, newSubmission(asg, student, "submissions/essay.pdf"))
	require.NoError(t, err)

	t.Run("student", func(t *testing.T) {
		refs, err := r.users.DeleteUser(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"submissions/essay.pdf"}, refs)

		_, err = r.submissions.GetStudentSubmission(ctx, asg.ID, student.ID)
		assert.True(t, errors.Is(err, submission.ErrSubmissionNotFound), err)
		got, err := r.courses.GetCourse(ctx, course.GetFilter{ID: crs.ID})
		require.NoError(t, err)
		assert.Empty(t, got.StudentIDs)
	})

	t.Run("teacher", func(t *testing.T) {
		refs, err := r.users.DeleteUser(ctx, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"materials/brief.pdf"}, refs)

		_, err = r.courses.GetCourse(ctx, course.GetFilter{ID: crs.ID})
		assert.True(t, errors.Is(err, course.ErrCourseNotFound), err)
		_, err = r.users.GetUser(ctx, user.GetFilter{ID: teacher.ID})
		assert.True(t, errors.Is(err, user.ErrNotFound), err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := r.users.DeleteUser(ctx, testutil.NewID())
		assert.True(t, errors.Is(err, user.ErrNotFound), err)
	})
}
