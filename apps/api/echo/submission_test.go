package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/submission"
	"github.com/trezcool/microlms/testutil"
)

func intPtr(i int) *int { return &i }

func Test_submissionApi_lifecycle(t *testing.T) {
	server, env := setup(t)

	teacher := env.CreateTeacher(t, "Tea Cher", "teacher@test.cd")
	rival := env.CreateTeacher(t, "Ri Val", "rival@test.cd")
	student := env.CreateStudent(t, "Stu Dent", "student@test.cd")
	outsider := env.CreateStudent(t, "Out Sider", "outsider@test.cd")
	crs := env.CreateCourse(t, teacher, "Go 101")
	env.Enroll(t, student, crs)
	asg := env.CreateAssignment(t, teacher, crs, "Homework 1", dayDuration, 10)

	teacherToken := getToken(t, env, teacher)
	studentToken := getToken(t, env, student)
	submitPath := "/v1/submissions/" + asg.ID

	submitTests := []struct {
		name     string
		token    string
		path     string
		wantCode int
	}{
		{name: "anonymous", path: submitPath, wantCode: http.StatusUnauthorized},
		{name: "unknown assignment", token: studentToken, path: "/v1/submissions/" + testutil.NewID(), wantCode: http.StatusNotFound},
		{name: "teacher", token: teacherToken, path: submitPath, wantCode: http.StatusForbidden},
		{name: "not enrolled", token: getToken(t, env, outsider), path: submitPath, wantCode: http.StatusForbidden},
	}
	for _, tt := range submitTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newMultipartRequest(t, http.MethodPost, tt.path, tt.token, nil, testutil.PDF("answer.pdf"))
			server.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	req, rec := newMultipartRequest(t, http.MethodPost, submitPath, studentToken, nil,
		testutil.PDF("answer.pdf"), core.Upload{Filename: "tool.exe", Content: []byte("MZ\x90\x00\x03\x00\x00\x00")})
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"files": "tool.exe: file type not allowed"}),
	}, rec)

	req, rec = newMultipartRequest(t, http.MethodPost, submitPath, studentToken, nil,
		testutil.PDF("answer.pdf"), testutil.Text("notes.txt", "see attached"))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub submission.Submission
	unmarshal(t, rec, &sub)
	assert.Equal(t, student.ID, sub.StudentID)
	assert.Equal(t, student.Email, sub.StudentEmail)
	assert.Len(t, sub.FilePaths, 2)
	assert.Nil(t, sub.AcquiredMarks)

	req, rec = newMultipartRequest(t, http.MethodPost, submitPath, studentToken, nil, testutil.PDF("again.pdf"))
	server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	grade := func(subID, courseID string, marks *int) []byte {
		return marchallObj(t, submission.GradeRequest{SubmissionID: subID, CourseID: courseID, Marks: marks})
	}
	runHTTPTests(t, server, []httpTest{
		{name: "own submission", method: http.MethodGet, path: submitPath + "/mine", token: studentToken, wantCode: http.StatusOK},
		{
			name: "listing: student", method: http.MethodGet, path: "/v1/assignments/" + asg.ID + "/submissions", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "listing", method: http.MethodGet, path: "/v1/assignments/" + asg.ID + "/submissions", token: teacherToken, wantCode: http.StatusOK},
		{
			name: "grade: missing marks", method: http.MethodPut, path: "/v1/submissions/grade", token: teacherToken, body: grade(sub.ID, crs.ID, nil),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"marks": "this field is required"}),
		},
		{
			name: "grade: above max", method: http.MethodPut, path: "/v1/submissions/grade", token: teacherToken, body: grade(sub.ID, crs.ID, intPtr(11)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "marks exceed the assignment max marks"}),
		},
		{
			name: "grade: negative", method: http.MethodPut, path: "/v1/submissions/grade", token: teacherToken, body: grade(sub.ID, crs.ID, intPtr(-1)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "marks cannot be negative"}),
		},
		{
			name: "grade: other teacher", method: http.MethodPut, path: "/v1/submissions/grade", token: getToken(t, env, rival), body: grade(sub.ID, crs.ID, intPtr(8)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "grade: course mismatch", method: http.MethodPut, path: "/v1/submissions/grade", token: teacherToken, body: grade(sub.ID, testutil.NewID(), intPtr(8)),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "submission does not belong to the specified course"}),
		},
		{
			name: "grade: unknown submission", method: http.MethodPut, path: "/v1/submissions/grade", token: teacherToken, body: grade(testutil.NewID(), crs.ID, intPtr(8)),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "submission not found"}),
		},
		{name: "grade", method: http.MethodPut, path: "/v1/submissions/grade", token: teacherToken, body: grade(sub.ID, crs.ID, intPtr(8)), wantCode: http.StatusOK},
		{
			name: "grade twice", method: http.MethodPut, path: "/v1/submissions/grade", token: teacherToken, body: grade(sub.ID, crs.ID, intPtr(9)),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "submission already graded"}),
		},
		{
			name: "update grade: bad query", method: http.MethodPut, path: "/v1/submissions/grade/" + sub.ID + "?marks=ten", token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "marks must be an integer"}),
		},
		{
			name: "update grade: missing marks", method: http.MethodPut, path: "/v1/submissions/grade/" + sub.ID, token: teacherToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"marks": "this field is required"}),
		},
		{name: "update grade: query", method: http.MethodPut, path: "/v1/submissions/grade/" + sub.ID + "?marks=9", token: teacherToken, wantCode: http.StatusOK},
		{
			name: "unsubmit: graded", method: http.MethodDelete, path: submitPath, token: studentToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "submission already graded"}),
		},
	})

	req, rec = newAuthRequest(http.MethodPut, "/v1/submissions/grade/"+sub.ID, teacherToken, marchallObj(t, submission.UpdateGrade{Marks: intPtr(10)}))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &sub)
	require.NotNil(t, sub.AcquiredMarks)
	assert.Equal(t, 10, *sub.AcquiredMarks)

	msg, ok := env.Mail.Last()
	require.True(t, ok)
	assert.Equal(t, student.Email, msg.To[0].Address)
	assert.Equal(t, "Updated Grade for Assignment: Homework 1", msg.Subject)
}

func Test_submissionApi_unsubmit(t *testing.T) {
	server, env := setup(t)

	teacher := env.CreateTeacher(t, "Tea Cher", "teacher@test.cd")
	student := env.CreateStudent(t, "Stu Dent", "student@test.cd")
	crs := env.CreateCourse(t, teacher, "Go 101")
	env.Enroll(t, student, crs)
	asg := env.CreateAssignment(t, teacher, crs, "Homework 1", time.Hour, 10)

	studentToken := getToken(t, env, student)
	submitPath := "/v1/submissions/" + asg.ID

	// no files is a valid submission
	req, rec := newMultipartRequest(t, http.MethodPost, submitPath, studentToken, nil)
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	runHTTPTests(t, server, []httpTest{
		{name: "unsubmit", method: http.MethodDelete, path: submitPath, token: studentToken, wantCode: http.StatusNoContent},
		{
			name: "nothing to unsubmit", method: http.MethodDelete, path: submitPath, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "submission not found"}),
		},
		{name: "mine after unsubmit", method: http.MethodGet, path: submitPath + "/mine", token: studentToken, wantCode: http.StatusNotFound},
	})

	req, rec = newMultipartRequest(t, http.MethodPost, submitPath, studentToken, nil, testutil.PDF("answer.pdf"))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// past the due date and the token lifetime: log in again
	env.Clock.Advance(2 * time.Hour)
	studentToken = getToken(t, env, student)
	runHTTPTests(t, server, []httpTest{
		{
			name: "unsubmit after the deadline", method: http.MethodDelete, path: submitPath, token: studentToken,
			wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: "the assignment due date has passed"}),
		},
		{
			name: "submit after the deadline", method: http.MethodPost, path: submitPath, token: studentToken,
			wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: "the assignment due date has passed"}),
		},
	})
}
