package echoapi_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/microlms/apps/api/echo"
	"github.com/trezcool/microlms/core/course"
)

func Test_courseApi_create(t *testing.T) {
	server, env := setup(t)

	teacher := env.CreateTeacher(t, "Tea Cher", "teacher@test.cd")
	student := env.CreateStudent(t, "Stu Dent", "student@test.cd")

	tests := []httpTest{
		{
			name: "student", token: getToken(t, env, student), body: marchallObj(t, course.NewCourse{Title: "Go 101"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "blank title", token: getToken(t, env, teacher), body: marchallObj(t, course.NewCourse{Title: "   "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{name: "anonymous", body: marchallObj(t, course.NewCourse{Title: "Go 101"}), wantCode: http.StatusUnauthorized},
		{name: "ok", token: getToken(t, env, teacher), body: marchallObj(t, course.NewCourse{Title: "Go 101"}), wantCode: http.StatusCreated},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/courses"
	}
	runHTTPTests(t, server, tests)
}

func Test_courseApi_enrollment(t *testing.T) {
	server, env := setup(t)

	teacher := env.CreateTeacher(t, "Tea Cher", "teacher@test.cd")
	student := env.CreateStudent(t, "Stu Dent", "student@test.cd")
	outsider := env.CreateStudent(t, "Out Sider", "outsider@test.cd")
	crs := env.CreateCourse(t, teacher, "Go 101")

	teacherToken := getToken(t, env, teacher)
	studentToken := getToken(t, env, student)
	enroll := func(code string) []byte { return marchallObj(t, EnrollRequest{InviteCode: code}) }
	unenroll := func(email string) []byte { return marchallObj(t, UnenrollRequest{StudentEmail: email}) }
	coursePath := "/v1/courses/" + crs.ID

	runHTTPTests(t, server, []httpTest{
		{
			name: "enroll: unknown code", method: http.MethodPost, path: "/v1/courses/enroll", token: studentToken, body: enroll("nope"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "invalid invite code"}),
		},
		{
			name: "enroll: teacher", method: http.MethodPost, path: "/v1/courses/enroll", token: teacherToken, body: enroll(crs.InviteCode),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "user is not a student"}),
		},
		{
			name: "retrieve: not enrolled", method: http.MethodGet, path: coursePath, token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "enroll", method: http.MethodPost, path: "/v1/courses/enroll", token: studentToken, body: enroll(" " + strings.ToUpper(crs.InviteCode)),
			wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Enrollment successful"}),
		},
		{
			name: "enroll twice", method: http.MethodPost, path: "/v1/courses/enroll", token: studentToken, body: enroll(crs.InviteCode),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "user already enrolled in the course"}),
		},
		{name: "retrieve: enrolled", method: http.MethodGet, path: coursePath, token: studentToken, wantCode: http.StatusOK},
		{
			name: "student listing", method: http.MethodGet, path: "/v1/courses", token: studentToken, wantCode: http.StatusOK,
			wantData: marchallList(t, course.CourseListing{ID: crs.ID, Title: "Go 101", TeacherName: "Tea Cher"}),
		},
		{
			name: "teacher listing", method: http.MethodGet, path: "/v1/courses", token: teacherToken, wantCode: http.StatusOK,
			wantData: marchallList(t, course.CourseListing{ID: crs.ID, Title: "Go 101", InviteCode: crs.InviteCode, EnrolledStudents: []string{student.Email}}),
		},
		{
			name: "unenroll: not the owner", method: http.MethodPost, path: coursePath + "/unenroll", token: studentToken, body: unenroll(student.Email),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unenroll: not a student", method: http.MethodPost, path: coursePath + "/unenroll", token: teacherToken, body: unenroll(teacher.Email),
			wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: "the user is not a student"}),
		},
		{
			name: "unenroll: not enrolled", method: http.MethodPost, path: coursePath + "/unenroll", token: teacherToken, body: unenroll(outsider.Email),
			wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this course"}),
		},
		{
			name: "unenroll: unknown user", method: http.MethodPost, path: coursePath + "/unenroll", token: teacherToken, body: unenroll("nobody@test.cd"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{
			name: "unenroll", method: http.MethodPost, path: coursePath + "/unenroll", token: teacherToken, body: unenroll(student.Email),
			wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Student unenrolled successfully"}),
		},
		{name: "student listing after unenroll", method: http.MethodGet, path: "/v1/courses", token: studentToken, wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}

func Test_courseApi_updateAndDelete(t *testing.T) {
	server, env := setup(t)

	teacher := env.CreateTeacher(t, "Tea Cher", "teacher@test.cd")
	rival := env.CreateTeacher(t, "Ri Val", "rival@test.cd")
	student := env.CreateStudent(t, "Stu Dent", "student@test.cd")
	crs := env.CreateCourse(t, teacher, "Go 101")
	env.Enroll(t, student, crs)
	env.CreateAssignment(t, teacher, crs, "Homework", dayDuration, 10)

	teacherToken := getToken(t, env, teacher)
	coursePath := "/v1/courses/" + crs.ID
	title := "Go 102"

	runHTTPTests(t, server, []httpTest{
		{
			name: "update: unknown course", method: http.MethodPut, path: "/v1/courses/lol", token: teacherToken,
			body: marchallObj(t, course.UpdateCourse{Title: &title}), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
		{
			name: "update: other teacher", method: http.MethodPut, path: coursePath, token: getToken(t, env, rival),
			body: marchallObj(t, course.UpdateCourse{Title: &title}), wantCode: http.StatusForbidden,
		},
		{
			name: "update", method: http.MethodPut, path: coursePath, token: teacherToken,
			body: marchallObj(t, course.UpdateCourse{Title: &title}), wantCode: http.StatusOK,
		},
		{name: "delete: other teacher", method: http.MethodDelete, path: coursePath, token: getToken(t, env, rival), wantCode: http.StatusForbidden},
		{name: "delete: student", method: http.MethodDelete, path: coursePath, token: getToken(t, env, student), wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: coursePath, token: teacherToken, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: coursePath, token: teacherToken, wantCode: http.StatusNotFound},
	})

	_, err := env.CourseRepo.GetCourse(context.Background(), course.GetFilter{InviteCode: crs.InviteCode})
	require.Error(t, err)
	assert.Equal(t, course.ErrCourseNotFound, err)
}
