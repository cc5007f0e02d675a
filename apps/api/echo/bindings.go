package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/course"
)

const filesField = "files"

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formUploads reads the files sent under field into memory. Non-multipart requests carry no files.
func formUploads(ctx echo.Context, field string) ([]core.Upload, error) {
	if !isMultipart(ctx) {
		return nil, nil
	}
	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed multipart form").SetInternal(err)
	}

	headers := form.File[field]
	uploads := make([]core.Upload, 0, len(headers))
	for _, fh := range headers {
		content, err := readFormFile(fh)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fh.Filename)
		}
		uploads = append(uploads, core.Upload{Filename: fh.Filename, Content: content})
	}
	return uploads, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// bindNewAssignment reads a NewAssignment from a JSON body or from multipart form values.
func bindNewAssignment(ctx echo.Context) (course.NewAssignment, error) {
	var na course.NewAssignment
	if !isMultipart(ctx) {
		if err := ctx.Bind(&na); err != nil {
			return na, errors.Wrap(err, "binding to NewAssignment")
		}
		return na, nil
	}

	var fldErrs []core.FieldError
	na.CourseID = ctx.FormValue("course_id")
	na.Title = ctx.FormValue("title")
	na.Description = ctx.FormValue("description")
	if v := ctx.FormValue("due_date"); v != "" {
		due, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: "due_date", Error: "invalid date, expected RFC 3339"})
		}
		na.DueDate = due
	}
	if v := ctx.FormValue("max_marks"); v != "" {
		marks, err := strconv.Atoi(v)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: "max_marks", Error: "must be an integer"})
		}
		na.MaxMarks = marks
	}
	if len(fldErrs) > 0 {
		return na, core.NewValidationError(nil, fldErrs...)
	}
	return na, nil
}
