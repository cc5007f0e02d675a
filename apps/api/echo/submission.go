package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/submission"
)

type submissionApi struct {
	svc *submission.Service
}

func registerSubmissionAPI(g *echo.Group, svc *submission.Service) {
	api := submissionApi{svc: svc}

	sg := g.Group("/submissions", requireAuth)
	sg.PUT("/grade", api.grade)
	sg.PUT("/grade/:submissionId", api.updateGrade)
	sg.POST("/:assignmentId", api.submit)
	sg.DELETE("/:assignmentId", api.unsubmit)
	sg.GET("/:assignmentId/mine", api.retrieveOwn)
}

// Handlers

func (api *submissionApi) submit(ctx echo.Context) error {
	files, err := formUploads(ctx, filesField)
	if err != nil {
		return err
	}
	sub, err := api.svc.Submit(ctx.Request().Context(), identity(ctx), ctx.Param("assignmentId"), files)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) unsubmit(ctx echo.Context) error {
	if err := api.svc.Unsubmit(ctx.Request().Context(), identity(ctx), ctx.Param("assignmentId")); err != nil {
		return errors.Wrap(err, "withdrawing submission")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *submissionApi) retrieveOwn(ctx echo.Context) error {
	sub, err := api.svc.GetOwn(ctx.Request().Context(), identity(ctx), ctx.Param("assignmentId"))
	if err != nil {
		return errors.Wrap(err, "retrieving submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	var data submission.GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}
	sub, err := api.svc.Grade(ctx.Request().Context(), identity(ctx), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// updateGrade takes the marks from the `marks` query param, or from the JSON body.
func (api *submissionApi) updateGrade(ctx echo.Context) error {
	var marks int
	if q := ctx.QueryParam("marks"); q != "" {
		m, err := strconv.Atoi(q)
		if err != nil {
			return errInvalidMarks
		}
		marks = m
	} else {
		var data submission.UpdateGrade
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to UpdateGrade")
		}
		if data.Marks == nil {
			return core.NewValidationError(nil, core.FieldError{Field: "marks", Error: "this field is required"})
		}
		marks = *data.Marks
	}

	sub, err := api.svc.UpdateGrade(ctx.Request().Context(), identity(ctx), ctx.Param("submissionId"), marks)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, sub)
}
