package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core/course"
	"github.com/trezcool/microlms/core/submission"
)

type assignmentApi struct {
	svc    *course.Service
	subSvc *submission.Service
}

func registerAssignmentAPI(g *echo.Group, svc *course.Service, subSvc *submission.Service) {
	api := assignmentApi{svc: svc, subSvc: subSvc}

	ag := g.Group("/assignments", requireAuth)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.GET("/:id/submissions", api.querySubmissions)

	cg := g.Group("/courses/:id/assignments", requireAuth)
	cg.GET("", api.queryByCourse)
	cg.GET("/pending", api.queryPending)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	data, err := bindNewAssignment(ctx)
	if err != nil {
		return err
	}
	materials, err := formUploads(ctx, filesField)
	if err != nil {
		return err
	}
	asg, err := api.svc.CreateAssignment(ctx.Request().Context(), identity(ctx), data, materials)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	asg, err := api.svc.GetAssignment(ctx.Request().Context(), identity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data course.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	asg, err := api.svc.UpdateAssignment(ctx.Request().Context(), identity(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteAssignment(ctx.Request().Context(), identity(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) queryByCourse(ctx echo.Context) error {
	asgs, err := api.svc.ListAssignments(ctx.Request().Context(), identity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) queryPending(ctx echo.Context) error {
	asgs, err := api.svc.ListPendingAssignments(ctx.Request().Context(), identity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing pending assignments")
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	subs, err := api.subSvc.ListForAssignment(ctx.Request().Context(), identity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}
