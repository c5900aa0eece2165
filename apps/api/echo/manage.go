package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/access"
)

type manageApi struct {
	svc      *academic.Service
	validate *validator.Validate
}

func registerManageAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *academic.Service, validate *validator.Validate) {
	api := manageApi{svc: svc, validate: validate}

	mw := append(append([]echo.MiddlewareFunc{}, authed...), requireMiddleware(access.ManageProfiles))
	mg := g.Group("/manage", mw...)

	mg.GET("/students", api.queryStudents)
	mg.PUT("/students/:id", api.updateStudent)
	mg.DELETE("/students/:id", api.destroyStudent)

	mg.GET("/proctors", api.queryProctors)
	mg.PUT("/proctors/:id", api.updateProctor)
	mg.DELETE("/proctors/:id", api.destroyProctor)

	mg.POST("/reassign/:usn", api.reassign)
	mg.POST("/assign", api.bulkAssign)
}

func (api *manageApi) queryStudents(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	filter := new(academic.StudentQueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []academic.StudentProfile{})
	}
	filter.Branch = core.CleanString(filter.Branch)
	filter.ProctorUserID = core.CleanString(filter.ProctorUserID)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), p, *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *manageApi) updateStudent(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.ManagedStudentUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ManagedStudentUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sp, err := api.svc.ManageStudent(ctx.Request().Context(), p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *manageApi) destroyStudent(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), p, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *manageApi) queryProctors(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	proctors, err := api.svc.QueryProctors(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "querying proctors")
	}
	if proctors == nil {
		proctors = []academic.ProctorProfile{}
	}
	return ctx.JSON(http.StatusOK, proctors)
}

func (api *manageApi) updateProctor(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.ProctorUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProctorUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	pp, err := api.svc.UpdateProctor(ctx.Request().Context(), p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating proctor")
	}
	return ctx.JSON(http.StatusOK, pp)
}

func (api *manageApi) destroyProctor(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	if err = api.svc.DeleteProctor(ctx.Request().Context(), p, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting proctor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *manageApi) reassign(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.Reassignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Reassignment")
	}
	data.ProctorID = core.CleanString(data.ProctorID)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	sp, err := api.svc.Reassign(ctx.Request().Context(), p, ctx.Param("usn"), data.ProctorID)
	if err != nil {
		return errors.Wrap(err, "reassigning student")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *manageApi) bulkAssign(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.BulkAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkAssignment")
	}
	data.ProctorID = core.CleanString(data.ProctorID)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	n, err := api.svc.BulkAssign(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "assigning students")
	}
	return ctx.JSON(http.StatusOK, AssignResponse{Assigned: n})
}

type AssignResponse struct {
	Assigned int `json:"assigned"`
}
