package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/dashboard"
)

type studentApi struct {
	svc          *academic.Service
	dashboardSvc *dashboard.Service
	validate     *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *academic.Service,
	dashboardSvc *dashboard.Service,
	validate *validator.Validate,
) {
	api := studentApi{
		svc:          svc,
		dashboardSvc: dashboardSvc,
		validate:     validate,
	}

	sg := g.Group("/students/:usn", authed...)
	sg.GET("", api.retrieve)
	sg.PUT("", api.update)
	sg.GET("/history", api.history)
	sg.GET("/dashboard", api.dashboard)
	sg.PUT("/attendance", api.saveAttendance)
	sg.PUT("/marks", api.saveMarks)
	sg.PUT("/marks/:semester", api.saveSemesterMarks)

	g.GET("/student/:usn/performance", api.performance, authed...)
	g.PUT("/profile", api.updateProfile, authed...)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	sp, err := api.svc.GetStudent(ctx.Request().Context(), p, ctx.Param("usn"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *studentApi) history(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	h, err := api.svc.StudentHistory(ctx.Request().Context(), p, ctx.Param("usn"))
	if err != nil {
		return errors.Wrap(err, "getting student history")
	}
	return ctx.JSON(http.StatusOK, h)
}

func (api *studentApi) dashboard(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	sem, err := semesterParam(ctx)
	if err != nil {
		return err
	}
	d, err := api.dashboardSvc.StudentDashboardFor(ctx.Request().Context(), p, ctx.Param("usn"), sem)
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *studentApi) update(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.StudentUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sp, err := api.svc.UpdateStudent(ctx.Request().Context(), p, ctx.Param("usn"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *studentApi) updateProfile(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.ProfileUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProfileUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sp, err := api.svc.UpdateOwnProfile(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "updating own profile")
	}
	return ctx.JSON(http.StatusOK, sp)
}

func (api *studentApi) saveAttendance(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.AttendanceInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.svc.SaveAttendance(ctx.Request().Context(), p, ctx.Param("usn"), data)
	if err != nil {
		return errors.Wrap(err, "saving attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *studentApi) saveMarks(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.MarksInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarksInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.svc.SaveMarks(ctx.Request().Context(), p, ctx.Param("usn"), data)
	if err != nil {
		return errors.Wrap(err, "saving marks")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *studentApi) saveSemesterMarks(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	sem, err := strconv.Atoi(ctx.Param("semester"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "semester", Error: "semester must be a number"})
	}

	var data academic.MarksInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarksInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.svc.SaveSemesterMarks(ctx.Request().Context(), p, ctx.Param("usn"), sem, data)
	if err != nil {
		return errors.Wrap(err, "saving semester marks")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *studentApi) performance(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	perf, err := api.dashboardSvc.Performance(ctx.Request().Context(), p, ctx.Param("usn"))
	if err != nil {
		return errors.Wrap(err, "computing performance")
	}
	return ctx.JSON(http.StatusOK, perf)
}

// semesterParam reads ?sem=, 0 when absent.
func semesterParam(ctx echo.Context) (int, error) {
	raw := ctx.QueryParam("sem")
	if raw == "" {
		return 0, nil
	}
	sem, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "sem", Error: "semester must be a number"})
	}
	return sem, nil
}
