package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spis/core/dashboard"
)

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *dashboard.Service) {
	api := dashboardApi{svc: svc}

	dg := g.Group("/dashboard", authed...)
	dg.GET("/student", api.student)
	dg.GET("/proctor", api.proctor)
	dg.GET("/hod", api.hod)
}

func (api *dashboardApi) student(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	sem, err := semesterParam(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.StudentDashboard(ctx.Request().Context(), p, sem)
	if err != nil {
		return errors.Wrap(err, "building student dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *dashboardApi) proctor(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	d, err := api.svc.ProctorDashboard(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "building proctor dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *dashboardApi) hod(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	d, err := api.svc.HODDashboard(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "building HOD dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}
