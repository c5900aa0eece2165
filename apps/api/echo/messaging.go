package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spis/core/access"
	"github.com/trezcool/spis/core/messaging"
)

type messagingApi struct {
	svc      *messaging.Service
	validate *validator.Validate
}

func registerMessagingAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *messaging.Service, validate *validator.Validate) {
	api := messagingApi{svc: svc, validate: validate}

	mg := g.Group("/meetings", authed...)
	mg.GET("", api.queryMeetings)
	mg.POST("", api.scheduleMeeting, requireMiddleware(access.ScheduleMeeting))
	mg.GET("/:id/messages", api.meetingMessages)
	mg.POST("/:id/messages", api.postMeetingMessage)

	dg := g.Group("/messages", authed...)
	dg.GET("", api.thread)
	dg.POST("", api.sendDirect)

	bg := g.Group("/broadcasts", authed...)
	bg.GET("", api.queryBroadcasts)
	bg.POST("", api.postBroadcast)

	// un-authed
	g.POST("/help", api.submitHelp)
}

func (api *messagingApi) queryMeetings(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	meetings, err := api.svc.ListMeetings(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "listing meetings")
	}
	if meetings == nil {
		meetings = []messaging.Meeting{}
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *messagingApi) scheduleMeeting(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data messaging.NewMeeting
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMeeting")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.ScheduleMeeting(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "scheduling meeting")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *messagingApi) meetingMessages(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	chat, err := api.svc.MeetingMessages(ctx.Request().Context(), p, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting meeting messages")
	}
	return ctx.JSON(http.StatusOK, chat)
}

func (api *messagingApi) postMeetingMessage(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data messaging.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.PostMeetingMessage(ctx.Request().Context(), p, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "posting meeting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// thread and sendDirect take ?usn= from proctors; students always talk to their proctor.
func (api *messagingApi) thread(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	t, err := api.svc.DirectThread(ctx.Request().Context(), p, ctx.QueryParam("usn"))
	if err != nil {
		return errors.Wrap(err, "getting thread")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *messagingApi) sendDirect(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data messaging.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.SendDirect(ctx.Request().Context(), p, ctx.QueryParam("usn"), data)
	if err != nil {
		return errors.Wrap(err, "sending direct message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messagingApi) queryBroadcasts(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	msgs, err := api.svc.ListBroadcasts(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "listing broadcasts")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messagingApi) postBroadcast(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data messaging.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.PostBroadcast(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "posting broadcast")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messagingApi) submitHelp(ctx echo.Context) error {
	var data messaging.NewHelpMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHelpMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.SubmitHelp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting help message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}
