package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/access"
	"github.com/trezcool/spis/core/user"
)

type userApi struct {
	auth        *authenticator
	svc         *user.Service
	academicSvc *academic.Service
	validate    *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	auth *authenticator,
	svc *user.Service,
	academicSvc *academic.Service,
	validate *validator.Validate,
) {
	api := userApi{
		auth:        auth,
		svc:         svc,
		academicSvc: academicSvc,
		validate:    validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", authed...)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)

	sg := g.Group("/signup")
	sg.POST("/student", api.signupStudent)
	sg.POST("/proctor", api.signupProctor)
	sg.POST("/hod", api.signupHOD, append(append([]echo.MiddlewareFunc{}, authed...), requireMiddleware(access.ProvisionHOD))...)

	g.GET("/branches", api.branches)
	g.GET("/sections", api.sections)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, err := api.auth.authenticate(ctx.Request().Context(), data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, Roles: p.Roles.Names(), Principal: p})
}

func (api *userApi) signupStudent(ctx echo.Context) error {
	var data academic.StudentSignup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentSignup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.academicSvc.SignupStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up student")
	}
	return ctx.JSON(http.StatusCreated, SignupResponse{User: acc.User, Profile: acc.Profile})
}

func (api *userApi) signupProctor(ctx echo.Context) error {
	var data academic.ProctorSignup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProctorSignup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.academicSvc.SignupProctor(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up proctor")
	}
	return ctx.JSON(http.StatusCreated, SignupResponse{User: acc.User, Profile: acc.Profile})
}

func (api *userApi) signupHOD(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	var data academic.HODSignup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to HODSignup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	acc, err := api.academicSvc.SignupHOD(ctx.Request().Context(), p, data)
	if err != nil {
		return errors.Wrap(err, "signing up HOD")
	}
	return ctx.JSON(http.StatusCreated, SignupResponse{User: acc.User, Profile: acc.Profile})
}

func (api *userApi) branches(ctx echo.Context) error {
	branches, err := api.academicSvc.Branches(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	if branches == nil {
		branches = []academic.Branch{}
	}
	return ctx.JSON(http.StatusOK, branches)
}

func (api *userApi) sections(ctx echo.Context) error {
	sections, err := api.academicSvc.Sections(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	if sections == nil {
		sections = []academic.Section{}
	}
	return ctx.JSON(http.StatusOK, sections)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		User      user.User        `json:"user"`
		Roles     []string         `json:"roles"`
		Principal access.Principal `json:"principal"`
	}

	SignupResponse struct {
		User    user.User   `json:"user"`
		Profile interface{} `json:"profile"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
