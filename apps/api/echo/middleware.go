package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/spis/core/access"
)

// requireMiddleware rejects principals that may not perform action at all.
// Object-level checks stay in the services.
func requireMiddleware(action access.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context principal")
			}
			if err = access.Check(p, action, access.Target{}); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
