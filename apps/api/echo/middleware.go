package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/classgate/core/user"
)

// adminMiddleware checks the stored role rather than the token claim, so a demoted admin loses access at once.
func adminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if usr.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
