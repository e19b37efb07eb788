package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classgate/core/user"
)

type signupApi struct {
	svc      *user.Service
	validate *validator.Validate
}

func registerSignupAPI(g *echo.Group, svc *user.Service, validate *validator.Validate) {
	api := signupApi{svc: svc, validate: validate}
	g.POST("/signup/check", api.check)
}

// check tells the sign-up form whether the email may create an account at all.
func (api *signupApi) check(ctx echo.Context) error {
	var data SignupCheckRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignupCheckRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.CheckSignup(data.Email)
	if err != nil && err != user.ErrSignupNotAllowed {
		return errors.Wrap(err, "checking signup")
	}
	return ctx.JSON(http.StatusOK, SignupCheckResponse{Allowed: err == nil})
}
