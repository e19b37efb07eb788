package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/user"
)

type userApi struct {
	svc      *user.Service
	tokens   *tokenIssuer
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt, admin echo.MiddlewareFunc,
	svc *user.Service,
	tokens *tokenIssuer,
	validate *validator.Validate,
) {
	api := userApi{
		svc:      svc,
		tokens:   tokens,
		validate: validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/register", api.register)
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.GET("/me", api.me)
	ag.GET("", api.query, admin)

	// detail endpoints
	dg := ag.Group("/:id", admin)
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.POST("/reclassify", api.reclassify)
	dg.PUT("/active", api.setActive)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials:
			return core.NewValidationError(user.ErrInvalidCredentials)
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.tokens.generate(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	users, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return api.trapNotFound(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := api.svc.GetByID(ctx.Request().Context(), id); err != nil {
		return api.trapNotFound(err, "finding user by ID")
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// reclassify re-resolves the user's role against the active rules.
func (api *userApi) reclassify(ctx echo.Context) error {
	usr, err := api.svc.Reclassify(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return api.trapNotFound(err, "reclassifying user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setActive(ctx echo.Context) error {
	var data SetActiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	usr, err := api.svc.SetActive(ctx.Request().Context(), ctx.Param("id"), *data.IsActive)
	if err != nil {
		return api.trapNotFound(err, "setting user active")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) trapNotFound(err error, msg string) error {
	if errors.Cause(err) == user.ErrNotFound {
		return errHttpNotFound
	}
	return errors.Wrap(err, msg)
}
