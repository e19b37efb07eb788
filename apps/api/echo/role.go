package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/classgate/core"
)

type roleApi struct {
	roles RoleSource
}

func registerRoleAPI(g *echo.Group, jwt, admin echo.MiddlewareFunc, roles RoleSource) {
	api := roleApi{roles: roles}

	rg := g.Group("/roles", jwt, admin)
	rg.GET("/classify", api.classify)
	rg.GET("/rules", api.rules)
}

func (api *roleApi) classify(ctx echo.Context) error {
	email := ctx.QueryParam("email")
	if core.CleanString(email) == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: "this field is required"})
	}
	rl, ok := api.roles.Classify(email)
	return ctx.JSON(http.StatusOK, ClassifyResponse{
		Email:   core.NormalizeEmail(email),
		Role:    rl,
		Allowed: ok,
	})
}

// rules returns the active domain mappings & admin allow-list.
func (api *roleApi) rules(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.roles.Rules())
}
