package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/role"
)

type (
	SignupCheckRequest struct {
		Email string `json:"email" validate:"required"`
	}

	SignupCheckResponse struct {
		Allowed bool `json:"allowed"`
	}

	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	ClassifyResponse struct {
		Email   string    `json:"email"`
		Role    role.Role `json:"role,omitempty"`
		Allowed bool      `json:"allowed"`
	}

	SetActiveRequest struct {
		IsActive *bool `json:"active" validate:"required"`
	}
)

func (r *SignupCheckRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email)
	return validate.Struct(r)
}

func (r *LoginRequest) Validate(validate *validator.Validate) error {
	r.Email = core.CleanString(r.Email)
	return validate.Struct(r)
}
