package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/role"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Role         role.Role `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == role.Admin }
func (u *User) IsTeacher() bool { return u.Role == role.Teacher }
func (u *User) IsStudent() bool { return u.Role == role.Student }

// NewUser contains information needed to create a new User.
// The role is never provided: it is resolved from the email.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.NormalizeEmail(nu.Email)
	return validate.Struct(nu)
}

// ResetUserPassword is used by admins to set a new password.
type ResetUserPassword struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Email = core.NormalizeEmail(rp.Email)
	return validate.Struct(rp)
}

// GetFilter finds a single User; the first non-empty field is used.
type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search   string    `query:"search"`
	Role     role.Role `query:"role"`
	IsActive *bool     `query:"active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = role.Role(core.CleanString(string(qf.Role), true /* lower */))
}
