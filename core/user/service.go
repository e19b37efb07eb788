package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/role"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrSignupNotAllowed   = errors.New("this email is not from a recognized school domain")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")

	NowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	ServiceDeps struct {
		Repo       Repository
		Roles      role.Classifier
		MailSvc    core.EmailService
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		AppName    string
	}

	// Service provisions accounts. Every account gets the role its email resolves to.
	Service struct {
		ServiceDeps
	}
)

func NewService(deps ServiceDeps) *Service {
	return &Service{ServiceDeps: deps}
}

// CheckSignup is the sign-up gate: ErrSignupNotAllowed means reject, not warn.
func (svc *Service) CheckSignup(email string) error {
	if !svc.Roles.IsAllowed(email) {
		return ErrSignupNotAllowed
	}
	return nil
}

func (svc *Service) validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		return core.NewValidationError(nil, core.FieldErrors(verrs, svc.Translator)...)
	}
	return err
}

// Create validates nu, resolves its role and persists the account.
// An unrecognized email is a validation error on "email" and no account is written.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.Validate); err != nil {
		return User{}, svc.validationError(err)
	}

	rl, ok := svc.Roles.Classify(nu.Email)
	if !ok {
		return User{}, core.NewValidationError(ErrSignupNotAllowed, core.FieldError{Field: "email", Error: ErrSignupNotAllowed.Error()})
	}

	if _, err := svc.Repo.GetUser(ctx, GetFilter{Email: nu.Email}); err == nil {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	now := NowFunc()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      rl,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.Repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	svc.Logger.Info(fmt.Sprintf("user %s provisioned as %s", usr.Email, usr.Role), usr)
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	if svc.MailSvc == nil {
		return
	}
	svc.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"AppName": svc.AppName,
			"Name":    usr.Name,
			"Email":   usr.Email,
			"Role":    usr.Role,
		},
	})
}

// Authenticate checks the credentials of an active user and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr.LastLogin = NowFunc()
	usr, err = svc.Repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.Repo.GetUser(ctx, GetFilter{ID: core.CleanString(id)})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.NormalizeEmail(email)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.Repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.Repo.QueryUsers(ctx, filter)
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	if err := rp.Validate(svc.Validate); err != nil {
		return svc.validationError(err)
	}
	usr, err := svc.GetByEmail(ctx, rp.Email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc()
	_, err = svc.Repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating password")
}

func (svc *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = active
	usr.UpdatedAt = NowFunc()
	return svc.Repo.UpdateUser(ctx, usr)
}

// Reclassify re-resolves the user's role against the current rules.
// A user whose email is no longer recognized is deactivated, keeping the last known role.
func (svc *Service) Reclassify(ctx context.Context, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	rl, ok := svc.Roles.Classify(usr.Email)
	switch {
	case !ok:
		if !usr.IsActive {
			return usr, nil
		}
		usr.IsActive = false
		svc.Logger.Warn(fmt.Sprintf("user %s is no longer recognized, deactivating", usr.Email), usr)
	case rl != usr.Role:
		svc.Logger.Info(fmt.Sprintf("user %s role changed: %s -> %s", usr.Email, usr.Role, rl), usr)
		usr.Role = rl
	default:
		return usr, nil
	}
	usr.UpdatedAt = NowFunc()
	usr, err = svc.Repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating role")
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.Repo.DeleteUsersByID(ctx, ids...)
}
