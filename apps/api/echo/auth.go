package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/role"
	"github.com/trezcool/classgate/core/user"
)

var (
	contextClaimsKey = "userClaims"
	contextUserKey   = "user"

	nowFunc = time.Now // mockable
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	Email string    `json:"email,omitempty"`
	Role  role.Role `json:"role,omitempty"` // -> TEACHER | STUDENT | ADMIN PORTAL
}

type tokenIssuer struct {
	key        []byte
	method     jwt.SigningMethod
	issuer     string
	expiration time.Duration
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	return &tokenIssuer{
		key:        []byte(conf.SecretKey),
		method:     jwt.SigningMethodHS256,
		issuer:     conf.AppName,
		expiration: conf.Server.JWTExpirationDelta,
	}
}

func (ti *tokenIssuer) claims(usr user.User) *Claims {
	now := nowFunc()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: usr.Email,
		Role:  usr.Role,
	}
}

// generate returns a signed JWT token string representing the user Claims.
func (ti *tokenIssuer) generate(usr user.User) (string, error) {
	token := jwt.NewWithClaims(ti.method, ti.claims(usr))
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *tokenIssuer) parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr, claims,
		func(*jwt.Token) (interface{}, error) { return ti.key, nil },
		jwt.WithValidMethods([]string{ti.method.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(nowFunc),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// middleware authenticates requests carrying an "Authorization: Bearer <token>" header.
func (ti *tokenIssuer) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			scheme, tokenStr, ok := strings.Cut(auth, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
				return errMissingToken
			}
			claims, err := ti.parse(strings.TrimSpace(tokenStr))
			if err != nil {
				return errInvalidToken.WithInternal(err)
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
