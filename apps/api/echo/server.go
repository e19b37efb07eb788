package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/role"
	"github.com/trezcool/classgate/core/user"
)

type (
	// RoleSource classifies emails and exposes the active rules.
	RoleSource interface {
		role.Classifier
		Rules() *role.Rules
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    *user.Service
		Roles      RoleSource
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		tokens   *tokenIssuer
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		tokens:     newTokenIssuer(deps.Conf),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = s.Conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := s.tokens.middleware()
	admin := adminMiddleware(s.UserSvc)

	registerSignupAPI(v1, s.UserSvc, s.Validate)
	registerUserAPI(v1, jwt, admin, s.UserSvc, s.tokens, s.Validate)
	registerRoleAPI(v1, jwt, admin, s.Roles)
}

// Start blocks until the server stops. Unexpected errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// signalShutdown asks main to gracefully shut the server down.
func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}
