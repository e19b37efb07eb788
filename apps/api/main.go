package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	echoapi "github.com/trezcool/classgate/apps/api/echo"
	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/role"
	"github.com/trezcool/classgate/core/user"
	emailsvc "github.com/trezcool/classgate/services/email"
	logsvc "github.com/trezcool/classgate/services/logger"
	"github.com/trezcool/classgate/storage/database"
	inmemdb "github.com/trezcool/classgate/storage/database/inmem"
	pgrepos "github.com/trezcool/classgate/storage/database/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	roleLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ROLES : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up role rules; invalid rules stop the app before it serves anything
	roles, watcher, err := setUpRoles(conf, roleLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up role rules: %v", err), err)
	}
	logger.Info(fmt.Sprintf("role rules loaded: %s", roles.Rules()))
	if watcher != nil {
		watcher.Start()
	}

	// set up DB
	usrRepo, closeDB, err := setUpUserRepository(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer closeDB()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, log.New(os.Stdout, "MAIL : ", log.LstdFlags), logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	usrSvc := user.NewService(user.ServiceDeps{
		Repo:       usrRepo,
		Roles:      roles,
		MailSvc:    mailSvc,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		AppName:    conf.AppName,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("roles", expvar.Func(func() interface{} { return roles.Rules() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			Roles:      roles,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRoles returns the rules holder and, when hot reload of the rules file is enabled, its watcher.
func setUpRoles(conf *core.Config, logger core.Logger) (*role.Holder, *role.Watcher, error) {
	resolver, opts, err := role.FromConfig(conf.Roles)
	if err != nil {
		return nil, nil, err
	}
	holder := role.NewHolder(resolver)
	if !conf.Roles.Watch || conf.Roles.JSON != "" {
		return holder, nil, nil
	}
	return holder, role.NewWatcher(conf.Roles.File, holder, logger, opts...), nil
}

// setUpUserRepository opens & migrates the configured database; an empty engine keeps users in memory.
func setUpUserRepository(conf *core.Config) (user.Repository, func(), error) {
	if conf.Database.Engine == "" {
		return inmemdb.NewUserRepository(inmemdb.Open()), func() {}, nil
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	if err = database.Migrate(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pgrepos.NewUserRepository(db), func() { _ = db.Close() }, nil
}
