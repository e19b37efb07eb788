package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

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
	conf := core.NewConfig()
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, conf)
	defer logger.Close()

	// invalid rules are reported by `checkrules`, not here
	var roles *role.Holder
	if resolver, _, err := role.FromConfig(conf.Roles); err == nil {
		roles = role.NewHolder(resolver)
	} else {
		roles = role.NewHolder(nil)
		std.Printf("role rules not loaded: %v", err)
	}

	// set up DB
	var (
		db      *sqlx.DB
		usrRepo user.Repository
	)
	if conf.Database.Engine != "" {
		var err error
		db, err = database.Open(conf)
		errAndDie(logger, err)
		defer func() { _ = db.Close() }()
		usrRepo = pgrepos.NewUserRepository(db)
	} else {
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	}

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:  conf,
		out:   os.Stdout,
		roles: roles,
		db:    db,
		usrSvc: user.NewService(user.ServiceDeps{
			Repo:       usrRepo,
			Roles:      roles,
			MailSvc:    emailsvc.NewConsoleService(conf, std, logger),
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			AppName:    conf.AppName,
		}),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
