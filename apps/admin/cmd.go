package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/classgate/core"
	"github.com/trezcool/classgate/core/role"
	"github.com/trezcool/classgate/core/user"
	"github.com/trezcool/classgate/storage/database"
)

var (
	readPasswordFunc  = term.ReadPassword        // mockable
	runMigrationsFunc = database.RunMigrations // mockable

	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("no database configured, set <ENV>_DATABASE_ENGINE")
)

type commandLine struct {
	conf   *core.Config
	out    io.Writer
	roles  *role.Holder
	usrSvc *user.Service
	db     *sqlx.DB
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  classify -email EMAIL - show the role an email resolves to")
	_, _ = fmt.Fprintln(cli.out, "  checkrules [-file FILE] - validate a role rules file (defaults to the configured one)")
	_, _ = fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL - create a user; the password is prompted")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	classifyCmd := flag.NewFlagSet("classify", flag.ContinueOnError)
	classifyEmail := classifyCmd.String("email", "", "The email to classify.")

	checkRulesCmd := flag.NewFlagSet("checkrules", flag.ContinueOnError)
	checkRulesFile := checkRulesCmd.String("file", "", "The rules file to check.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	for _, fs := range []*flag.FlagSet{classifyCmd, checkRulesCmd, addUserCmd, resetPasswordCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "classify":
		if err := classifyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *classifyEmail == "" {
			classifyCmd.Usage()
			return errHelp
		}
		return cli.classify(*classifyEmail)

	case "checkrules":
		if err := checkRulesCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.checkRules(*checkRulesFile)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserEmail, pwd, confirm)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd, confirm)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	_, _ = fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) classify(email string) error {
	if rl, ok := cli.roles.Classify(email); ok {
		_, _ = fmt.Fprintf(cli.out, "%s: %s\n", core.NormalizeEmail(email), rl)
	} else {
		_, _ = fmt.Fprintf(cli.out, "%s: not allowed\n", core.NormalizeEmail(email))
	}
	return nil
}

func (cli *commandLine) checkRules(file string) error {
	if file == "" {
		file = cli.conf.Roles.File
	}
	rules, err := role.LoadFile(file)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: OK\n", file)
	for i, m := range rules.Mappings() {
		_, _ = fmt.Fprintf(cli.out, "  %d. %s -> %s\n", i+1, m.Domain, m.Role)
	}
	_, _ = fmt.Fprintf(cli.out, "  admins: %d\n", len(rules.Admins()))
	return nil
}

// addUser creates a user; its role is resolved from the email like any sign-up.
func (cli *commandLine) addUser(name, email, pwd, confirm string) error {
	usr, err := cli.usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "user %s created with role %s\n", usr.Email, usr.Role)
	return nil
}

func (cli *commandLine) resetPassword(email, pwd, confirm string) error {
	return cli.usrSvc.ResetPassword(context.Background(), user.ResetUserPassword{
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
	})
}

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return runMigrationsFunc(context.Background(), cli.db.DB, args[0], args[1:]...)
}
