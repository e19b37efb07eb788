package database

import (
	"context"
	"database/sql"
	"embed"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/classgate/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var gooseRunFunc = goose.RunContext // mockable

// URL builds the connection string from conf.
func URL(conf core.DatabaseConfig) string {
	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     url.UserPassword(conf.User, conf.Password),
		Host:     conf.Address(),
		Path:     conf.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to the configured database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(conf.Database.Engine, URL(conf.Database))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db.DB, 30); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB, maxAttempts int) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// RunMigrations runs a goose command (up, down, status, ...) with the embedded migrations.
func RunMigrations(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "goose set dialect")
	}
	if err := gooseRunFunc(ctx, command, db, "migrations", args...); err != nil {
		return errors.Wrapf(err, "goose %s", command)
	}
	return nil
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	return RunMigrations(ctx, db, "up")
}
