// Package database opens the PostgreSQL connection pool and keeps the schema up to date.
package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/fleetops/suivi/core"
	appfs "github.com/fleetops/suivi/fs"
)

const (
	maxPingAttempts = 30
	setupTimeout    = time.Minute
)

// dsn builds the connection URL for dbName, with the admin credentials when asked and configured.
func dsn(conf *core.Config, dbName string, admin bool) string {
	dbc := conf.Database
	creds := url.UserPassword(dbc.User, dbc.Password)
	if admin && dbc.AdminUser != "" {
		creds = url.UserPassword(dbc.AdminUser, dbc.AdminPassword)
	}

	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if dbc.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{Scheme: dbc.Engine, User: creds, Host: dbc.Address(), Path: dbName, RawQuery: q.Encode()}
	return u.String()
}

// Open returns the application's connection pool. No connection is made until first use.
func Open(conf *core.Config) (*sql.DB, error) {
	db, err := sql.Open(conf.Database.Engine, dsn(conf, conf.Database.Name, false))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// waitReady pings db until it answers, backing off a little more after each failure.
func waitReady(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= maxPingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for database")
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sql.DB, query string, arg interface{}) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, arg).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

// ensureRole creates the application role, allowed to create databases, unless it exists.
func ensureRole(ctx context.Context, db *sql.DB, name, pwd string) error {
	if name == "" {
		return nil
	}
	found, err := exists(ctx, db, "SELECT true FROM pg_roles WHERE rolname = $1", name)
	if err != nil {
		return errors.Wrap(err, "looking up role")
	}
	if found {
		return nil
	}
	// DDL takes no bind parameters
	_, err = db.ExecContext(ctx, "CREATE ROLE "+pq.QuoteIdentifier(name)+" LOGIN CREATEDB ENCRYPTED PASSWORD "+pq.QuoteLiteral(pwd))
	return errors.Wrap(err, "creating role")
}

func ensureDatabase(ctx context.Context, db *sql.DB, name string) error {
	found, err := exists(ctx, db, "SELECT true FROM pg_database WHERE datname = $1", name)
	if err != nil {
		return errors.Wrap(err, "looking up database")
	}
	if found {
		return nil
	}
	_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	return errors.Wrap(err, "creating database")
}

// withServer runs fn on a connection to the `postgres` maintenance database.
func withServer(ctx context.Context, conf *core.Config, admin bool, fn func(db *sql.DB) error) error {
	db, err := sql.Open(conf.Database.Engine, dsn(conf, "postgres", admin))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = db.Close() }()

	if err = waitReady(ctx, db); err != nil {
		return err
	}
	return fn(db)
}

// CreateIfNotExist creates the application role (as admin) then the application database (as that role).
func CreateIfNotExist(conf *core.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	err := withServer(ctx, conf, true, func(db *sql.DB) error {
		return ensureRole(ctx, db, conf.Database.User, conf.Database.Password)
	})
	if err != nil {
		return errors.Wrap(err, "setting up app role")
	}

	err = withServer(ctx, conf, false, func(db *sql.DB) error {
		return ensureDatabase(ctx, db, conf.Database.Name)
	})
	return errors.Wrap(err, "setting up app database")
}

// Migrate applies the pending embedded migrations.
func Migrate(db *sql.DB) error {
	return errors.Wrap(goose.RunFS("up", db, appfs.FS, "migrations"), "migrating database")
}
