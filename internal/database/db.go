// Package database opens the relational store and applies the schema.  Two
// drivers are supported: MySQL for deployments and SQLite for local runs and
// tests.  Queries elsewhere in the module stick to the SQL both understand;
// the few statements that differ go through Dialect.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour of an open connection.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// InsertIgnore returns the statement prefix that inserts a row unless its
// primary key already exists.
func (d Dialect) InsertIgnore() string {
	if d == SQLite {
		return "INSERT OR IGNORE"
	}
	return "INSERT IGNORE"
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	// clientFoundRows=true makes RowsAffected count matched rows, so an UPDATE
	// that rewrites an identical value is not mistaken for a missing row.
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) the database at path.  Use ":memory:" for a
// private in-memory database.  SQLite allows a single writer, so the pool is
// capped at one connection; callers must not issue statements outside an
// open transaction while holding it.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return db, nil
}

// IsMissingColumn reports whether err is the store telling us a column does
// not exist, which happens when the binary runs ahead of a schema migration.
func IsMissingColumn(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1054 // ER_BAD_FIELD_ERROR
	}
	return strings.Contains(err.Error(), "no such column")
}
