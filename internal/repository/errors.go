// Package repository provides data access to the projects, messages,
// versions and users tables.  The sentinel errors below let higher layers
// tell client-correctable failures apart from store failures; handlers map
// them onto HTTP status codes.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrProjectNotFound is returned when a project does not exist or belongs to
// another user.  The two cases are deliberately indistinguishable.
var ErrProjectNotFound = errors.New("project not found")

// ErrVersionNotFound is returned when a version id is not one of the
// project's versions.
var ErrVersionNotFound = errors.New("version not found")

// ErrUserNotFound is returned when no account row exists for a user id.
var ErrUserNotFound = errors.New("user not found")

// ErrInsufficientCredits is returned by a debit that would take the balance
// below zero.  Handlers translate it into HTTP 402.
var ErrInsufficientCredits = errors.New("insufficient credits")

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
