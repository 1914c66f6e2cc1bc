package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/aether/internal/database"
)

// UserRepo owns the credit columns of the users table.  Identity itself
// lives with the external provider; a row here only exists to carry the
// balance and the refresh marker.
type UserRepo struct {
	db      DBTX
	dialect database.Dialect
}

func NewUserRepo(db DBTX, dialect database.Dialect) *UserRepo {
	return &UserRepo{db: db, dialect: dialect}
}

// Ensure creates the account with initialCredits unless it already exists.
// The refresh marker is stamped so the first day's allotment is not granted
// twice.
func (r *UserRepo) Ensure(ctx context.Context, id string, initialCredits int, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.dialect.InsertIgnore()+` INTO users (id, credits, credits_last_refreshed_at, created_at) VALUES (?, ?, ?, ?)`,
		id, initialCredits, now.UTC(), now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensuring user: %w", err)
	}
	return nil
}

// Credits returns the current balance.
func (r *UserRepo) Credits(ctx context.Context, id string) (int, error) {
	var credits int
	err := r.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, id).Scan(&credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("reading credits: %w", err)
	}
	return credits, nil
}

// LastRefreshedAt returns the refresh marker (nil when never refreshed).
// Store errors are wrapped with %w so database.IsMissingColumn still sees
// the driver error.
func (r *UserRepo) LastRefreshedAt(ctx context.Context, id string) (*time.Time, error) {
	var refreshed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT credits_last_refreshed_at FROM users WHERE id = ?`, id,
	).Scan(&refreshed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("reading refresh marker: %w", err)
	}
	if !refreshed.Valid {
		return nil, nil
	}
	t := refreshed.Time
	return &t, nil
}

// RefreshIfStale resets the balance to credits when the stored marker is
// null or older than dayStart.  The guard lives in the WHERE clause, so two
// concurrent callers cannot both apply it.  It reports whether a row changed.
func (r *UserRepo) RefreshIfStale(ctx context.Context, id string, credits int, now, dayStart time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET credits = ?, credits_last_refreshed_at = ?
		 WHERE id = ? AND (credits_last_refreshed_at IS NULL OR credits_last_refreshed_at < ?)`,
		credits, now.UTC(), id, dayStart.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("refreshing credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// Debit subtracts amount when the balance covers it.
func (r *UserRepo) Debit(ctx context.Context, id string, amount int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET credits = credits - ? WHERE id = ? AND credits >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return fmt.Errorf("debiting credits: %w", err)
	}
	return expectOne(res, ErrInsufficientCredits)
}

// Credit adds amount back, used to refund a failed generation.
func (r *UserRepo) Credit(ctx context.Context, id string, amount int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET credits = credits + ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("crediting credits: %w", err)
	}
	return expectOne(res, ErrUserNotFound)
}
