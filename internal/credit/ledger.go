// Package credit keeps per-user generation credits: the daily allotment
// refresh, charging for a generation and refunding a failed one.
package credit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/database"
	"github.com/iliyamo/aether/internal/metrics"
	"github.com/iliyamo/aether/internal/repository"
)

// Store is the subset of repository.UserRepo the ledger needs.
type Store interface {
	Ensure(ctx context.Context, id string, initialCredits int, now time.Time) error
	Credits(ctx context.Context, id string) (int, error)
	LastRefreshedAt(ctx context.Context, id string) (*time.Time, error)
	RefreshIfStale(ctx context.Context, id string, credits int, now, dayStart time.Time) (bool, error)
	Debit(ctx context.Context, id string, amount int) error
	Credit(ctx context.Context, id string, amount int) error
}

type Ledger struct {
	store Store
	daily int
	log   zerolog.Logger
	now   func() time.Time

	// missingColumn guards the schema-not-ready warning so it is logged
	// once per ledger.
	missingColumn sync.Once
}

func NewLedger(store Store, daily int, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		daily: daily,
		log:   log.With().Str("component", "credit").Logger(),
		now:   time.Now,
	}
}

// StartOfDayUTC truncates t to 00:00:00 UTC of its calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EnsureAccount creates the account on first sight and then applies the
// daily refresh.  Only a failure to create the account is returned; refresh
// failures are logged.
func (l *Ledger) EnsureAccount(ctx context.Context, userID string) error {
	if err := l.store.Ensure(ctx, userID, l.daily, l.now()); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	if err := l.EnsureDailyRefresh(ctx, userID); err != nil {
		l.log.Error().Err(err).Str("user_id", userID).Msg("daily credit refresh failed")
	}
	return nil
}

// EnsureDailyRefresh resets the user's balance to the daily allotment at
// most once per UTC day.  Unknown users are ignored.  When the refresh
// column has not been migrated yet the call is a no-op and a warning is
// logged the first time.
func (l *Ledger) EnsureDailyRefresh(ctx context.Context, userID string) error {
	now := l.now().UTC()
	dayStart := StartOfDayUTC(now)

	last, err := l.store.LastRefreshedAt(ctx, userID)
	if err != nil {
		return l.refreshError(err)
	}
	if last != nil && !last.Before(dayStart) {
		metrics.RecordRefresh("current")
		return nil
	}

	applied, err := l.store.RefreshIfStale(ctx, userID, l.daily, now, dayStart)
	if err != nil {
		return l.refreshError(err)
	}
	if applied {
		metrics.RecordRefresh("refreshed")
		l.log.Debug().Str("user_id", userID).Int("credits", l.daily).Msg("daily credits refreshed")
	} else {
		// Another request won the guarded update.
		metrics.RecordRefresh("current")
	}
	return nil
}

func (l *Ledger) refreshError(err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		metrics.RecordRefresh("skipped")
		return nil
	case database.IsMissingColumn(err):
		metrics.RecordRefresh("skipped")
		l.missingColumn.Do(func() {
			l.log.Warn().Err(err).Msg("daily credit refresh skipped: credits_last_refreshed_at column missing, run migrations")
		})
		return nil
	default:
		metrics.RecordRefresh("error")
		return fmt.Errorf("daily refresh: %w", err)
	}
}

// Balance returns the user's credits.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.store.Credits(ctx, userID)
}

// Charge deducts cost in one guarded update.  It returns
// repository.ErrInsufficientCredits when the balance is too low, leaving it
// untouched.
func (l *Ledger) Charge(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		return nil
	}
	return l.store.Debit(ctx, userID, cost)
}

// Refund returns cost to the user after a failed generation.
func (l *Ledger) Refund(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		return nil
	}
	if err := l.store.Credit(ctx, userID, cost); err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	return nil
}
