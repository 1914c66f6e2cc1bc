package middleware

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"
    "github.com/rs/zerolog"
)

// AccountEnsurer is satisfied by *credit.Ledger.
type AccountEnsurer interface {
    EnsureAccount(ctx context.Context, userID string) error
}

// EnsureAccount makes sure the authenticated user has a credit account and
// that today's allotment has been applied.  It must run after SessionAuth.
func EnsureAccount(accounts AccountEnsurer, log zerolog.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            uid := UserID(c)
            if uid == "" {
                return unauthorized(c, "unauthenticated")
            }
            if err := accounts.EnsureAccount(c.Request().Context(), uid); err != nil {
                log.Error().Err(err).Str("user_id", uid).Msg("ensure account failed")
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load account", "code": "internal_error"})
            }
            return next(c)
        }
    }
}
