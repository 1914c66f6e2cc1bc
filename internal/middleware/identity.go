package middleware

import "github.com/labstack/echo/v4"

// userIDKey is where SessionAuth leaves the verified subject.
const userIDKey = "user_id"

// UserID returns the authenticated user id, or "" on routes without
// SessionAuth.
func UserID(c echo.Context) string {
    if s, ok := c.Get(userIDKey).(string); ok {
        return s
    }
    return ""
}

// SetUserID stores id as the authenticated user.  Tests use it to skip
// token verification.
func SetUserID(c echo.Context, id string) {
    c.Set(userIDKey, id)
}
