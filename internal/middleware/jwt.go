package middleware // middleware holds the echo middleware shared by all route groups

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5" // verifies session tokens issued by the identity provider
    "github.com/labstack/echo/v4"
)

// SessionCookie is the cookie the identity provider stores its session
// token in.
const SessionCookie = "__session"

// SessionAuth returns an Echo middleware that accepts a session token from
// either an `Authorization: Bearer` header or the __session cookie, verifies
// it as an HS256 JWT signed with secret and stores its subject under
// "user_id".  The header wins when both are present.  Requests without a
// valid token, or whose token has no subject, get 401.
func SessionAuth(secret string) echo.MiddlewareFunc {
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := sessionToken(c.Request())
            if raw == "" {
                return unauthorized(c, "missing session token")
            }

            tok, err := parser.Parse(raw, keyFunc)
            if err != nil || !tok.Valid {
                return unauthorized(c, "invalid session token")
            }
            sub, err := tok.Claims.GetSubject()
            if err != nil || strings.TrimSpace(sub) == "" {
                return unauthorized(c, "session token has no subject")
            }

            c.Set(userIDKey, sub)
            return next(c)
        }
    }
}

// sessionToken extracts the raw token, preferring the bearer header.
func sessionToken(r *http.Request) string {
    if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        if t := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); t != "" {
            return t
        }
    }
    ck, err := r.Cookie(SessionCookie)
    if err != nil {
        return ""
    }
    return strings.TrimSpace(ck.Value)
}

func unauthorized(c echo.Context, msg string) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg, "code": "unauthorized"})
}
