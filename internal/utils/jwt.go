package utils // package utils provides the session token helper used in local development and tests

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// NewSessionToken signs an HS256 session token for userID that expires after
// ttl.  Production tokens are issued by the identity provider; this mints
// equivalent ones for local development and tests.  The claims are the
// registered subject, issued-at and expiry.
func NewSessionToken(secret, userID string, ttl time.Duration) (string, time.Time, error) {
    if secret == "" {
        return "", time.Time{}, errors.New("empty signing secret")
    }
    if userID == "" {
        return "", time.Time{}, errors.New("empty user id")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.RegisteredClaims{
        Subject:   userID,
        IssuedAt:  jwt.NewNumericDate(now),
        ExpiresAt: jwt.NewNumericDate(exp),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return "", time.Time{}, err
    }
    return signed, exp, nil
}
