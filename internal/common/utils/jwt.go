// internal/common/utils/jwt.go
// Client-side inspection of the backend bearer token.
// The client never holds the signing secret, so claims are decoded without verification
// and used only to decide whether a stored session is worth reusing.

package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrOpaqueToken is returned when the token is not a JWT
var ErrOpaqueToken = errors.New("token is not a JWT")

// SessionClaims are the claims the client cares about
type SessionClaims struct {
	UserID    string
	Email     string
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
	IssuedAt  time.Time
}

// DecodeClaims parses a bearer token without verifying its signature
func DecodeClaims(tokenString string) (*SessionClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	return &SessionClaims{
		UserID:    firstStringClaim(claims, "user_id", "userId", "id", "_id"),
		Email:     getStringClaim(claims, "email"),
		Subject:   getStringClaim(claims, "sub"),
		ExpiresAt: getTimeClaim(claims, "exp"),
		IssuedAt:  getTimeClaim(claims, "iat"),
	}, nil
}

// Expired reports whether the claims are past their expiry at now.
// A small leeway keeps a token that is about to expire from being reused.
func (c *SessionClaims) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(c.ExpiresAt)
}

// Helper functions to safely extract claims
func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func firstStringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if val := getStringClaim(claims, key); val != "" {
			return val
		}
	}
	return ""
}

func getTimeClaim(claims jwt.MapClaims, key string) time.Time {
	switch val := claims[key].(type) {
	case float64:
		return time.Unix(int64(val), 0)
	case int64:
		return time.Unix(val, 0)
	}
	return time.Time{}
}
