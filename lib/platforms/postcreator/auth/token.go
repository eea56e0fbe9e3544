package auth

import (
	"fmt"
	"strings"
	"time"
)

// Token is the access token of a postcard creator session, there is no refresh
// token, an expired token means logging in again.
type Token struct {
	AccessToken string
	TokenType   string
	// ExpiresIn is the lifetime in seconds reported by the token endpoint.
	ExpiresIn int64
	FetchedAt time.Time
}

func (t Token) ExpiresAt() time.Time {
	return t.FetchedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Expired reports whether the token is expired at `now`.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}

// TokenExchangeError is returned when the token endpoint responds with a
// failure status or a body that does not contain a complete token.
type TokenExchangeError struct {
	StatusCode int
	Body       string
	// Missing lists the token fields that were absent from the response.
	Missing []string
	Err     error
}

func (e *TokenExchangeError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("postcard creator: token exchange (status %d): %s", e.StatusCode, e.Err.Error())
	case len(e.Missing) > 0:
		return fmt.Sprintf(
			"postcard creator: token exchange (status %d): response is missing %s",
			e.StatusCode, strings.Join(e.Missing, ", "),
		)
	default:
		return fmt.Sprintf("postcard creator: token exchange failed with status %d: %s", e.StatusCode, e.Body)
	}
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
