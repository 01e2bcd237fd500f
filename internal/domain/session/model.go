package session

import (
	"time"
)

// StorageKey is the single key under which the session is persisted locally.
const StorageKey = "fitsutra.session"

// User identifies the authenticated account as reported by the identity service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session holds the token pair issued by the identity service.
// At most one session is persisted per client; absence is a valid state.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds
	User         User   `json:"user"`
}

// Valid reports whether the session carries a usable access token and user id.
// INVARIANT: Session fields are not mutated
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.User.ID != ""
}

// Expired reports whether the access token's expiry has passed.
// A read through an expired session must trigger exactly one refresh exchange.
func (s Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}
