package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of access-token claims the app inspects. Tokens are
// parsed without signature verification; the backend verifies them on every
// request, so locally the claims only gate UX (expiry checks, channel naming).
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt int64
}

// Expired reports whether the token's exp claim has passed.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// ParseClaims decodes the claims of a JWT access token without verifying
// its signature.
func ParseClaims(raw string) (Claims, error) {
	var mc jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &mc); err != nil {
		return Claims{}, err
	}
	c := Claims{}
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Unix()
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if role, ok := mc["role"].(string); ok {
		c.Role = role
	}
	if c.Subject == "" {
		return Claims{}, errors.New("token has no subject claim")
	}
	return c, nil
}
