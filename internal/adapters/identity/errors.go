package identity

import "fmt"

// AuthError is the single error type every identity-endpoint failure is
// normalized into. Description carries the provider's human-readable text.
type AuthError struct {
	Status      int
	Description string
}

func (e *AuthError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("identity request failed with status %d", e.Status)
}

func authErrorf(status int, format string, args ...any) *AuthError {
	return &AuthError{Status: status, Description: fmt.Sprintf(format, args...)}
}
