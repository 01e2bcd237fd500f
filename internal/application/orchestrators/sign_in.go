// Package orchestrators contains the write-side flows. Each orchestrator
// takes an Input and a Deps struct of narrow interfaces, validates, calls
// the adapters, and logs a structured event. Handlers stay thin.
package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fitsutra/internal/domain/session"
)

// IdentityForSignIn defines the identity calls sign-in needs.
type IdentityForSignIn interface {
	SignInWithPassword(ctx context.Context, email, password string) (session.Session, error)
}

// SessionWriter persists the session after a successful credential flow.
type SessionWriter interface {
	Set(ctx context.Context, sess session.Session) error
}

// SignInInput carries input for the sign-in orchestrator.
type SignInInput struct {
	Email    string
	Password string
}

// SignInDeps holds dependencies for SignIn.
type SignInDeps struct {
	Identity IdentityForSignIn
	Sessions SessionWriter
}

// ExecuteSignIn exchanges credentials for a session and persists it.
// PRE: Email and Password must be non-empty
// POST: On success the session store holds the new token pair
func ExecuteSignIn(ctx context.Context, input SignInInput, deps SignInDeps) (session.Session, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return session.Session{}, errors.New("email and password are required")
	}

	sess, err := deps.Identity.SignInWithPassword(ctx, email, input.Password)
	if err != nil {
		slog.Info("auth_event", "event", "login_failed", "email", email)
		return session.Session{}, err
	}

	if err := deps.Sessions.Set(ctx, sess); err != nil {
		return session.Session{}, err
	}

	slog.Info("auth_event", "event", "login_success", "user_id", sess.User.ID)
	return sess, nil
}
