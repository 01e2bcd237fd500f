package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"fitsutra/internal/domain/session"
)

// MinPasswordLength matches the identity service's default policy.
const MinPasswordLength = 6

// IdentityForSignUp defines the identity calls sign-up needs.
type IdentityForSignUp interface {
	SignUp(ctx context.Context, email, password string) (session.Session, error)
}

// SignUpInput carries input for the sign-up orchestrator.
type SignUpInput struct {
	Email    string
	Password string
}

// SignUpDeps holds dependencies for SignUp.
type SignUpDeps struct {
	Identity IdentityForSignUp
	Sessions SessionWriter
}

// SignUpResult reports how the registration settled.
type SignUpResult struct {
	// NeedsConfirmation is true when the identity service requires an
	// email confirmation before issuing tokens. The caller shows a
	// check-your-inbox message instead of entering the app.
	NeedsConfirmation bool
	Session           session.Session
}

// ExecuteSignUp registers a new account. With auto-confirm enabled the
// returned session is persisted and the user lands in onboarding.
// PRE: Email must look like an address; Password must meet the minimum length
// POST: Either a persisted session or a pending confirmation, never both
func ExecuteSignUp(ctx context.Context, input SignUpInput, deps SignUpDeps) (SignUpResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if !strings.Contains(email, "@") {
		return SignUpResult{}, errors.New("a valid email address is required")
	}
	if len(input.Password) < MinPasswordLength {
		return SignUpResult{}, errors.New("password must be at least 6 characters")
	}

	sess, err := deps.Identity.SignUp(ctx, email, input.Password)
	if err != nil {
		slog.Info("auth_event", "event", "signup_failed", "email", email)
		return SignUpResult{}, err
	}

	if !sess.Valid() {
		slog.Info("auth_event", "event", "signup_pending_confirmation", "email", email)
		return SignUpResult{NeedsConfirmation: true}, nil
	}

	if err := deps.Sessions.Set(ctx, sess); err != nil {
		return SignUpResult{}, err
	}

	slog.Info("auth_event", "event", "signup_success", "user_id", sess.User.ID)
	return SignUpResult{Session: sess}, nil
}
