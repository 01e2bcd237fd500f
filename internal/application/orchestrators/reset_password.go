package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// IdentityForReset defines the identity calls the reset flows need.
type IdentityForReset interface {
	SendPasswordReset(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
}

// SendResetInput carries input for the reset-request orchestrator.
type SendResetInput struct {
	Email      string
	RedirectTo string // absolute URL of the reset page the email links to
}

// SendResetDeps holds dependencies for SendReset.
type SendResetDeps struct {
	Identity IdentityForReset
}

// ExecuteSendReset asks the identity service to email a recovery link.
// The service does not reveal whether the address exists; neither do we.
func ExecuteSendReset(ctx context.Context, input SendResetInput, deps SendResetDeps) error {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return errors.New("email is required")
	}
	if err := deps.Identity.SendPasswordReset(ctx, email, input.RedirectTo); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "reset_link_sent", "email", email)
	return nil
}

// UpdatePasswordInput carries input for the password-update orchestrator.
// The access token comes from the recovery link, not the session store.
type UpdatePasswordInput struct {
	AccessToken string
	Password    string
	Confirm     string
}

// UpdatePasswordDeps holds dependencies for UpdatePassword.
type UpdatePasswordDeps struct {
	Identity IdentityForReset
}

// ExecuteUpdatePassword sets a new password using a recovery token.
// PRE: Password meets the minimum length and matches Confirm
// POST: The identity service holds the new credential
func ExecuteUpdatePassword(ctx context.Context, input UpdatePasswordInput, deps UpdatePasswordDeps) error {
	if len(input.Password) < MinPasswordLength {
		return errors.New("password must be at least 6 characters")
	}
	if input.Password != input.Confirm {
		return errors.New("passwords do not match")
	}

	if err := deps.Identity.UpdatePassword(ctx, input.AccessToken, input.Password); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "password_updated")
	return nil
}
