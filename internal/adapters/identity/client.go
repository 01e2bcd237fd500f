// Package identity wraps the GoTrue-compatible identity endpoint of the
// hosted backend: password grant, sign-up, recovery and token refresh.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fitsutra/internal/domain/session"
	"fitsutra/internal/observability"
)

// Client issues request/response exchanges against the identity endpoint.
// It does not persist sessions; that is the session manager's job.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewClient creates a Client for the given backend base URL and anon key.
func NewClient(baseURL, anonKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		anonKey:    anonKey,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// WithMetrics attaches an outbound-call recorder.
func (c *Client) WithMetrics(m *observability.Metrics) *Client {
	c.metrics = m
	return c
}

// errorBody is the JSON shape GoTrue uses for failures. Older and newer
// deployments disagree on the field name, so all three are tried.
type errorBody struct {
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error"`
}

func (b errorBody) text(fallback string) string {
	switch {
	case b.ErrorDescription != "":
		return b.ErrorDescription
	case b.Msg != "":
		return b.Msg
	case b.ErrorCode != "":
		return b.ErrorCode
	default:
		return fallback
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, payload any, fallback string) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode identity request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPICall("identity", method, 0, c.now().Sub(start))
		return nil, nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPICall("identity", method, resp.StatusCode, c.now().Sub(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return nil, nil, &AuthError{Status: resp.StatusCode, Description: eb.text(fallback)}
	}
	return resp, raw, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (session.Session, error) {
	_, raw, err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "",
		map[string]string{"email": email, "password": password}, "Sign in failed")
	if err != nil {
		return session.Session{}, err
	}
	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	slog.Info("auth_event", "event", "sign_in", "user_id", sess.User.ID)
	return sess, nil
}

// SignUp registers a new account. When the provider requires email
// confirmation the returned session has no access token; callers must treat
// that as "confirm your email", not as signed in.
func (c *Client) SignUp(ctx context.Context, email, password string) (session.Session, error) {
	_, raw, err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "",
		map[string]string{"email": email, "password": password}, "Sign up failed")
	if err != nil {
		return session.Session{}, err
	}
	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	slog.Info("auth_event", "event", "sign_up", "user_id", sess.User.ID, "confirmed", sess.AccessToken != "")
	return sess, nil
}

// SendPasswordReset requests a recovery email. Fire-and-forget: a 2xx means
// the provider accepted the request, nothing more.
func (c *Client) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	payload := map[string]string{"email": email}
	path := "/auth/v1/recover"
	if redirectTo != "" {
		payload["redirect_to"] = redirectTo
	}
	_, _, err := c.do(ctx, http.MethodPost, path, "", payload, "Password reset failed")
	return err
}

// UpdatePassword sets a new password using a recovery-scoped access token
// extracted from the reset link's URL fragment. The token is pre-checked
// locally (present, parseable, unexpired) before the provider is called.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	if accessToken == "" {
		return authErrorf(http.StatusUnauthorized, "Missing reset token. Use the link from your email.")
	}
	claims, err := ParseClaims(accessToken)
	if err != nil {
		return authErrorf(http.StatusUnauthorized, "This reset link is invalid or expired.")
	}
	if claims.Expired(c.now()) {
		return authErrorf(http.StatusUnauthorized, "This reset link is invalid or expired.")
	}
	_, _, err = c.do(ctx, http.MethodPut, "/auth/v1/user", accessToken,
		map[string]string{"password": newPassword}, "Password update failed")
	if err != nil {
		return err
	}
	slog.Info("auth_event", "event", "password_updated", "user_id", claims.Subject)
	return nil
}

// Refresh exchanges the refresh token for a new access/refresh pair. A
// rejection means the session is fully invalid and the caller must sign the
// user out.
func (c *Client) Refresh(ctx context.Context, sess session.Session) (session.Session, error) {
	_, raw, err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "",
		map[string]string{"refresh_token": sess.RefreshToken}, "Session refresh failed")
	if err != nil {
		return session.Session{}, err
	}
	var next session.Session
	if err := json.Unmarshal(raw, &next); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode refreshed session: %w", err)
	}
	slog.Info("auth_event", "event", "session_refreshed", "user_id", next.User.ID)
	return next, nil
}
