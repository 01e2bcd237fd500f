// Package sessionhub owns the client's single persisted session. Every
// read that needs credentials goes through the Manager, which transparently
// refreshes an expired token pair before the read proceeds.
package sessionhub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fitsutra/internal/domain/session"
)

// SessionStore persists at most one session between process runs.
type SessionStore interface {
	Load(ctx context.Context) (session.Session, bool)
	Save(ctx context.Context, sess session.Session) error
	Clear(ctx context.Context) error
}

// Refresher exchanges a session's refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, sess session.Session) (session.Session, error)
}

// Manager hands out the current session, refreshing it when expired.
// INVARIANT: an expired session triggers at most one refresh attempt per
// Current call; concurrent callers serialize on the manager's lock so a
// burst of reads does not race a pile of refreshes.
type Manager struct {
	mu       sync.Mutex
	store    SessionStore
	identity Refresher
	now      func() time.Time
}

// NewManager creates a Manager over the given store and identity client.
func NewManager(store SessionStore, identity Refresher) *Manager {
	return &Manager{
		store:    store,
		identity: identity,
		now:      time.Now,
	}
}

// Current returns the persisted session, refreshing it first if its access
// token has expired. A rejected refresh token clears the stored session and
// settles in the signed-out state; the caller sees ok=false, never an error.
func (m *Manager) Current(ctx context.Context) (session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.store.Load(ctx)
	if !ok {
		return session.Session{}, false
	}
	if !sess.Expired(m.now()) {
		return sess, true
	}

	refreshed, err := m.identity.Refresh(ctx, sess)
	if err != nil {
		slog.Warn("auth_event", "event", "refresh_rejected", "user_id", sess.User.ID, "error", err.Error())
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			slog.Warn("session_clear_failed", "error", clearErr.Error())
		}
		return session.Session{}, false
	}
	if err := m.store.Save(ctx, refreshed); err != nil {
		// The refreshed pair still works for this call even if persisting
		// it failed; the next run will refresh again.
		slog.Warn("session_save_failed", "error", err.Error())
	}
	slog.Info("auth_event", "event", "session_refreshed", "user_id", refreshed.User.ID)
	return refreshed, true
}

// Set replaces the persisted session after a sign-in or sign-up.
func (m *Manager) Set(ctx context.Context, sess session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(ctx, sess)
}

// Clear signs the client out.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Clear(ctx)
}

// WithClock overrides the manager's clock for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}
