// Package crud is the generic table engine behind every registry page.
// One Module per table: it lists with the tenant filter baked in, builds
// write payloads from declared fields only, and keeps a snapshot of the
// last fetched rows refreshed by the change feed.
package crud

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fitsutra/internal/adapters/data"
	"fitsutra/internal/domain/record"
	"fitsutra/internal/domain/session"
)

const defaultOrder = "created_at.desc"

// refreshTimeout bounds the background refetch a change event triggers.
const refreshTimeout = 10 * time.Second

// Config declares one registry page. The field list is the single source
// of truth for which columns render, which form inputs appear, and which
// keys a write payload may carry.
type Config struct {
	Title       string
	Description string // markdown, rendered by the page layer
	Table       string
	Fields      []record.Field
	Select      string // custom select= list; empty means defaults plus declared fields
	Order       string // order= expression; empty means created_at.desc
	Limit       int
	UseModal    bool
	ModalCols   int
}

// Validate rejects configs that would produce an unusable page.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("module title is required")
	}
	if strings.TrimSpace(c.Table) == "" {
		return fmt.Errorf("module %q has no table", c.Title)
	}
	return record.ValidateFields(c.Fields)
}

// DataAPI is the slice of the data client the engine needs.
type DataAPI interface {
	Fetch(ctx context.Context, resource, accessToken string) ([]record.Record, error)
	Insert(ctx context.Context, table, accessToken string, rows []record.Record) ([]record.Record, error)
	Update(ctx context.Context, resource, accessToken string, patch record.Record) error
	Delete(ctx context.Context, resource, accessToken string) error
}

// FeedCloser is one live change-feed subscription: it can be torn down and
// can have a refreshed access token pushed to it.
type FeedCloser interface {
	Close()
	UpdateToken(accessToken string)
}

// ChangeFeed opens change-feed subscriptions for a table.
type ChangeFeed interface {
	Subscribe(sess session.Session, table, gymID string, onChange func()) FeedCloser
}

// View narrows a listing without another network round trip. Search and
// field filters are independent predicates; applying them in either order
// yields the same rows.
type View struct {
	Search      string
	FilterField string
	FilterValue string
}

// Module is the engine instance for one table.
type Module struct {
	cfg  Config
	api  DataAPI
	feed ChangeFeed

	mu       sync.RWMutex
	snapshot []record.Record
	sub      FeedCloser
	feedSess session.Session
	feedGym  string
	feedGen  int
}

// NewModule creates a Module for the given config.
func NewModule(cfg Config, api DataAPI, feed ChangeFeed) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Module{cfg: cfg, api: api, feed: feed}, nil
}

// Config returns the module's declaration for the page layer.
func (m *Module) Config() Config {
	return m.cfg
}

func (m *Module) listResource(gymID string) string {
	order := m.cfg.Order
	if order == "" {
		order = defaultOrder
	}
	q := data.Table(m.cfg.Table).
		Select(record.SelectList(m.cfg.Fields, m.cfg.Select)).
		Order(order)
	if gymID != "" {
		q = q.Eq("gym_id", gymID)
	}
	if m.cfg.Limit > 0 {
		q = q.Limit(m.cfg.Limit)
	}
	return q.Resource()
}

// List fetches the tenant's rows, updates the snapshot, and applies the
// view's client-side narrowing.
// INVARIANT: the tenant equality filter is always present when a gym is
// bound; no call site can widen the read past its workspace.
func (m *Module) List(ctx context.Context, sess session.Session, gymID string, view View) ([]record.Record, error) {
	rows, err := m.api.Fetch(ctx, m.listResource(gymID), sess.AccessToken)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.snapshot = rows
	m.mu.Unlock()
	return record.FilterView(rows, m.cfg.Fields, view.Search, view.FilterField, view.FilterValue), nil
}

// Snapshot returns the last fetched rows without a network call.
func (m *Module) Snapshot() []record.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Record, len(m.snapshot))
	copy(out, m.snapshot)
	return out
}

// Create inserts one row built from the declared fields plus the tenant id.
// Keys outside the field list never reach the wire.
func (m *Module) Create(ctx context.Context, sess session.Session, gymID string, form map[string]string) (record.Record, error) {
	payload := record.BuildPayload(m.cfg.Fields, form, gymID)
	inserted, err := m.api.Insert(ctx, m.cfg.Table, sess.AccessToken, []record.Record{payload})
	if err != nil {
		return nil, err
	}
	m.refresh(ctx, sess, gymID)
	if len(inserted) == 0 {
		return payload, nil
	}
	return inserted[0], nil
}

// Update patches one row by id, scoped to the tenant.
func (m *Module) Update(ctx context.Context, sess session.Session, gymID, id string, form map[string]string) error {
	if id == "" {
		return fmt.Errorf("update requires a row id")
	}
	payload := record.BuildPayload(m.cfg.Fields, form, gymID)
	q := data.Table(m.cfg.Table).Eq("id", id)
	if gymID != "" {
		q = q.Eq("gym_id", gymID)
	}
	if err := m.api.Update(ctx, q.Resource(), sess.AccessToken, payload); err != nil {
		return err
	}
	m.refresh(ctx, sess, gymID)
	return nil
}

// Delete removes one row by id, scoped to the tenant. Deleting a row that
// is already gone surfaces the service's error so the caller can show it.
func (m *Module) Delete(ctx context.Context, sess session.Session, gymID, id string) error {
	if id == "" {
		return fmt.Errorf("delete requires a row id")
	}
	q := data.Table(m.cfg.Table).Eq("id", id)
	if gymID != "" {
		q = q.Eq("gym_id", gymID)
	}
	if err := m.api.Delete(ctx, q.Resource(), sess.AccessToken); err != nil {
		return err
	}
	m.refresh(ctx, sess, gymID)
	return nil
}

// refresh refetches the snapshot after a write. Failures only log; the
// stale snapshot stays until the next successful read.
func (m *Module) refresh(ctx context.Context, sess session.Session, gymID string) {
	rows, err := m.api.Fetch(ctx, m.listResource(gymID), sess.AccessToken)
	if err != nil {
		slog.Warn("module_refresh_failed", "table", m.cfg.Table, "error", err.Error())
		return
	}
	m.mu.Lock()
	m.snapshot = rows
	m.mu.Unlock()
}

// EnsureFeed opens the module's change-feed subscription if none is live
// for this session and tenant. Change events trigger a snapshot refetch,
// so rows written elsewhere appear without user action.
func (m *Module) EnsureFeed(sess session.Session, gymID string) {
	if m.feed == nil {
		return
	}
	m.mu.Lock()
	if m.sub != nil && m.feedSess.User.ID == sess.User.ID && m.feedGym == gymID {
		if m.feedSess.AccessToken == sess.AccessToken {
			m.mu.Unlock()
			return
		}
		// Same channel, refreshed token pair: push the new token instead
		// of tearing the channel down.
		live := m.sub
		m.feedSess = sess
		m.mu.Unlock()
		live.UpdateToken(sess.AccessToken)
		return
	}
	m.feedGen++
	gen := m.feedGen
	old := m.sub
	m.sub = nil
	m.feedSess = sess
	m.feedGym = gymID
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	// Subscribe outside the lock: change events refetch the snapshot, and
	// the refetch takes the same lock. The callback reads the feed session
	// at fire time so a pushed token refresh reaches the refetch too.
	sub := m.feed.Subscribe(sess, m.cfg.Table, gymID, func() {
		m.mu.RLock()
		cur := m.feedSess
		m.mu.RUnlock()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		m.refresh(ctx, cur, gymID)
	})
	m.mu.Lock()
	if m.feedGen != gen {
		// A concurrent call superseded this subscription while it was
		// opening; close the extra channel rather than leak it.
		m.mu.Unlock()
		sub.Close()
		return
	}
	m.sub = sub
	m.mu.Unlock()
}

// CloseFeed tears down the change-feed subscription, if any.
func (m *Module) CloseFeed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
}
