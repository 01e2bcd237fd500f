// Package realtime opens change-feed channels against the hosted realtime
// endpoint and turns every insert/update/delete notification into a caller
// refresh. It never diffs payloads: a change means refetch.
package realtime

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fitsutra/internal/domain/session"
)

// Subscription states. One subscription exists per mounted module.
type State int32

const (
	StateDisconnected State = iota
	StateHydrating
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// heartbeatInterval keeps the Phoenix socket alive. The endpoint drops
// connections silent for more than a minute.
const heartbeatInterval = 25 * time.Second

// Bridge dials the realtime endpoint and manages channel subscriptions.
type Bridge struct {
	wsURL   string
	anonKey string
	dialer  *websocket.Dialer
}

// NewBridge creates a Bridge for the given backend base URL and anon key.
func NewBridge(baseURL, anonKey string) *Bridge {
	ws := strings.Replace(baseURL, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return &Bridge{
		wsURL:   ws + "/realtime/v1/websocket?apikey=" + url.QueryEscape(anonKey) + "&vsn=1.0.0",
		anonKey: anonKey,
		dialer:  websocket.DefaultDialer,
	}
}

// Subscription is one open change-feed channel for a (table, tenant) pair.
type Subscription struct {
	topic     string
	state     atomic.Int32
	cancelled atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn

	done chan struct{}
}

// State returns the subscription's current state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Close tears down the channel. Safe to call more than once and before
// hydration has completed; the cancelled flag stops a stale hydration from
// resubscribing a dead channel.
func (s *Subscription) Close() {
	if s.cancelled.Swap(true) {
		return
	}
	s.mu.Lock()
	if s.conn != nil {
		if leave, err := newMessage(s.topic, eventLeave, uuid.NewString(), map[string]any{}); err == nil {
			_ = s.conn.WriteJSON(leave)
		}
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = s.conn.Close()
	}
	s.mu.Unlock()
	s.state.Store(int32(StateDisconnected))
}

// UpdateToken pushes a refreshed access token down the open channel so the
// endpoint keeps the subscription's auth context current across session
// refreshes. Failures are logged, never surfaced, like every other feed
// fault.
func (s *Subscription) UpdateToken(accessToken string) {
	msg, err := newMessage(s.topic, eventAccessToken, uuid.NewString(), map[string]string{
		"access_token": accessToken,
	})
	if err != nil {
		slog.Warn("realtime_token_encode_failed", "topic", s.topic, "error", err.Error())
		return
	}
	if err := s.write(msg); err != nil {
		slog.Warn("realtime_token_update_failed", "topic", s.topic, "error", err.Error())
	}
}

// Done is closed when the subscription's goroutines have fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) write(msg message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("channel %s is not connected", s.topic)
	}
	return s.conn.WriteJSON(msg)
}

// Subscribe opens one channel for the (table, tenant) pair and invokes
// onChange for every insert/update/delete notification. Hydration
// re-establishes the transport's auth context from the session's token pair.
// Subscribe failures are logged, never surfaced: the module keeps serving
// its last fetched snapshot, and refreshes also fire on explicit user action
// and on every mutating write.
func (b *Bridge) Subscribe(sess session.Session, table, gymID string, onChange func()) *Subscription {
	sub := &Subscription{
		topic: fmt.Sprintf("realtime:%s-%s", table, sess.User.ID),
		done:  make(chan struct{}),
	}
	sub.state.Store(int32(StateHydrating))

	go b.run(sub, sess, table, gymID, onChange)
	return sub
}

func (b *Bridge) run(sub *Subscription, sess session.Session, table, gymID string, onChange func()) {
	defer close(sub.done)
	defer sub.state.Store(int32(StateDisconnected))

	conn, _, err := b.dialer.Dial(b.wsURL, nil)
	if err != nil {
		slog.Warn("realtime_dial_failed", "table", table, "error", err.Error())
		return
	}
	if sub.cancelled.Load() {
		// Torn down while dialing; do not subscribe a dead channel.
		_ = conn.Close()
		return
	}
	sub.mu.Lock()
	sub.conn = conn
	sub.mu.Unlock()

	join, err := newMessage(sub.topic, eventJoin, uuid.NewString(), joinPayload(table, gymID, sess.AccessToken))
	if err != nil {
		slog.Warn("realtime_join_encode_failed", "table", table, "error", err.Error())
		_ = conn.Close()
		return
	}
	if err := sub.write(join); err != nil {
		slog.Warn("realtime_join_failed", "table", table, "error", err.Error())
		return
	}

	stopHeartbeat := make(chan struct{})
	defer close(stopHeartbeat)
	go b.heartbeat(sub, stopHeartbeat)

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if !sub.cancelled.Load() {
				slog.Warn("realtime_channel_closed", "table", table, "error", err.Error())
			}
			return
		}
		switch msg.Event {
		case eventReply:
			if msg.Topic == sub.topic && sub.State() == StateHydrating {
				if replyStatus(msg.Payload) == "ok" {
					sub.state.Store(int32(StateSubscribed))
					slog.Info("realtime_subscribed", "table", table, "topic", sub.topic)
				} else {
					slog.Warn("realtime_join_rejected", "table", table, "topic", sub.topic)
					return
				}
			}
		case eventPostgresChanges:
			// Full refetch on every change, regardless of which row changed.
			onChange()
		case eventSystem, eventHeartbeat:
			// Keepalive traffic; nothing to do.
		}
	}
}

func (b *Bridge) heartbeat(sub *Subscription, stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	ref := 1
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			msg, err := newMessage(heartbeatTopic, eventHeartbeat, strconv.Itoa(ref), map[string]any{})
			if err != nil {
				return
			}
			ref++
			if err := sub.write(msg); err != nil {
				return
			}
		}
	}
}
