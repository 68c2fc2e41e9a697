// Package conversation maintains bounded, ordered message history per
// chat session.
//
// The in-memory history is authoritative while the process lives. An
// optional statestore.Store adds durability: sessions are snapshotted
// when cleared or evicted and reloaded on first touch after a restart.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxmux/voxmux/logger"
	"github.com/voxmux/voxmux/statestore"
	"github.com/voxmux/voxmux/types"
)

// DefaultMaxMessages bounds session history when no limit is configured.
const DefaultMaxMessages = 40

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

type session struct {
	mu           sync.Mutex
	id           string
	messages     []types.Message
	createdAt    time.Time
	lastActiveAt time.Time
}

// Manager owns per-session conversation history. Appends within one
// session serialize to preserve chronological order; different sessions
// proceed in parallel.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*session
	maxMessages int
	store       statestore.Store
	now         func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxMessages sets the per-session history bound. Values below 1
// keep the default.
func WithMaxMessages(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxMessages = n
		}
	}
}

// WithSnapshotStore attaches a persistence hook. The manager works
// without one; snapshots only add durability across restarts.
func WithSnapshotStore(store statestore.Store) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithManagerClock overrides the manager's time source for tests.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an empty conversation manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:    make(map[string]*session),
		maxMessages: DefaultMaxMessages,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Append adds a message to the session, creating it if absent. When the
// history bound is exceeded the oldest messages are dropped first,
// preserving the most recent conversational turns.
func (m *Manager) Append(ctx context.Context, sessionID, role, text string) {
	s := m.getOrLoad(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := m.now()
	s.messages = append(s.messages, types.Message{
		Role:      role,
		Content:   text,
		Timestamp: now,
	})
	s.lastActiveAt = now

	if overflow := len(s.messages) - m.maxMessages; overflow > 0 {
		s.messages = append(s.messages[:0:0], s.messages[overflow:]...)
	}
}

// Context returns the session's bounded history in chronological order.
// The returned slice is a copy. Unknown session IDs yield nil without
// creating a session, so read paths cannot grow the session map.
func (m *Manager) Context(ctx context.Context, sessionID string) []types.Message {
	s := m.peek(ctx, sessionID)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append(s.messages[:0:0], s.messages...)
}

// Clear drops a session's history and its stored snapshot.
func (m *Manager) Clear(ctx context.Context, sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, statestore.ErrNotFound) {
			logger.Warn("failed to delete session snapshot", "session_id", sessionID, "error", err)
		}
	}
}

// EvictStale removes sessions idle longer than maxIdle, snapshotting
// them first when a store is attached. Returns how many were evicted.
// Invoked by a periodic maintenance tick, not on every call.
func (m *Manager) EvictStale(ctx context.Context, maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*session
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastActiveAt.Before(cutoff)
		s.mu.Unlock()
		if idle {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.snapshot(ctx, s)
	}
	return len(stale)
}

// Len returns the number of in-memory sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// getOrLoad returns the live session, restoring it from a snapshot on
// first touch when a store is attached.
func (m *Manager) getOrLoad(ctx context.Context, sessionID string) *session {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		now := m.now()
		s = &session{
			id:           sessionID,
			createdAt:    now,
			lastActiveAt: now,
		}
		m.sessions[sessionID] = s
	}
	m.mu.Unlock()

	if ok || m.store == nil {
		return s
	}

	snapshot, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, statestore.ErrNotFound) {
			logger.Warn("failed to load session snapshot", "session_id", sessionID, "error", err)
		}
		return s
	}

	s.mu.Lock()
	if len(s.messages) == 0 {
		s.messages = snapshot.Messages
		s.createdAt = snapshot.CreatedAt
	}
	s.mu.Unlock()
	return s
}

// peek returns the live session without creating one. A snapshotted
// session is restored, since its history exists; an unknown ID returns
// nil.
func (m *Manager) peek(ctx context.Context, sessionID string) *session {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if ok {
		return s
	}
	if m.store == nil {
		return nil
	}

	snapshot, err := m.store.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, statestore.ErrNotFound) {
			logger.Warn("failed to load session snapshot", "session_id", sessionID, "error", err)
		}
		return nil
	}

	m.mu.Lock()
	s, ok = m.sessions[sessionID]
	if !ok {
		s = &session{
			id:           sessionID,
			messages:     snapshot.Messages,
			createdAt:    snapshot.CreatedAt,
			lastActiveAt: m.now(),
		}
		m.sessions[sessionID] = s
	}
	m.mu.Unlock()
	return s
}

func (m *Manager) snapshot(ctx context.Context, s *session) {
	if m.store == nil {
		return
	}

	s.mu.Lock()
	snap := &statestore.Snapshot{
		ID:           s.id,
		Messages:     append(s.messages[:0:0], s.messages...),
		CreatedAt:    s.createdAt,
		LastActiveAt: s.lastActiveAt,
	}
	s.mu.Unlock()

	if err := m.store.Save(ctx, snap); err != nil {
		logger.Warn("failed to save session snapshot", "session_id", s.id, "error", err)
	}
}
