// Package statestore persists conversation session snapshots.
//
// The in-memory session history owned by the conversation manager is
// authoritative during a process lifetime; stores only provide
// durability across restarts. The manager saves a snapshot at session
// boundaries (clear, stale eviction) and loads one when a session is
// first touched.
package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/voxmux/voxmux/types"
)

// Snapshot is the persisted form of a conversation session.
type Snapshot struct {
	ID           string          `json:"id"`
	Messages     []types.Message `json:"messages"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActiveAt time.Time       `json:"last_active_at"`
}

// Store persists session snapshots.
type Store interface {
	// Load retrieves a snapshot by session ID.
	Load(ctx context.Context, id string) (*Snapshot, error)

	// Save persists a snapshot, overwriting any previous one.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Delete removes a snapshot. Deleting a missing snapshot returns
	// ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// ErrNotFound is returned when a session has no stored snapshot.
var ErrNotFound = errors.New("session snapshot not found")

// ErrInvalidID is returned when an empty session ID is provided.
var ErrInvalidID = errors.New("invalid session ID")

// ErrInvalidSnapshot is returned when a nil snapshot is saved.
var ErrInvalidSnapshot = errors.New("invalid snapshot")
