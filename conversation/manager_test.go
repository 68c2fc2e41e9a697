package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmux/voxmux/statestore"
	"github.com/voxmux/voxmux/types"
)

func TestManager_AppendAndContext(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	m.Append(ctx, "sess-1", types.RoleUser, "hello")
	m.Append(ctx, "sess-1", types.RoleAssistant, "hi there")

	history := m.Context(ctx, "sess-1")
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, types.RoleAssistant, history[1].Role)
}

func TestManager_ContextForUnknownSessionIsEmpty(t *testing.T) {
	m := NewManager()
	assert.Empty(t, m.Context(context.Background(), "nope"))
}

func TestManager_ContextDoesNotCreateSessions(t *testing.T) {
	ctx := context.Background()

	m := NewManager()
	for i := 0; i < 50; i++ {
		m.Context(ctx, fmt.Sprintf("unknown-%d", i))
	}
	assert.Equal(t, 0, m.Len(), "reads of unknown sessions must not grow the session map")

	// Same with a snapshot store attached: a missing snapshot is not a
	// reason to materialize a session.
	m = NewManager(WithSnapshotStore(statestore.NewMemoryStore()))
	m.Context(ctx, "unknown")
	assert.Equal(t, 0, m.Len())
}

func TestManager_FIFOBounding(t *testing.T) {
	m := NewManager(WithMaxMessages(3))
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		m.Append(ctx, "sess-1", types.RoleUser, fmt.Sprintf("msg-%d", i))
	}

	history := m.Context(ctx, "sess-1")
	require.Len(t, history, 3)
	assert.Equal(t, "msg-2", history[0].Content)
	assert.Equal(t, "msg-3", history[1].Content)
	assert.Equal(t, "msg-4", history[2].Content)
}

func TestManager_Clear(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	m.Append(ctx, "sess-1", types.RoleUser, "hello")
	m.Clear(ctx, "sess-1")

	assert.Empty(t, m.Context(ctx, "sess-1"))
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	m.Append(ctx, "sess-a", types.RoleUser, "from a")
	m.Append(ctx, "sess-b", types.RoleUser, "from b")

	a := m.Context(ctx, "sess-a")
	require.Len(t, a, 1)
	assert.Equal(t, "from a", a[0].Content)

	m.Clear(ctx, "sess-a")
	assert.Len(t, m.Context(ctx, "sess-b"), 1)
}

func TestManager_ConcurrentAppendsSameSession(t *testing.T) {
	m := NewManager(WithMaxMessages(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Append(ctx, "sess-1", types.RoleUser, "m")
		}()
	}
	wg.Wait()

	history := m.Context(ctx, "sess-1")
	assert.Len(t, history, 100)

	// Timestamps never go backwards: appends serialized.
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
	}
}

func TestManager_EvictStale(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(WithManagerClock(func() time.Time { return current }))
	ctx := context.Background()

	m.Append(ctx, "sess-old", types.RoleUser, "hello")

	current = current.Add(3 * time.Hour)
	m.Append(ctx, "sess-new", types.RoleUser, "hello")

	evicted := m.EvictStale(ctx, 2*time.Hour)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Len())
	assert.Len(t, m.Context(ctx, "sess-new"), 1)
}

func TestManager_EvictStaleSnapshotsToStore(t *testing.T) {
	store := statestore.NewMemoryStore()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(
		WithSnapshotStore(store),
		WithManagerClock(func() time.Time { return current }),
	)
	ctx := context.Background()

	m.Append(ctx, "sess-1", types.RoleUser, "remember me")

	current = current.Add(3 * time.Hour)
	require.Equal(t, 1, m.EvictStale(ctx, time.Hour))

	snapshot, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, snapshot.Messages, 1)
	assert.Equal(t, "remember me", snapshot.Messages[0].Content)
}

func TestManager_RestoresFromSnapshotOnFirstTouch(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &statestore.Snapshot{
		ID: "sess-restored",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: "before restart"},
		},
	}))

	m := NewManager(WithSnapshotStore(store))

	history := m.Context(ctx, "sess-restored")
	require.Len(t, history, 1)
	assert.Equal(t, "before restart", history[0].Content)
}

func TestManager_ClearDeletesSnapshot(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &statestore.Snapshot{ID: "sess-1"}))

	m := NewManager(WithSnapshotStore(store))
	m.Clear(ctx, "sess-1")

	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, statestore.ErrNotFound)
}

func TestNewSessionID_Unique(t *testing.T) {
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}
