package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxmux/voxmux/types"
)

func TestMemoryStore_LoadNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_LoadInvalidID(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryStore_SaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	snapshot := &Snapshot{
		ID: "sess-1",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: "hello", Timestamp: time.Now()},
			{Role: types.RoleAssistant, Content: "hi!", Timestamp: time.Now()},
		},
		CreatedAt:    time.Now(),
		LastActiveAt: time.Now(),
	}
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", loaded.ID)
	assert.Len(t, loaded.Messages, 2)
	assert.Equal(t, "hello", loaded.Messages[0].Content)
}

func TestMemoryStore_SaveNilSnapshot(t *testing.T) {
	store := NewMemoryStore()
	assert.ErrorIs(t, store.Save(context.Background(), nil), ErrInvalidSnapshot)
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Snapshot{
		ID:       "sess-1",
		Messages: []types.Message{{Role: types.RoleUser, Content: "original"}},
	}))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	loaded.Messages[0].Content = "mutated"

	again, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Content)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Snapshot{ID: "sess-1"}))
	require.NoError(t, store.Delete(ctx, "sess-1"))

	_, err := store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteNotFound(t *testing.T) {
	store := NewMemoryStore()
	assert.ErrorIs(t, store.Delete(context.Background(), "missing"), ErrNotFound)
}
