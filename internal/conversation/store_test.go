package conversation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, retention time.Duration) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "conv.db"), retention)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndHistory_RoundTrip(t *testing.T) {
	store := newTestStore(t, 7*24*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: "hello"}))
	require.NoError(t, store.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleAssistant, Content: "hi there"}))

	turns, err := store.History(ctx, "acme", "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, "hi there", turns[1].Content)
	assert.NotEmpty(t, turns[0].ID)
}

func TestHistory_OldestFirstBounded(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		require.NoError(t, store.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: c}))
	}

	turns, err := store.History(ctx, "acme", "conv-1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	// Most recent three, oldest first.
	assert.Equal(t, "three", turns[0].Content)
	assert.Equal(t, "four", turns[1].Content)
	assert.Equal(t, "five", turns[2].Content)
}

func TestHistory_TenantAndConversationScoped(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: "a"}))
	require.NoError(t, store.AppendTurn(ctx, "acme", "conv-2", Turn{Role: RoleUser, Content: "b"}))
	require.NoError(t, store.AppendTurn(ctx, "other", "conv-1", Turn{Role: RoleUser, Content: "c"}))

	turns, err := store.History(ctx, "acme", "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "a", turns[0].Content)
}

func TestHistory_Expired(t *testing.T) {
	store := newTestStore(t, -time.Second) // everything born expired
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: "gone"}))

	turns, err := store.History(ctx, "acme", "conv-1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestWorkingMemory_RoundTrip(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.WorkingMemory(ctx, "u:acme")
	assert.ErrorIs(t, err, ErrMemoryNotFound)

	require.NoError(t, store.SaveWorkingMemory(ctx, "acme", "u:acme", "prefers weekly summaries"))
	got, err := store.WorkingMemory(ctx, "u:acme")
	require.NoError(t, err)
	assert.Equal(t, "prefers weekly summaries", got)

	// Overwrite.
	require.NoError(t, store.SaveWorkingMemory(ctx, "acme", "u:acme", "updated"))
	got, err = store.WorkingMemory(ctx, "u:acme")
	require.NoError(t, err)
	assert.Equal(t, "updated", got)
}

func TestPurgeExpired(t *testing.T) {
	store := newTestStore(t, -time.Second)
	ctx := context.Background()

	require.NoError(t, store.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: "x"}))
	require.NoError(t, store.SaveWorkingMemory(ctx, "acme", "u:acme", "y"))

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestBestEffort_SwallowsClosedStore(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: "a"}))
	be := NewBestEffort(store)

	require.NoError(t, store.Close())

	// None of these may panic or error; they log and degrade.
	assert.Nil(t, be.History(ctx, "acme", "conv-1", 10))
	be.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: "b"})
	assert.Equal(t, "", be.WorkingMemory(ctx, "acme", "u:acme"))
	be.SaveWorkingMemory(ctx, "acme", "u:acme", "z")
}

func TestBestEffort_PassThrough(t *testing.T) {
	store := newTestStore(t, time.Hour)
	ctx := context.Background()
	be := NewBestEffort(store)

	be.AppendTurn(ctx, "acme", "conv-1", Turn{Role: RoleUser, Content: "hello"})
	turns := be.History(ctx, "acme", "conv-1", 10)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].Content)

	assert.Equal(t, "", be.WorkingMemory(ctx, "acme", "nobody:acme"))
	be.SaveWorkingMemory(ctx, "acme", "u:acme", "note")
	assert.Equal(t, "note", be.WorkingMemory(ctx, "acme", "u:acme"))
}
