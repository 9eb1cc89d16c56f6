//go:build integration

package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore connects to a local Redis, skipping when unavailable.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("redis://localhost:6379/0")
	require.NoError(t, err)

	if err := store.client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistory_UnknownSession(t *testing.T) {
	store := setupTestStore(t)

	turns, err := store.History(context.Background(), "session-"+uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, turns, "unknown session yields empty history, not an error")
}

func TestAppend_PreservesOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	session := "session-" + uuid.New().String()

	require.NoError(t, store.Append(ctx, session, "user", "what plots are listed?"))
	require.NoError(t, store.Append(ctx, session, "assistant", "two plots in Kathmandu"))
	require.NoError(t, store.Append(ctx, session, "user", "any with irrigation?"))

	turns, err := store.History(ctx, session)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Role: "user", Message: "what plots are listed?"}, turns[0])
	assert.Equal(t, Turn{Role: "assistant", Message: "two plots in Kathmandu"}, turns[1])
	assert.Equal(t, Turn{Role: "user", Message: "any with irrigation?"}, turns[2])
}

// Known limitation: Append is read-modify-write without a transaction, so
// two concurrent turns on one session can overwrite each other. Sessions
// are single-user and serial in practice; this test documents the accepted
// last-write-wins behavior rather than asserting atomicity.
func TestAppend_LastWriteWinsRace(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	session := "session-" + uuid.New().String()

	done := make(chan struct{}, 2)
	go func() { _ = store.Append(ctx, session, "user", "first"); done <- struct{}{} }()
	go func() { _ = store.Append(ctx, session, "user", "second"); done <- struct{}{} }()
	<-done
	<-done

	turns, err := store.History(ctx, session)
	require.NoError(t, err)
	// One or both turns survive depending on interleaving.
	assert.GreaterOrEqual(t, len(turns), 1)
	assert.LessOrEqual(t, len(turns), 2)
}
