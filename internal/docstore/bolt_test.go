package docstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "docchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newDoc(filename string, uploaded time.Time) Document {
	return Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		Filetype:   "text/plain",
		UploadedAt: uploaded,
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	store := openTestStore(t)
	doc := newDoc("deed.txt", time.Now().UTC().Truncate(time.Millisecond))

	require.NoError(t, store.PutDocument(doc))

	got, err := store.GetDocument(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = store.GetDocument("missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestLatestDocument(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.LatestDocument()
	require.NoError(t, err)
	assert.False(t, ok, "empty store has no latest document")

	base := time.Now().UTC()
	older := newDoc("older.txt", base.Add(-time.Hour))
	newer := newDoc("newer.txt", base)
	require.NoError(t, store.PutDocument(newer))
	require.NoError(t, store.PutDocument(older))

	latest, ok, err := store.LatestDocument()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newer.ID, latest.ID, "latest is by upload time, not insertion order")
}

func TestLatestDocument_SubSecondOrdering(t *testing.T) {
	store := openTestStore(t)

	// A whole-second timestamp and a fractional one from the same second
	// must still order chronologically.
	second := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	wholeSecond := newDoc("whole.txt", second)
	halfSecondLater := newDoc("later.txt", second.Add(500*time.Millisecond))
	require.NoError(t, store.PutDocument(wholeSecond))
	require.NoError(t, store.PutDocument(halfSecondLater))

	latest, ok, err := store.LatestDocument()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, halfSecondLater.ID, latest.ID)
}

func TestListDocuments_NewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().UTC()

	first := newDoc("first.txt", base.Add(-2*time.Hour))
	second := newDoc("second.txt", base.Add(-time.Hour))
	third := newDoc("third.txt", base)
	for _, d := range []Document{first, third, second} {
		require.NoError(t, store.PutDocument(d))
	}

	docs, err := store.ListDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, third.ID, docs[0].ID)
	assert.Equal(t, second.ID, docs[1].ID)
	assert.Equal(t, first.ID, docs[2].ID)
}

func TestAddChunks_OrderAndOwnership(t *testing.T) {
	store := openTestStore(t)
	doc := newDoc("deed.txt", time.Now().UTC())
	require.NoError(t, store.PutDocument(doc))

	texts := []string{"chunk one", "chunk two", "chunk three"}
	chunks, err := store.AddChunks(doc.ID, texts)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	got, err := store.ChunksByDocument(doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, chunk := range got {
		assert.Equal(t, texts[i], chunk.Text, "chunks must come back in creation order")
		assert.Equal(t, doc.ID, chunk.DocumentID)
	}

	count, err := store.ChunkCount(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChunksByDocument_Unknown(t *testing.T) {
	store := openTestStore(t)
	chunks, err := store.ChunksByDocument("missing")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDeleteDocument_Cascades(t *testing.T) {
	store := openTestStore(t)
	keep := newDoc("keep.txt", time.Now().UTC().Add(-time.Minute))
	drop := newDoc("drop.txt", time.Now().UTC())
	require.NoError(t, store.PutDocument(keep))
	require.NoError(t, store.PutDocument(drop))

	_, err := store.AddChunks(keep.ID, []string{"kept chunk"})
	require.NoError(t, err)
	_, err = store.AddChunks(drop.ID, []string{"dropped one", "dropped two"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument(drop.ID))

	_, err = store.GetDocument(drop.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	chunks, err := store.AllChunks()
	require.NoError(t, err)
	require.Len(t, chunks, 1, "delete must cascade to the document's chunks")
	assert.Equal(t, "kept chunk", chunks[0].Text)

	latest, ok, err := store.LatestDocument()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, keep.ID, latest.ID, "upload index entry must be removed too")

	assert.ErrorIs(t, store.DeleteDocument(drop.ID), ErrDocumentNotFound)
}
