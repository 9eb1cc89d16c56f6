package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/docstore"
)

func TestIngest_StoresRecordsAndIndexEntries(t *testing.T) {
	pipeline, index, _, docs := testPipeline(t)
	ctx := context.Background()

	text := "This land has irrigation facilities. The plot measures five ropani. Road access on two sides."
	result, err := pipeline.Ingest(ctx, "deed.txt", "text/plain", text, "sentence")
	require.NoError(t, err)
	require.NotEmpty(t, result.DocumentID)
	assert.Equal(t, 3, result.Chunks)

	chunks, err := docs.ChunksByDocument(result.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "This land has irrigation facilities.", chunks[0].Text)

	assert.Len(t, index.entries, 3, "every chunk gets an index entry")
	for _, entry := range index.entries {
		assert.Equal(t, result.DocumentID, entry.Payload.DocumentID)
		assert.NotEmpty(t, entry.Payload.Text)
	}
}

func TestIngest_RejectsCallerInputErrors(t *testing.T) {
	pipeline, _, _, _ := testPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Ingest(ctx, "blank.txt", "text/plain", "   \n", "sentence")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = pipeline.Ingest(ctx, "deed.txt", "text/plain", "Some text here.", "paragraph")
	assert.Error(t, err, "unknown chunk strategy is rejected at the boundary")
}

func TestIngest_IndexDownStillRecordsChunks(t *testing.T) {
	pipeline, index, _, docs := testPipeline(t)
	index.down = true
	ctx := context.Background()

	result, err := pipeline.Ingest(ctx, "deed.txt", "text/plain", "This land has irrigation facilities.", "sentence")
	require.NoError(t, err, "index unavailability must not fail ingestion")

	chunks, err := docs.ChunksByDocument(result.DocumentID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks, "chunk text must survive for keyword retrieval")
}

func TestListDocuments_IncludesChunkCounts(t *testing.T) {
	pipeline, _, _, _ := testPipeline(t)
	ctx := context.Background()

	first, err := pipeline.Ingest(ctx, "first.txt", "text/plain", "One sentence. Two sentences.", "sentence")
	require.NoError(t, err)
	second, err := pipeline.Ingest(ctx, "second.txt", "text/plain", "Only one sentence here.", "sentence")
	require.NoError(t, err)

	infos, err := pipeline.ListDocuments()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, second.DocumentID, infos[0].ID, "listing is newest first")
	assert.Equal(t, 1, infos[0].ChunkCount)
	assert.Equal(t, first.DocumentID, infos[1].ID)
	assert.Equal(t, 2, infos[1].ChunkCount)
}

func TestDeleteDocument_PurgesIndexAndRecords(t *testing.T) {
	pipeline, index, _, docs := testPipeline(t)
	ctx := context.Background()

	keep, err := pipeline.Ingest(ctx, "keep.txt", "text/plain", "Keep this document.", "sentence")
	require.NoError(t, err)
	drop, err := pipeline.Ingest(ctx, "drop.txt", "text/plain", "Drop this document. And its chunks.", "sentence")
	require.NoError(t, err)

	require.NoError(t, pipeline.DeleteDocument(ctx, drop.DocumentID))

	_, err = docs.GetDocument(drop.DocumentID)
	assert.ErrorIs(t, err, docstore.ErrDocumentNotFound)
	for _, entry := range index.entries {
		assert.Equal(t, keep.DocumentID, entry.Payload.DocumentID, "index entries of the deleted document are purged")
	}

	assert.ErrorIs(t, pipeline.DeleteDocument(ctx, drop.DocumentID), docstore.ErrDocumentNotFound)
}
