package rag

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"docchat/internal/chunker"
	"docchat/internal/docstore"
	"docchat/internal/embedding"
	"docchat/internal/generation"
	"docchat/internal/memory"
	"docchat/internal/vectorstore"
)

const testDimension = 8

// fakeIndex is an in-memory VectorIndex. With down set it behaves like a
// degraded store: upserts vanish and queries come back empty.
type fakeIndex struct {
	down    bool
	entries map[uint64]vectorstore.Result
	order   []uint64
	// canned, when set, is returned verbatim from Query.
	canned []vectorstore.Result
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[uint64]vectorstore.Result)}
}

func (f *fakeIndex) Upsert(_ context.Context, vectors [][]float32, payloads []vectorstore.Payload) error {
	if f.down {
		return nil
	}
	for _, p := range payloads {
		id := vectorstore.PointID(p.DocumentID, p.ChunkID)
		if _, seen := f.entries[id]; !seen {
			f.order = append(f.order, id)
		}
		f.entries[id] = vectorstore.Result{ID: id, Score: 0.9, Payload: p}
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) ([]vectorstore.Result, error) {
	if f.down {
		return nil, nil
	}
	if f.canned != nil {
		return truncate(f.canned, topK), nil
	}
	var results []vectorstore.Result
	for _, id := range f.order {
		results = append(results, f.entries[id])
	}
	return truncate(results, topK), nil
}

func (f *fakeIndex) DeleteByDocument(_ context.Context, documentID string) error {
	if f.down {
		return nil
	}
	kept := f.order[:0]
	for _, id := range f.order {
		if f.entries[id].Payload.DocumentID == documentID {
			delete(f.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	f.order = kept
	return nil
}

// fakeHistory is an in-memory HistoryStore.
type fakeHistory struct {
	sessions map[string][]memory.Turn
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{sessions: make(map[string][]memory.Turn)}
}

func (f *fakeHistory) History(_ context.Context, sessionID string) ([]memory.Turn, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeHistory) Append(_ context.Context, sessionID, role, message string) error {
	f.sessions[sessionID] = append(f.sessions[sessionID], memory.Turn{Role: role, Message: message})
	return nil
}

// testPipeline builds a pipeline over a real docstore and chunker, the
// deterministic hash embedding tier, the extractive generation fallback,
// and in-memory index/history fakes.
func testPipeline(t *testing.T) (*Pipeline, *fakeIndex, *fakeHistory, *docstore.Store) {
	t.Helper()

	docs, err := docstore.Open(filepath.Join(t.TempDir(), "docchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	chk, err := chunker.New(300, 50)
	require.NoError(t, err)

	index := newFakeIndex()
	history := newFakeHistory()
	embedder := embedding.NewWithTiers(testDimension, nil, embedding.NewHashTier(testDimension))
	generator := generation.NewWithTiers(1500, nil)

	pipeline := NewPipeline(chk, embedder, index, docs, history, generator, nil)
	return pipeline, index, history, docs
}
